package models

const (
	FieldBalance = "bal"
	FieldName    = "nam"
)

// Field is one record stored on a tag, addressed by its tag string.
type Field struct {
	Tag     string `json:"tag"`
	Payload []byte `json:"payload"`
}

// TagEvent is what a reader reports when a tag is presented. A non-empty
// Error marks an out-of-band reading error rather than a tag.
type TagEvent struct {
	SerialNumber string  `json:"serial_number"`
	Fields       []Field `json:"fields,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// WriteRequest asks the reader to write fields to the tag currently presented.
type WriteRequest struct {
	RequestID string  `json:"request_id"`
	Fields    []Field `json:"fields"`
}

// WriteReply is the acknowledgement of a WriteRequest on request/reply transports.
type WriteReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

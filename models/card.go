package models

// CardIdentity is derived from the tag serial number and keys the ledger
// and the holder directory.
type CardIdentity uint64

// CardRecord is the decoded content of a bank tag.
type CardRecord struct {
	Holder  string  `json:"holder"`
	Balance float32 `json:"balance"`
}

// Card is a scanned tag. Data is nil when the tag carries no bank record.
type Card struct {
	ID   CardIdentity `json:"id"`
	Data *CardRecord  `json:"data,omitempty"`
}

func (c Card) Registered() bool {
	return c.Data != nil
}

// WithRecord returns a copy of the card holding r.
func (c Card) WithRecord(r CardRecord) Card {
	return Card{ID: c.ID, Data: &r}
}

// Clone returns a copy that shares no memory with c.
func (c Card) Clone() Card {
	if c.Data == nil {
		return Card{ID: c.ID}
	}
	return c.WithRecord(*c.Data)
}

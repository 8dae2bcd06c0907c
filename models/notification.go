package models

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient operator message. EndsCycle is set on the
// notification that closes a write cycle (success, rejection or abort).
type Notification struct {
	Level     Level         `json:"level"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	CardID    *CardIdentity `json:"card_id,omitempty"`
	Err       error         `json:"-"`
	EndsCycle bool          `json:"ends_cycle"`
}

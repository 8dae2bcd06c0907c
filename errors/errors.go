package errors

import (
	// Go Internal Packages
	stderrors "errors"
	"strings"
)

// Kind classifies an error so callers can react without matching messages.
type Kind uint8

const (
	Other Kind = iota
	Invalid
	Transport
	Decode
	PolicyRejected
	NotRegistered
	OwnershipConflict
	WriteFailed
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Transport:
		return "transport error"
	case Decode:
		return "decode error"
	case PolicyRejected:
		return "policy rejection"
	case NotRegistered:
		return "not registered"
	case OwnershipConflict:
		return "ownership conflict"
	case WriteFailed:
		return "write failed"
	case Unavailable:
		return "unavailable"
	}
	return "other"
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an error of the given kind. When err is nil the message alone is used.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether any *Error in the chain has the given kind.
func Is(kind Kind, err error) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

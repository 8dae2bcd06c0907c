// Package policy decides what happens when a decrease would overdraw a card.
package policy

import (
	// Go Internal Packages
	"fmt"
	"strings"

	// Local Packages
	errors "nfc-bank/errors"
)

type Policy string

const (
	Decline  Policy = "decline"
	Zero     Policy = "zero"
	Negative Policy = "negative"
)

// Outcome tells the caller whether the balance was adjusted by the policy.
type Outcome int

const (
	Accepted Outcome = iota
	Clamped
	Overdrawn
)

type Resolution struct {
	Balance float64
	Outcome Outcome
}

// Warned reports whether the operator should be warned about the result.
func (r Resolution) Warned() bool {
	return r.Outcome != Accepted
}

func Parse(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Decline, Zero, Negative:
		return p, nil
	case "":
		return Decline, nil
	}
	return "", errors.InvalidParamsErr(fmt.Errorf("unknown overdraft policy %q", s))
}

// Resolve applies delta to current. Only a negative delta that takes the
// balance below zero consults the policy.
func Resolve(current, delta float64, p Policy) (Resolution, error) {
	prospective := current + delta
	if prospective >= 0 || delta >= 0 {
		return Resolution{Balance: prospective, Outcome: Accepted}, nil
	}

	switch p {
	case Zero:
		return Resolution{Balance: 0, Outcome: Clamped}, nil
	case Negative:
		return Resolution{Balance: prospective, Outcome: Overdrawn}, nil
	case Decline:
		return Resolution{}, errors.InsufficientFundsErr(current, delta)
	}
	return Resolution{}, errors.InvalidParamsErr(fmt.Errorf("unknown overdraft policy %q", p))
}

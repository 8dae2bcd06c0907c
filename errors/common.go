package errors

import (
	// Go Internal Packages
	"fmt"
)

func InvalidParamsErr(err error) error {
	return E(Invalid, "invalid params", err)
}

func InvalidBodyErr(err error) error {
	return E(Invalid, "invalid request body", err)
}

func EmptyParamErr(field string) error {
	ve := ValidationErrs()
	ve.Add(field, "cannot be empty")
	return E(Invalid, "validation failed", ve.Err())
}

func TransportErr(op string, err error) error {
	return E(Transport, fmt.Sprintf("tag %s failed", op), err)
}

func NotRecognizedErr(err error) error {
	return E(Decode, "card not recognized", err)
}

func NotRegisteredErr(cardID uint64) error {
	return E(NotRegistered, fmt.Sprintf("card %d is not registered", cardID), nil)
}

func InsufficientFundsErr(balance, delta float64) error {
	return E(PolicyRejected, fmt.Sprintf("insufficient balance %.2f for change %.2f", balance, delta), nil)
}

// OwnershipConflictErr returns a formatted error for the repair ownership check
func OwnershipConflictErr(scanned, held uint64) error {
	return E(OwnershipConflict, fmt.Sprintf("card %d already belongs to someone else (held card %d)", scanned, held), nil)
}

// BalanceOutOfRangeErr reports a balance a card cannot store
func BalanceOutOfRangeErr(balance float64) error {
	return E(Invalid, fmt.Sprintf("balance %g does not fit a card", balance), nil)
}

func WriteFailedErr(attempts int, err error) error {
	return E(WriteFailed, fmt.Sprintf("tag write gave up after %d attempts", attempts), err)
}

func UnavailableErr(what string, err error) error {
	return E(Unavailable, fmt.Sprintf("%s unavailable", what), err)
}

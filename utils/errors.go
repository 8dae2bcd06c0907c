package utils

import (
	// Local Packages
	errors "nfc-bank/errors"
)

var errNegativeAmount = errors.E(errors.Invalid, "amount cannot be negative", nil)

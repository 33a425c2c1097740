package domain

import "errors"

// ErrInvalidState and related errors describe validation failures for ledger values.
var (
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidDay   = errors.New("invalid day")
)

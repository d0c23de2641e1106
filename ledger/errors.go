package ledger

import "errors"

var (
	// ErrAccountNotFound indicates no account lives at the address.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("ledger: required parameter is nil")

	// ErrReadOnly indicates a write was attempted inside View.
	ErrReadOnly = errors.New("ledger: write in read-only transaction")

	// ErrCorruptAccount indicates a stored account failed to decode.
	ErrCorruptAccount = errors.New("ledger: corrupt account entry")
)

package capacity

import "errors"

var (
	// ErrInsufficientFunds indicates the owner cannot cover a capacity deposit.
	ErrInsufficientFunds = errors.New("capacity: insufficient funds for deposit")

	// ErrCapacityOverflow indicates a size or deposit computation overflowed.
	ErrCapacityOverflow = errors.New("capacity: arithmetic overflow")

	// ErrRecordTooLarge indicates the record footprint exceeds the maximum record size.
	ErrRecordTooLarge = errors.New("capacity: record exceeds maximum size")

	// ErrLayoutDrift indicates an encoded record does not match its computed footprint.
	ErrLayoutDrift = errors.New("capacity: encoded size differs from footprint")

	// ErrOwnerMismatch indicates the account at the address belongs to another owner.
	ErrOwnerMismatch = errors.New("capacity: account owned by a different key")
)

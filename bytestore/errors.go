package bytestore

import (
	"errors"

	"github.com/bitfsorg/bytestore-go/capacity"
)

var (
	// ErrByteSizeMismatch indicates the declared size differs from the payload length.
	ErrByteSizeMismatch = errors.New("bytestore: declared size does not match payload length")

	// ErrInvalidExpiresAt indicates a non-zero expiry that is not strictly in the future.
	ErrInvalidExpiresAt = errors.New("bytestore: expiry must be zero or in the future")

	// ErrInvalidVersion indicates a version other than the counter's current value plus one.
	ErrInvalidVersion = errors.New("bytestore: version must be exactly current + 1")

	// ErrRecordNotFound indicates no record lives at the derived address.
	ErrRecordNotFound = errors.New("bytestore: record not found")

	// ErrAddressMismatch indicates a stored record disagrees with the addresses
	// derived for its key.
	ErrAddressMismatch = errors.New("bytestore: record does not match derived address")

	// ErrRecordExists indicates a create targeted a live record.
	ErrRecordExists = errors.New("bytestore: record already exists")

	// ErrCounterInUse indicates a version counter still has live versions.
	ErrCounterInUse = errors.New("bytestore: version counter still has live versions")

	// ErrEnvelopeUnsupported indicates an encryption envelope was supplied for
	// an un-versioned record.
	ErrEnvelopeUnsupported = errors.New("bytestore: un-versioned records carry no encryption envelope")

	// ErrInvalidSequence indicates a signed instruction whose sequence number
	// is not the owner's last committed sequence plus one, such as a replay.
	ErrInvalidSequence = errors.New("bytestore: sequence must be exactly last + 1")

	// ErrIntegrity indicates a stored payload no longer matches its metadata.
	ErrIntegrity = errors.New("bytestore: payload does not match metadata")

	// ErrInvalidLayout indicates an unknown envelope layout name.
	ErrInvalidLayout = errors.New("bytestore: unknown envelope layout")

	// ErrInsufficientFunds indicates the owner cannot cover a capacity deposit.
	ErrInsufficientFunds = capacity.ErrInsufficientFunds
)

package address

import "errors"

var (
	// ErrNoViableNonce indicates every derivation nonce produced an on-curve point.
	ErrNoViableNonce = errors.New("address: no off-curve address for seeds")

	// ErrSeedTooLong indicates a single seed exceeds MaxSeedLen.
	ErrSeedTooLong = errors.New("address: seed exceeds maximum length")

	// ErrTooManySeeds indicates more than MaxSeeds seeds were supplied.
	ErrTooManySeeds = errors.New("address: too many seeds")
)

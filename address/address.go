// Package address derives the storage addresses of bytestore records.
//
// An address is a pure function of a domain tag, the owner's compressed
// public key, the record identifier and, for versioned records, the version
// number rendered as a decimal string:
//
//	address = SHA256(domain || seed_0 || ... || seed_n || nonce || tag)
//
// where every seed is prefixed by its u32 big-endian length. The nonce is
// searched downward from 255 and the first candidate that is not the
// x-coordinate of a secp256k1 point is taken, so an address can never be
// mistaken for (or signed for as) a public key.
package address

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

const (
	// Size is the length of an address in bytes.
	Size = 32

	// MaxSeeds is the maximum number of seeds (tag excluded) per derivation.
	MaxSeeds = 8

	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 64
)

// Domain separates bytestore addresses from any other SHA-256 preimage.
var Domain = []byte("bytestore/address/v1")

// Tag names a record family. Each family derives from a distinct tag.
type Tag string

const (
	TagByte     Tag = "byte_account"
	TagMetadata Tag = "metadata_account"
	TagVersion  Tag = "version_account"
	TagEnvelope Tag = "aes_account"
	TagLegacy   Tag = "byte_store_account"
)

// Address locates a record in the ledger.
type Address [Size]byte

// Zero is the zero address; it is never produced by Derive.
var Zero Address

// String returns the hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// FromHex parses a hex-encoded address.
func FromHex(s string) (Address, error) {
	var out Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("address: invalid hex: %w", err)
	}
	if len(b) != Size {
		return out, fmt.Errorf("address: must be %d bytes, got %d", Size, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// VersionSeed renders a version number the way it is mixed into addresses.
func VersionSeed(version uint64) []byte {
	return []byte(strconv.FormatUint(version, 10))
}

// Resolve derives the address of a record owned by owner under identifier id.
// Version 0 denotes an un-versioned record and contributes no seed.
func Resolve(tag Tag, owner, id []byte, version uint64) (Address, uint8, error) {
	if version == 0 {
		return Derive(tag, owner, id)
	}
	return Derive(tag, owner, id, VersionSeed(version))
}

// Derive searches for the highest nonce yielding an off-curve address.
func Derive(tag Tag, seeds ...[]byte) (Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, 0, err
	}
	for n := 255; n >= 0; n-- {
		candidate := compute(tag, uint8(n), seeds)
		if !onCurve(candidate) {
			return candidate, uint8(n), nil
		}
	}
	return Zero, 0, fmt.Errorf("%w: tag %s", ErrNoViableNonce, tag)
}

// Verify reports whether addr is the address derived from tag, seeds and
// nonce. It computes a single candidate and does not search.
func Verify(addr Address, nonce uint8, tag Tag, seeds ...[]byte) bool {
	if checkSeeds(seeds) != nil {
		return false
	}
	candidate := compute(tag, nonce, seeds)
	return candidate == addr && !onCurve(candidate)
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: got %d", ErrTooManySeeds, len(seeds))
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrSeedTooLong, i, len(s))
		}
	}
	return nil
}

func compute(tag Tag, nonce uint8, seeds [][]byte) Address {
	size := len(Domain) + 1 + len(tag)
	for _, s := range seeds {
		size += 4 + len(s)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, Domain...)
	var lenBuf [4]byte
	for _, s := range seeds {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, s...)
	}
	buf = append(buf, nonce)
	buf = append(buf, tag...)

	var out Address
	copy(out[:], bsvhash.Sha256(buf))
	return out
}

// onCurve reports whether c is the x-coordinate of a secp256k1 point.
func onCurve(c Address) bool {
	compressed := make([]byte, 0, 1+Size)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, c[:]...)
	_, err := ec.PublicKeyFromBytes(compressed)
	return err == nil
}

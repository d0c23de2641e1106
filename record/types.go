// Package record defines the persisted record family of the byte store and
// its binary layout.
//
// Every record is laid out as an 8-byte discriminator followed by its
// fixed-width fields in declaration order (integers big-endian) and then its
// variable-length fields, each prefixed by a u32 big-endian length.
package record

import (
	"bytes"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const (
	// OwnerSize is the length of a compressed secp256k1 public key.
	OwnerSize = 33

	// IdentifierSize is the length of an owner-chosen identifier.
	IdentifierSize = 32
)

// Owner is the compressed public key of a record owner.
type Owner [OwnerSize]byte

// OwnerFromPublicKey returns the owner identity of pub.
func OwnerFromPublicKey(pub *ec.PublicKey) Owner {
	var o Owner
	copy(o[:], pub.Compressed())
	return o
}

// ParseOwner parses a compressed public key and returns it as an Owner.
func ParseOwner(b []byte) (Owner, error) {
	var o Owner
	if len(b) != OwnerSize {
		return o, fmt.Errorf("%w: got %d bytes", ErrInvalidOwner, len(b))
	}
	if _, err := ec.PublicKeyFromBytes(b); err != nil {
		return o, fmt.Errorf("%w: %w", ErrInvalidOwner, err)
	}
	copy(o[:], b)
	return o, nil
}

// PublicKey parses the owner back into a public key.
func (o Owner) PublicKey() (*ec.PublicKey, error) {
	pub, err := ec.PublicKeyFromBytes(o[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOwner, err)
	}
	return pub, nil
}

// String returns the hex encoding of the owner key.
func (o Owner) String() string {
	return hex.EncodeToString(o[:])
}

// Identifier names a logical blob. It is opaque to the store.
type Identifier [IdentifierSize]byte

// ParseIdentifier copies a 32-byte identifier.
func ParseIdentifier(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != IdentifierSize {
		return id, fmt.Errorf("%w: got %d bytes", ErrInvalidIdentifier, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IdentifierFromText right-pads the UTF-8 bytes of s with zeros to 32 bytes.
func IdentifierFromText(s string) (Identifier, error) {
	var id Identifier
	if len(s) > IdentifierSize {
		return id, fmt.Errorf("%w: %q is %d bytes", ErrIdentifierTooLong, s, len(s))
	}
	copy(id[:], s)
	return id, nil
}

// Text returns the identifier with trailing zero padding removed.
func (id Identifier) Text() string {
	return string(bytes.TrimRight(id[:], "\x00"))
}

// String returns the hex encoding of the identifier.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// Optional is a value that is either present or absent. It keeps an absent
// field distinct from a present zero value (an empty key, expiry 0).
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSome reports whether the value is present.
func (o Optional[T]) IsSome() bool {
	return o.ok
}

// OrElse returns the value if present and def otherwise.
func (o Optional[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// Envelope carries caller-supplied encryption parameters. The store never
// interprets them; absent fields are persisted as empty sequences.
type Envelope struct {
	Key     Optional[[]byte]
	IV      Optional[[]byte]
	AuthTag Optional[[]byte]
}

// Encrypted reports whether the envelope marks its payload as encrypted,
// which is the case when a key is present.
func (e Envelope) Encrypted() bool {
	return e.Key.IsSome()
}

// Fields returns key, iv and tag with absent fields mapped to empty slices.
func (e Envelope) Fields() (key, iv, tag []byte) {
	return orEmpty(e.Key), orEmpty(e.IV), orEmpty(e.AuthTag)
}

func orEmpty(o Optional[[]byte]) []byte {
	if v, ok := o.Get(); ok && v != nil {
		return v
	}
	return []byte{}
}

// Package checksum computes the content fingerprint stored in every
// metadata record: SHA-256 of the payload.
package checksum

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/opencontainers/go-digest"
)

// Size is the length of a checksum in bytes.
const Size = 32

// ErrMismatch indicates a payload does not hash to the expected checksum.
var ErrMismatch = errors.New("checksum: payload does not match checksum")

// Checksum is a SHA-256 content fingerprint.
type Checksum [Size]byte

// Sum returns the checksum of b.
func Sum(b []byte) Checksum {
	var c Checksum
	copy(c[:], bsvhash.Sha256(b))
	return c
}

// String returns the hex encoding of the checksum.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// Digest renders c as an OCI content digest ("sha256:<hex>").
func (c Checksum) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, c.String())
}

// FromDigest parses an OCI sha256 digest back into a Checksum.
func FromDigest(d digest.Digest) (Checksum, error) {
	var c Checksum
	if err := d.Validate(); err != nil {
		return c, fmt.Errorf("checksum: %w", err)
	}
	if d.Algorithm() != digest.SHA256 {
		return c, fmt.Errorf("checksum: unsupported algorithm %q", d.Algorithm())
	}
	b, err := hex.DecodeString(d.Encoded())
	if err != nil {
		return c, fmt.Errorf("checksum: %w", err)
	}
	copy(c[:], b)
	return c, nil
}

// Verify checks payload against c by streaming it through a digest verifier.
func Verify(c Checksum, payload []byte) error {
	v := c.Digest().Verifier()
	if _, err := v.Write(payload); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	if !v.Verified() {
		return ErrMismatch
	}
	return nil
}

// Equal reports whether payload hashes to c.
func (c Checksum) Equal(payload []byte) bool {
	sum := Sum(payload)
	return bytes.Equal(sum[:], c[:])
}

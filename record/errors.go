package record

import "errors"

var (
	// ErrTruncated indicates the encoded record ended before all fields were read.
	ErrTruncated = errors.New("record: truncated data")

	// ErrTrailingBytes indicates bytes remain after the last field.
	ErrTrailingBytes = errors.New("record: trailing bytes after record")

	// ErrDiscriminatorMismatch indicates the data encodes a different record family.
	ErrDiscriminatorMismatch = errors.New("record: discriminator mismatch")

	// ErrInvalidOwner indicates the owner is not a compressed secp256k1 public key.
	ErrInvalidOwner = errors.New("record: invalid owner public key")

	// ErrInvalidIdentifier indicates the identifier is not exactly 32 bytes.
	ErrInvalidIdentifier = errors.New("record: identifier must be 32 bytes")

	// ErrIdentifierTooLong indicates a text identifier does not fit in 32 bytes.
	ErrIdentifierTooLong = errors.New("record: identifier text exceeds 32 bytes")

	// ErrFieldTooLong indicates a variable-length field exceeds the u32 length prefix.
	ErrFieldTooLong = errors.New("record: field exceeds maximum length")
)

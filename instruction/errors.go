package instruction

import "errors"

var (
	// ErrUnknownOp indicates an operation code or name outside the instruction set.
	ErrUnknownOp = errors.New("instruction: unknown operation")

	// ErrMalformed indicates an instruction body that does not decode.
	ErrMalformed = errors.New("instruction: malformed body")

	// ErrBadSignature indicates the signature does not verify against the owner key.
	ErrBadSignature = errors.New("instruction: signature verification failed")

	// ErrNilInstruction indicates a nil signed instruction.
	ErrNilInstruction = errors.New("instruction: signed instruction is nil")

	// ErrNilKey indicates a nil private key was supplied for signing.
	ErrNilKey = errors.New("instruction: private key is nil")
)

// Package instruction defines the owner-signed request envelope accepted by
// the store: a canonical binary body naming one operation and its
// arguments, signed with the owner's secp256k1 key.
package instruction

import (
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/bytestore-go/record"
)

// FormatVersion is the leading byte of every encoded body.
const FormatVersion = 1

// headerSize: format(1) + op(1) + sequence(8) + id(32) + version(8) + size(8) + flags(1).
const headerSize = 1 + 1 + 8 + record.IdentifierSize + 8 + 8 + 1

// Presence flags for optional fields.
const (
	flagKey uint8 = 1 << iota
	flagIV
	flagAuthTag
	flagExpiresAt
)

// Instruction is one store request. Fields that an operation does not use
// are left zero and ignored.
//
// Sequence must be one more than the last sequence the owner committed; a
// body is therefore accepted at most once.
type Instruction struct {
	Op        Op
	Sequence  uint64
	ID        record.Identifier
	Version   uint64
	Size      uint64
	Payload   []byte
	Envelope  record.Envelope
	ExpiresAt record.Optional[uint64]
}

// Marshal returns the canonical encoding of ins. Layout:
//
//	format u8 | op u8 | sequence u64 | id [32] | version u64 | size u64 | flags u8 |
//	payload vec | key vec? | iv vec? | tag vec? | expires u64?
//
// Integers are big-endian, vec is a u32 length followed by the bytes, and
// the optional fields appear only when their flag bit is set.
func (ins *Instruction) Marshal() ([]byte, error) {
	if !ins.Op.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, uint8(ins.Op))
	}

	var flags uint8
	key, hasKey := ins.Envelope.Key.Get()
	iv, hasIV := ins.Envelope.IV.Get()
	tag, hasTag := ins.Envelope.AuthTag.Get()
	expires, hasExpires := ins.ExpiresAt.Get()
	if hasKey {
		flags |= flagKey
	}
	if hasIV {
		flags |= flagIV
	}
	if hasTag {
		flags |= flagAuthTag
	}
	if hasExpires {
		flags |= flagExpiresAt
	}

	buf := make([]byte, 0, headerSize+4+len(ins.Payload)+12+len(key)+len(iv)+len(tag)+8)
	buf = append(buf, FormatVersion, byte(ins.Op))
	buf = binary.BigEndian.AppendUint64(buf, ins.Sequence)
	buf = append(buf, ins.ID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, ins.Version)
	buf = binary.BigEndian.AppendUint64(buf, ins.Size)
	buf = append(buf, flags)
	buf = appendVec(buf, ins.Payload)
	if hasKey {
		buf = appendVec(buf, key)
	}
	if hasIV {
		buf = appendVec(buf, iv)
	}
	if hasTag {
		buf = appendVec(buf, tag)
	}
	if hasExpires {
		buf = binary.BigEndian.AppendUint64(buf, expires)
	}
	return buf, nil
}

// Unmarshal decodes a body produced by Marshal.
func Unmarshal(data []byte) (*Instruction, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrMalformed, len(data), headerSize)
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d", ErrMalformed, data[0])
	}

	ins := &Instruction{Op: Op(data[1])}
	if !ins.Op.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, data[1])
	}
	off := 2
	ins.Sequence = binary.BigEndian.Uint64(data[off:])
	off += 8
	copy(ins.ID[:], data[off:off+record.IdentifierSize])
	off += record.IdentifierSize
	ins.Version = binary.BigEndian.Uint64(data[off:])
	off += 8
	ins.Size = binary.BigEndian.Uint64(data[off:])
	off += 8
	flags := data[off]
	off++
	if flags&^(flagKey|flagIV|flagAuthTag|flagExpiresAt) != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrMalformed, flags)
	}

	r := &reader{data: data, off: off}
	ins.Payload = r.vec()
	if flags&flagKey != 0 {
		ins.Envelope.Key = record.Some(r.vec())
	}
	if flags&flagIV != 0 {
		ins.Envelope.IV = record.Some(r.vec())
	}
	if flags&flagAuthTag != 0 {
		ins.Envelope.AuthTag = record.Some(r.vec())
	}
	if flags&flagExpiresAt != 0 {
		ins.ExpiresAt = record.Some(r.u64())
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-r.off)
	}
	return ins, nil
}

func appendVec(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// reader walks the variable part of a body with a sticky error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrMalformed, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) vec() []byte {
	lb := r.take(4)
	if lb == nil {
		return nil
	}
	n := binary.BigEndian.Uint32(lb)
	if uint64(n) > uint64(len(r.data)-r.off) {
		r.err = fmt.Errorf("%w: field of %d bytes exceeds body", ErrMalformed, n)
		return nil
	}
	b := r.take(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package record

import (
	"encoding/binary"
	"fmt"
	"math"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// DiscriminatorSize is the length of the record header.
const DiscriminatorSize = 8

// lenPrefixSize is the length of the u32 prefix of a variable field.
const lenPrefixSize = 4

// Discriminator identifies the record family of encoded data.
type Discriminator [DiscriminatorSize]byte

func discriminatorFor(name string) Discriminator {
	var d Discriminator
	copy(d[:], bsvhash.Sha256([]byte("record:"+name)))
	return d
}

var (
	discByte     = discriminatorFor("ByteRecord")
	discMetadata = discriminatorFor("MetadataRecord")
	discVersion  = discriminatorFor("VersionCounter")
	discEnvelope = discriminatorFor("EncryptionParams")
	discLegacy   = discriminatorFor("LegacyStore")
)

// Record family names returned by Kind.
const (
	KindByte     = "byte"
	KindMetadata = "metadata"
	KindVersion  = "version"
	KindEnvelope = "envelope"
	KindLegacy   = "legacy"
)

// Kind returns the name of the record family encoded in data, or "" if the
// header is not recognised.
func Kind(data []byte) string {
	if len(data) < DiscriminatorSize {
		return ""
	}
	var d Discriminator
	copy(d[:], data)
	switch d {
	case discByte:
		return KindByte
	case discMetadata:
		return KindMetadata
	case discVersion:
		return KindVersion
	case discEnvelope:
		return KindEnvelope
	case discLegacy:
		return KindLegacy
	default:
		return ""
	}
}

// encoder appends fields to a preallocated buffer.
type encoder struct {
	buf []byte
	err error
}

func newEncoder(d Discriminator, size int) *encoder {
	e := &encoder{buf: make([]byte, 0, size)}
	e.buf = append(e.buf, d[:]...)
	return e
}

func (e *encoder) u8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) u64(v uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }

func (e *encoder) fixed(b []byte) { e.buf = append(e.buf, b...) }

func (e *encoder) vec(b []byte) {
	if uint64(len(b)) > math.MaxUint32 {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(b))
		}
		return
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) finish() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}

// decoder consumes fields from data in order. The first failure sticks.
type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(d Discriminator, data []byte) *decoder {
	dec := &decoder{data: data}
	if len(data) < DiscriminatorSize {
		dec.err = fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, DiscriminatorSize, len(data))
		return dec
	}
	var got Discriminator
	copy(got[:], data)
	if got != d {
		dec.err = ErrDiscriminatorMismatch
		return dec
	}
	dec.off = DiscriminatorSize
	return dec
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.off < n {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, len(d.data)-d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) boolean() bool { return d.u8() != 0 }

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (d *decoder) fixed(dst []byte) {
	b := d.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

func (d *decoder) vec() []byte {
	p := d.take(lenPrefixSize)
	if p == nil {
		return nil
	}
	n := binary.BigEndian.Uint32(p)
	if uint64(n) > uint64(len(d.data)-d.off) {
		d.err = fmt.Errorf("%w: field of %d bytes at offset %d", ErrTruncated, n, d.off)
		return nil
	}
	b := d.take(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(d.data)-d.off)
	}
	return nil
}

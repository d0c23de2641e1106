package record

import (
	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/checksum"
)

// Fixed-field sizes, header included.
const (
	// ByteRecordFixedSize: disc(8) + nonce(1).
	ByteRecordFixedSize = DiscriminatorSize + 1

	// MetadataSize: disc(8) + id(32) + nonce(1) + owner(33) + size(8) +
	// checksum(32) + byte_address(32) + created(8) + updated(8) +
	// expires(8) + version(8) + is_encrypted(1).
	MetadataSize = DiscriminatorSize + IdentifierSize + 1 + OwnerSize + 8 +
		checksum.Size + address.Size + 8 + 8 + 8 + 8 + 1

	// VersionCounterSize: disc(8) + id(32) + nonce(1) + owner(33) + current(8).
	VersionCounterSize = DiscriminatorSize + IdentifierSize + 1 + OwnerSize + 8

	// EncryptionParamsFixedSize: disc(8) + id(32) + nonce(1) + owner(33) + version(8).
	EncryptionParamsFixedSize = DiscriminatorSize + IdentifierSize + 1 + OwnerSize + 8

	// LegacyStoreFixedSize: disc(8) + id(32) + nonce(1) + owner(33) +
	// size(8) + checksum(32) + created(8) + updated(8).
	LegacyStoreFixedSize = DiscriminatorSize + IdentifierSize + 1 + OwnerSize + 8 +
		checksum.Size + 8 + 8
)

// ByteRecord owns the raw payload and, when stored inline, the encryption
// envelope fields.
type ByteRecord struct {
	Nonce   uint8
	Payload []byte
	Key     []byte
	IV      []byte
	AuthTag []byte
}

// FixedSize returns the size of the fixed fields.
func (r *ByteRecord) FixedSize() int { return ByteRecordFixedSize }

// VarLens returns the lengths of the variable fields in layout order.
func (r *ByteRecord) VarLens() []int {
	return []int{len(r.Payload), len(r.Key), len(r.IV), len(r.AuthTag)}
}

// MarshalBinary encodes the record.
func (r *ByteRecord) MarshalBinary() ([]byte, error) {
	e := newEncoder(discByte, encodedSize(r))
	e.u8(r.Nonce)
	e.vec(r.Payload)
	e.vec(r.Key)
	e.vec(r.IV)
	e.vec(r.AuthTag)
	return e.finish()
}

// UnmarshalBinary decodes the record.
func (r *ByteRecord) UnmarshalBinary(data []byte) error {
	d := newDecoder(discByte, data)
	r.Nonce = d.u8()
	r.Payload = d.vec()
	r.Key = d.vec()
	r.IV = d.vec()
	r.AuthTag = d.vec()
	return d.finish()
}

// Metadata describes a ByteRecord: its size, checksum, timestamps and a
// weak back-reference to the byte record's address.
type Metadata struct {
	ID          Identifier
	Nonce       uint8
	Owner       Owner
	Size        uint64
	Checksum    checksum.Checksum
	ByteAddress address.Address
	CreatedAt   uint64
	UpdatedAt   uint64
	ExpiresAt   uint64 // 0 = never
	Version     uint64 // 0 = un-versioned
	IsEncrypted bool
}

// FixedSize returns the size of the record; it has no variable fields.
func (m *Metadata) FixedSize() int { return MetadataSize }

// VarLens returns nil.
func (m *Metadata) VarLens() []int { return nil }

// Expired reports whether the record has an expiry at or before now.
func (m *Metadata) Expired(now uint64) bool {
	return m.ExpiresAt != 0 && m.ExpiresAt <= now
}

// MarshalBinary encodes the record.
func (m *Metadata) MarshalBinary() ([]byte, error) {
	e := newEncoder(discMetadata, MetadataSize)
	e.fixed(m.ID[:])
	e.u8(m.Nonce)
	e.fixed(m.Owner[:])
	e.u64(m.Size)
	e.fixed(m.Checksum[:])
	e.fixed(m.ByteAddress[:])
	e.u64(m.CreatedAt)
	e.u64(m.UpdatedAt)
	e.u64(m.ExpiresAt)
	e.u64(m.Version)
	e.boolean(m.IsEncrypted)
	return e.finish()
}

// UnmarshalBinary decodes the record.
func (m *Metadata) UnmarshalBinary(data []byte) error {
	d := newDecoder(discMetadata, data)
	d.fixed(m.ID[:])
	m.Nonce = d.u8()
	d.fixed(m.Owner[:])
	m.Size = d.u64()
	d.fixed(m.Checksum[:])
	d.fixed(m.ByteAddress[:])
	m.CreatedAt = d.u64()
	m.UpdatedAt = d.u64()
	m.ExpiresAt = d.u64()
	m.Version = d.u64()
	m.IsEncrypted = d.boolean()
	return d.finish()
}

// VersionCounter holds the highest version created for (owner, identifier).
type VersionCounter struct {
	ID      Identifier
	Nonce   uint8
	Owner   Owner
	Current uint64
}

// FixedSize returns the size of the record.
func (v *VersionCounter) FixedSize() int { return VersionCounterSize }

// VarLens returns nil.
func (v *VersionCounter) VarLens() []int { return nil }

// MarshalBinary encodes the record.
func (v *VersionCounter) MarshalBinary() ([]byte, error) {
	e := newEncoder(discVersion, VersionCounterSize)
	e.fixed(v.ID[:])
	e.u8(v.Nonce)
	e.fixed(v.Owner[:])
	e.u64(v.Current)
	return e.finish()
}

// UnmarshalBinary decodes the record.
func (v *VersionCounter) UnmarshalBinary(data []byte) error {
	d := newDecoder(discVersion, data)
	d.fixed(v.ID[:])
	v.Nonce = d.u8()
	d.fixed(v.Owner[:])
	v.Current = d.u64()
	return d.finish()
}

// EncryptionParams holds an envelope apart from its ByteRecord so the small
// key/iv/tag fields resize without reallocating the payload.
type EncryptionParams struct {
	ID      Identifier
	Nonce   uint8
	Owner   Owner
	Version uint64
	Key     []byte
	IV      []byte
	AuthTag []byte
}

// FixedSize returns the size of the fixed fields.
func (p *EncryptionParams) FixedSize() int { return EncryptionParamsFixedSize }

// VarLens returns the lengths of key, iv and tag.
func (p *EncryptionParams) VarLens() []int {
	return []int{len(p.Key), len(p.IV), len(p.AuthTag)}
}

// MarshalBinary encodes the record.
func (p *EncryptionParams) MarshalBinary() ([]byte, error) {
	e := newEncoder(discEnvelope, encodedSize(p))
	e.fixed(p.ID[:])
	e.u8(p.Nonce)
	e.fixed(p.Owner[:])
	e.u64(p.Version)
	e.vec(p.Key)
	e.vec(p.IV)
	e.vec(p.AuthTag)
	return e.finish()
}

// UnmarshalBinary decodes the record.
func (p *EncryptionParams) UnmarshalBinary(data []byte) error {
	d := newDecoder(discEnvelope, data)
	d.fixed(p.ID[:])
	p.Nonce = d.u8()
	d.fixed(p.Owner[:])
	p.Version = d.u64()
	p.Key = d.vec()
	p.IV = d.vec()
	p.AuthTag = d.vec()
	return d.finish()
}

// LegacyStore is the single-record layout of the first schema generation:
// identity, integrity fields and payload in one record.
type LegacyStore struct {
	ID        Identifier
	Nonce     uint8
	Owner     Owner
	Size      uint64
	Checksum  checksum.Checksum
	CreatedAt uint64
	UpdatedAt uint64
	Payload   []byte
}

// FixedSize returns the size of the fixed fields.
func (l *LegacyStore) FixedSize() int { return LegacyStoreFixedSize }

// VarLens returns the payload length.
func (l *LegacyStore) VarLens() []int { return []int{len(l.Payload)} }

// MarshalBinary encodes the record.
func (l *LegacyStore) MarshalBinary() ([]byte, error) {
	e := newEncoder(discLegacy, encodedSize(l))
	e.fixed(l.ID[:])
	e.u8(l.Nonce)
	e.fixed(l.Owner[:])
	e.u64(l.Size)
	e.fixed(l.Checksum[:])
	e.u64(l.CreatedAt)
	e.u64(l.UpdatedAt)
	e.vec(l.Payload)
	return e.finish()
}

// UnmarshalBinary decodes the record.
func (l *LegacyStore) UnmarshalBinary(data []byte) error {
	d := newDecoder(discLegacy, data)
	d.fixed(l.ID[:])
	l.Nonce = d.u8()
	d.fixed(l.Owner[:])
	l.Size = d.u64()
	d.fixed(l.Checksum[:])
	l.CreatedAt = d.u64()
	l.UpdatedAt = d.u64()
	l.Payload = d.vec()
	return d.finish()
}

// Record is implemented by every record family.
type Record interface {
	FixedSize() int
	VarLens() []int
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

var (
	_ Record = (*ByteRecord)(nil)
	_ Record = (*Metadata)(nil)
	_ Record = (*VersionCounter)(nil)
	_ Record = (*EncryptionParams)(nil)
	_ Record = (*LegacyStore)(nil)
)

// encodedSize is a capacity hint for the encoder.
func encodedSize(r Record) int {
	n := r.FixedSize()
	for _, l := range r.VarLens() {
		n += lenPrefixSize + l
	}
	return n
}

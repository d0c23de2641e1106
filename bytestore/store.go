// Package bytestore implements the instruction handlers of the byte store:
// create, append, update and delete over the split ByteRecord/Metadata
// layout (versioned and un-versioned), version counters and the legacy
// single-record layout. Every handler runs as one ledger transaction and
// sizes each record to exactly fit its content.
package bytestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/capacity"
	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/metrics"
	"github.com/bitfsorg/bytestore-go/record"
)

// EnvelopeLayout selects where a versioned record keeps its encryption envelope.
type EnvelopeLayout string

const (
	// LayoutInline stores key, iv and tag in the ByteRecord.
	LayoutInline EnvelopeLayout = "inline"

	// LayoutSeparate stores them in an EncryptionParams record that resizes
	// independently of the payload.
	LayoutSeparate EnvelopeLayout = "separate"
)

// ParseEnvelopeLayout parses a layout name. The empty string selects LayoutInline.
func ParseEnvelopeLayout(s string) (EnvelopeLayout, error) {
	switch EnvelopeLayout(s) {
	case "", LayoutInline:
		return LayoutInline, nil
	case LayoutSeparate:
		return LayoutSeparate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLayout, s)
}

// Key names one stored blob. Version 0 addresses the un-versioned record of
// ID; versions start at 1.
type Key struct {
	ID      record.Identifier
	Version uint64
}

// Versioned reports whether k addresses a versioned record.
func (k Key) Versioned() bool { return k.Version != 0 }

// Result describes a committed instruction.
type Result struct {
	Key      Key
	Size     uint64
	Checksum checksum.Checksum
	Charged  uint64
	Refunded uint64
}

// DepositDelta returns the net deposit moved: positive when the owner paid.
func (r Result) DepositDelta() int64 {
	return int64(r.Charged) - int64(r.Refunded)
}

func (r *Result) add(ch capacity.Change) {
	r.Charged += ch.Charged
	r.Refunded += ch.Refunded
}

// Store executes instructions against a ledger.
type Store struct {
	ledger   ledger.Ledger
	capacity *capacity.Manager
	layout   EnvelopeLayout
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	clock    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock sets the time source for record timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

// WithCapacity sets the capacity manager.
func WithCapacity(m *capacity.Manager) Option {
	return func(s *Store) { s.capacity = m }
}

// WithEnvelopeLayout sets where versioned records keep their envelope.
func WithEnvelopeLayout(l EnvelopeLayout) Option {
	return func(s *Store) { s.layout = l }
}

// WithMetrics sets the collectors that record committed and rejected instructions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store over l.
func New(l ledger.Ledger, opts ...Option) *Store {
	s := &Store{
		ledger:   l,
		capacity: capacity.NewManager(capacity.DefaultRent(), capacity.DefaultMaxRecordSize),
		layout:   LayoutInline,
		log:      logrus.StandardLogger(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Layout returns the envelope layout in use.
func (s *Store) Layout() EnvelopeLayout { return s.layout }

func (s *Store) now() uint64 {
	return uint64(s.clock().Unix())
}

// txFunc is the body of one handler, run inside a ledger transaction.
type txFunc func(tx ledger.Tx) (Result, error)

// exec runs fn as one ledger transaction and logs and counts the outcome.
func (s *Store) exec(ctx context.Context, op instruction.Op, owner record.Owner, key Key, fn txFunc) (Result, error) {
	var res Result
	err := s.ledger.Update(ctx, func(tx ledger.Tx) error {
		var err error
		res, err = fn(tx)
		return err
	})

	entry := s.log.WithFields(logrus.Fields{
		"op":      op.String(),
		"owner":   owner.String(),
		"id":      key.ID.String(),
		"version": key.Version,
	})
	if err != nil {
		reason := rejectReason(err)
		s.metrics.Rejected(op.String(), reason)
		entry.WithError(err).WithField("reason", reason).Warn("instruction rejected")
		return Result{}, err
	}
	res.Key = key
	s.metrics.Committed(op.String(), res.Charged, res.Refunded)
	entry.WithFields(logrus.Fields{
		"size":     res.Size,
		"charged":  res.Charged,
		"refunded": res.Refunded,
	}).Debug("instruction committed")
	return res, nil
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrByteSizeMismatch, "byte_size_mismatch"},
	{ErrInvalidExpiresAt, "invalid_expires_at"},
	{ErrInvalidVersion, "invalid_version"},
	{ErrRecordNotFound, "record_not_found"},
	{ErrAddressMismatch, "address_mismatch"},
	{ErrRecordExists, "record_exists"},
	{ErrCounterInUse, "counter_in_use"},
	{ErrEnvelopeUnsupported, "envelope_unsupported"},
	{ErrInvalidSequence, "invalid_sequence"},
	{capacity.ErrInsufficientFunds, "insufficient_funds"},
	{capacity.ErrRecordTooLarge, "record_too_large"},
	{capacity.ErrCapacityOverflow, "capacity_overflow"},
	{instruction.ErrBadSignature, "bad_signature"},
	{instruction.ErrMalformed, "malformed"},
	{instruction.ErrUnknownOp, "unknown_op"},
	{instruction.ErrNilInstruction, "nil_instruction"},
	{context.Canceled, "canceled"},
}

func rejectReason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}

// ---------------------------------------------------------------------------
// Addressing
// ---------------------------------------------------------------------------

// slot is one derived record address and its nonce.
type slot struct {
	addr  address.Address
	nonce uint8
}

func resolve(tag address.Tag, owner record.Owner, id record.Identifier, version uint64) (slot, error) {
	addr, nonce, err := address.Resolve(tag, owner[:], id[:], version)
	if err != nil {
		return slot{}, err
	}
	return slot{addr: addr, nonce: nonce}, nil
}

// slots are the addresses of every record that belongs to one key.
type slots struct {
	bytes    slot
	meta     slot
	envelope slot
}

func resolveSlots(owner record.Owner, key Key) (slots, error) {
	var s slots
	var err error
	if s.bytes, err = resolve(address.TagByte, owner, key.ID, key.Version); err != nil {
		return s, err
	}
	if s.meta, err = resolve(address.TagMetadata, owner, key.ID, key.Version); err != nil {
		return s, err
	}
	if s.envelope, err = resolve(address.TagEnvelope, owner, key.ID, key.Version); err != nil {
		return s, err
	}
	return s, nil
}

func counterSlot(owner record.Owner, id record.Identifier) (slot, error) {
	return resolve(address.TagVersion, owner, id, 0)
}

func legacySlot(owner record.Owner, id record.Identifier) (slot, error) {
	return resolve(address.TagLegacy, owner, id, 0)
}

// ---------------------------------------------------------------------------
// Record access
// ---------------------------------------------------------------------------

// load decodes the record at addr into rec. A missing account yields
// ErrRecordNotFound; an account of another owner yields ErrAddressMismatch.
func load(tx ledger.Tx, owner record.Owner, addr address.Address, rec record.Record) error {
	acct, err := tx.Account(addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, addr)
	}
	if err != nil {
		return err
	}
	if acct.Owner != owner {
		return fmt.Errorf("%w: %s owned by %s", ErrAddressMismatch, addr, acct.Owner)
	}
	if err := rec.UnmarshalBinary(acct.Data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAddressMismatch, addr, err)
	}
	return nil
}

func exists(tx ledger.Tx, addr address.Address) (bool, error) {
	_, err := tx.Account(addr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ledger.ErrAccountNotFound):
		return false, nil
	}
	return false, err
}

// loadPair loads the metadata and byte record of key and checks that they
// agree with the derived addresses.
func loadPair(tx ledger.Tx, owner record.Owner, key Key, sl slots) (*record.Metadata, *record.ByteRecord, error) {
	meta := &record.Metadata{}
	if err := load(tx, owner, sl.meta.addr, meta); err != nil {
		return nil, nil, err
	}
	if err := checkMetadata(meta, owner, key, sl); err != nil {
		return nil, nil, err
	}
	br := &record.ByteRecord{}
	if err := load(tx, owner, sl.bytes.addr, br); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: byte record missing at %s", ErrAddressMismatch, sl.bytes.addr)
		}
		return nil, nil, err
	}
	return meta, br, nil
}

func checkMetadata(meta *record.Metadata, owner record.Owner, key Key, sl slots) error {
	switch {
	case meta.Owner != owner:
		return fmt.Errorf("%w: metadata owner %s", ErrAddressMismatch, meta.Owner)
	case meta.ID != key.ID:
		return fmt.Errorf("%w: metadata identifier %s", ErrAddressMismatch, meta.ID)
	case meta.Version != key.Version:
		return fmt.Errorf("%w: metadata version %d, want %d", ErrAddressMismatch, meta.Version, key.Version)
	case meta.ByteAddress != sl.bytes.addr:
		return fmt.Errorf("%w: byte address %s, derived %s", ErrAddressMismatch, meta.ByteAddress, sl.bytes.addr)
	}
	return nil
}

func checkExpiry(expires record.Optional[uint64], now uint64) error {
	if v, ok := expires.Get(); ok && v != 0 && v <= now {
		return fmt.Errorf("%w: %d is not after %d", ErrInvalidExpiresAt, v, now)
	}
	return nil
}

func hasEnvelope(e record.Envelope) bool {
	return e.Key.IsSome() || e.IV.IsSome() || e.AuthTag.IsSome()
}

package bytestore

import (
	"context"
	"fmt"
	"math"

	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// CreateArgs are the inputs of an un-versioned or legacy create.
type CreateArgs struct {
	ID      record.Identifier
	Size    uint64
	Payload []byte
}

// VersionedArgs are the inputs of a versioned create.
type VersionedArgs struct {
	ID        record.Identifier
	Version   uint64
	Payload   []byte
	Envelope  record.Envelope
	ExpiresAt record.Optional[uint64]
}

// Create stores an un-versioned blob under args.ID. The payload length must
// equal args.Size.
func (s *Store) Create(ctx context.Context, owner record.Owner, args CreateArgs) (Result, error) {
	return s.exec(ctx, instruction.OpCreate, owner, Key{ID: args.ID}, s.createTx(owner, args))
}

func (s *Store) createTx(owner record.Owner, args CreateArgs) txFunc {
	key := Key{ID: args.ID}
	return func(tx ledger.Tx) (Result, error) {
		if uint64(len(args.Payload)) != args.Size {
			return Result{}, fmt.Errorf("%w: declared %d, payload %d", ErrByteSizeMismatch, args.Size, len(args.Payload))
		}
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return Result{}, err
		}
		return s.create(tx, owner, key, sl, args.Payload, record.Envelope{}, 0)
	}
}

// CreateVersioned stores version args.Version of args.ID and advances the
// version counter, creating it on the first version.
func (s *Store) CreateVersioned(ctx context.Context, owner record.Owner, args VersionedArgs) (Result, error) {
	key := Key{ID: args.ID, Version: args.Version}
	return s.exec(ctx, instruction.OpCreateVersioned, owner, key, s.createVersionedTx(owner, args))
}

func (s *Store) createVersionedTx(owner record.Owner, args VersionedArgs) txFunc {
	key := Key{ID: args.ID, Version: args.Version}
	return func(tx ledger.Tx) (Result, error) {
		var res Result
		if err := checkExpiry(args.ExpiresAt, s.now()); err != nil {
			return res, err
		}

		cs, err := counterSlot(owner, args.ID)
		if err != nil {
			return res, err
		}
		counter, err := loadCounter(tx, owner, args.ID, cs)
		if err != nil {
			return res, err
		}
		if counter.Current == math.MaxUint64 || args.Version != counter.Current+1 {
			return res, fmt.Errorf("%w: got %d, current %d", ErrInvalidVersion, args.Version, counter.Current)
		}
		counter.Current = args.Version
		ch, err := s.capacity.Resize(tx, owner, cs.addr, counter)
		if err != nil {
			return res, err
		}

		sl, err := resolveSlots(owner, key)
		if err != nil {
			return res, err
		}
		res, err = s.create(tx, owner, key, sl, args.Payload, args.Envelope, args.ExpiresAt.OrElse(0))
		if err != nil {
			return res, err
		}
		res.add(ch)
		return res, nil
	}
}

// loadCounter returns the counter of id, or a fresh counter at version 0 if
// none exists yet.
func loadCounter(tx ledger.Tx, owner record.Owner, id record.Identifier, cs slot) (*record.VersionCounter, error) {
	ok, err := exists(tx, cs.addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &record.VersionCounter{ID: id, Nonce: cs.nonce, Owner: owner}, nil
	}
	counter := &record.VersionCounter{}
	if err := load(tx, owner, cs.addr, counter); err != nil {
		return nil, err
	}
	if counter.ID != id || counter.Owner != owner {
		return nil, fmt.Errorf("%w: version counter at %s", ErrAddressMismatch, cs.addr)
	}
	return counter, nil
}

// create allocates the byte record, envelope and metadata of key.
func (s *Store) create(tx ledger.Tx, owner record.Owner, key Key, sl slots, payload []byte, env record.Envelope, expiresAt uint64) (Result, error) {
	var res Result
	for _, addr := range []slot{sl.meta, sl.bytes} {
		ok, err := exists(tx, addr.addr)
		if err != nil {
			return res, err
		}
		if ok {
			return res, fmt.Errorf("%w: %s", ErrRecordExists, addr.addr)
		}
	}

	now := s.now()
	br := &record.ByteRecord{Nonce: sl.bytes.nonce, Payload: payload}
	if err := s.applyEnvelope(tx, owner, key, sl, br, env, &res); err != nil {
		return res, err
	}
	ch, err := s.capacity.Resize(tx, owner, sl.bytes.addr, br)
	if err != nil {
		return res, err
	}
	res.add(ch)

	meta := &record.Metadata{
		ID:          key.ID,
		Nonce:       sl.meta.nonce,
		Owner:       owner,
		Size:        uint64(len(payload)),
		Checksum:    checksum.Sum(payload),
		ByteAddress: sl.bytes.addr,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   expiresAt,
		Version:     key.Version,
		IsEncrypted: key.Versioned() && env.Encrypted(),
	}
	if ch, err = s.capacity.Resize(tx, owner, sl.meta.addr, meta); err != nil {
		return res, err
	}
	res.add(ch)

	res.Size = meta.Size
	res.Checksum = meta.Checksum
	return res, nil
}

// applyEnvelope places env according to the store layout. Inline envelopes
// are written into br; separate ones are written to (or, when env is empty,
// removed from) the EncryptionParams record of key. Un-versioned keys carry
// no envelope.
func (s *Store) applyEnvelope(tx ledger.Tx, owner record.Owner, key Key, sl slots, br *record.ByteRecord, env record.Envelope, res *Result) error {
	if !key.Versioned() {
		if hasEnvelope(env) {
			return ErrEnvelopeUnsupported
		}
		br.Key, br.IV, br.AuthTag = nil, nil, nil
		return nil
	}

	if s.layout != LayoutSeparate {
		br.Key, br.IV, br.AuthTag = env.Fields()
		return nil
	}

	br.Key, br.IV, br.AuthTag = nil, nil, nil
	if !hasEnvelope(env) {
		ok, err := exists(tx, sl.envelope.addr)
		if err != nil || !ok {
			return err
		}
		refund, err := s.capacity.Close(tx, owner, sl.envelope.addr)
		if err != nil {
			return err
		}
		res.Refunded += refund
		return nil
	}

	params := &record.EncryptionParams{
		ID:      key.ID,
		Nonce:   sl.envelope.nonce,
		Owner:   owner,
		Version: key.Version,
	}
	params.Key, params.IV, params.AuthTag = env.Fields()
	ch, err := s.capacity.Resize(tx, owner, sl.envelope.addr, params)
	if err != nil {
		return err
	}
	res.add(ch)
	return nil
}

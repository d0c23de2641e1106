package bytestore

import (
	"context"
	"fmt"

	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// The legacy handlers keep identity, integrity fields and payload in a
// single LegacyStore record. They honor the same size and checksum
// invariants as the split layout.

// CreateLegacy stores a single-record blob under args.ID.
func (s *Store) CreateLegacy(ctx context.Context, owner record.Owner, args CreateArgs) (Result, error) {
	return s.exec(ctx, instruction.OpCreateLegacy, owner, Key{ID: args.ID}, s.createLegacyTx(owner, args))
}

func (s *Store) createLegacyTx(owner record.Owner, args CreateArgs) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		var res Result
		if uint64(len(args.Payload)) != args.Size {
			return res, fmt.Errorf("%w: declared %d, payload %d", ErrByteSizeMismatch, args.Size, len(args.Payload))
		}
		ls, err := legacySlot(owner, args.ID)
		if err != nil {
			return res, err
		}
		ok, err := exists(tx, ls.addr)
		if err != nil {
			return res, err
		}
		if ok {
			return res, fmt.Errorf("%w: %s", ErrRecordExists, ls.addr)
		}

		now := s.now()
		rec := &record.LegacyStore{
			ID:        args.ID,
			Nonce:     ls.nonce,
			Owner:     owner,
			CreatedAt: now,
		}
		return s.writeLegacy(tx, owner, ls, rec, args.Payload, now)
	}
}

// AppendLegacy extends the payload of a legacy record.
func (s *Store) AppendLegacy(ctx context.Context, owner record.Owner, id record.Identifier, suffix []byte) (Result, error) {
	return s.exec(ctx, instruction.OpAppendLegacy, owner, Key{ID: id}, s.appendLegacyTx(owner, id, suffix))
}

func (s *Store) appendLegacyTx(owner record.Owner, id record.Identifier, suffix []byte) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		ls, rec, err := loadLegacy(tx, owner, id)
		if err != nil {
			return Result{}, err
		}
		payload := make([]byte, 0, len(rec.Payload)+len(suffix))
		payload = append(payload, rec.Payload...)
		payload = append(payload, suffix...)
		return s.writeLegacy(tx, owner, ls, rec, payload, s.now())
	}
}

// UpdateLegacy replaces the payload of a legacy record.
func (s *Store) UpdateLegacy(ctx context.Context, owner record.Owner, id record.Identifier, payload []byte) (Result, error) {
	return s.exec(ctx, instruction.OpUpdateLegacy, owner, Key{ID: id}, s.updateLegacyTx(owner, id, payload))
}

func (s *Store) updateLegacyTx(owner record.Owner, id record.Identifier, payload []byte) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		ls, rec, err := loadLegacy(tx, owner, id)
		if err != nil {
			return Result{}, err
		}
		return s.writeLegacy(tx, owner, ls, rec, payload, s.now())
	}
}

// DeleteLegacy closes a legacy record and refunds its deposit.
func (s *Store) DeleteLegacy(ctx context.Context, owner record.Owner, id record.Identifier) (Result, error) {
	return s.exec(ctx, instruction.OpDeleteLegacy, owner, Key{ID: id}, s.deleteLegacyTx(owner, id))
}

func (s *Store) deleteLegacyTx(owner record.Owner, id record.Identifier) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		ls, _, err := loadLegacy(tx, owner, id)
		if err != nil {
			return Result{}, err
		}
		refund, err := s.capacity.Close(tx, owner, ls.addr)
		if err != nil {
			return Result{}, err
		}
		return Result{Refunded: refund}, nil
	}
}

func loadLegacy(tx ledger.Tx, owner record.Owner, id record.Identifier) (slot, *record.LegacyStore, error) {
	ls, err := legacySlot(owner, id)
	if err != nil {
		return ls, nil, err
	}
	rec := &record.LegacyStore{}
	if err := load(tx, owner, ls.addr, rec); err != nil {
		return ls, nil, err
	}
	if rec.Owner != owner || rec.ID != id {
		return ls, nil, fmt.Errorf("%w: legacy record at %s", ErrAddressMismatch, ls.addr)
	}
	return ls, rec, nil
}

func (s *Store) writeLegacy(tx ledger.Tx, owner record.Owner, ls slot, rec *record.LegacyStore, payload []byte, now uint64) (Result, error) {
	rec.Payload = payload
	rec.Size = uint64(len(payload))
	rec.Checksum = checksum.Sum(payload)
	rec.UpdatedAt = now
	ch, err := s.capacity.Resize(tx, owner, ls.addr, rec)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Size:     rec.Size,
		Checksum: rec.Checksum,
		Charged:  ch.Charged,
		Refunded: ch.Refunded,
	}, nil
}

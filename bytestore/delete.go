package bytestore

import (
	"context"
	"fmt"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// Delete closes the byte record, metadata and any EncryptionParams record
// of key together and refunds their deposits.
func (s *Store) Delete(ctx context.Context, owner record.Owner, key Key) (Result, error) {
	return s.exec(ctx, instruction.OpDelete, owner, key, s.deleteTx(owner, key))
}

func (s *Store) deleteTx(owner record.Owner, key Key) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		var res Result
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return res, err
		}
		if _, _, err := loadPair(tx, owner, key, sl); err != nil {
			return res, err
		}

		ok, err := exists(tx, sl.envelope.addr)
		if err != nil {
			return res, err
		}
		closing := []slot{sl.bytes, sl.meta}
		if ok {
			closing = append(closing, sl.envelope)
		}
		for _, c := range closing {
			refund, err := s.capacity.Close(tx, owner, c.addr)
			if err != nil {
				return res, err
			}
			res.Refunded += refund
		}
		return res, nil
	}
}

// DeleteVersionCounter closes the version counter of id and refunds its
// deposit. Every version created under it must have been deleted first.
//
// The check derives and probes the metadata address of every version from 1
// to the counter's current value, so its cost grows linearly with the
// version history and the writer lock is held for that time. The counter
// record stores no live-version count because its layout is fixed.
func (s *Store) DeleteVersionCounter(ctx context.Context, owner record.Owner, id record.Identifier) (Result, error) {
	return s.exec(ctx, instruction.OpDeleteVersionCounter, owner, Key{ID: id}, s.deleteCounterTx(owner, id))
}

func (s *Store) deleteCounterTx(owner record.Owner, id record.Identifier) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		var res Result
		cs, err := counterSlot(owner, id)
		if err != nil {
			return res, err
		}
		counter := &record.VersionCounter{}
		if err := load(tx, owner, cs.addr, counter); err != nil {
			return res, err
		}

		for v := uint64(1); v <= counter.Current; v++ {
			ms, err := resolve(address.TagMetadata, owner, id, v)
			if err != nil {
				return res, err
			}
			live, err := exists(tx, ms.addr)
			if err != nil {
				return res, err
			}
			if live {
				return res, fmt.Errorf("%w: version %d", ErrCounterInUse, v)
			}
		}

		refund, err := s.capacity.Close(tx, owner, cs.addr)
		if err != nil {
			return res, err
		}
		res.Refunded = refund
		return res, nil
	}
}

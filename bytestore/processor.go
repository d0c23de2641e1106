package bytestore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// Receipt acknowledges an executed instruction.
type Receipt struct {
	ID           uuid.UUID
	Op           instruction.Op
	Owner        record.Owner
	Sequence     uint64
	Key          Key
	Size         uint64
	Checksum     checksum.Checksum
	DepositDelta int64
}

// Processor authenticates signed instructions and routes them to a Store.
type Processor struct {
	store *Store
}

// NewProcessor creates a Processor over s.
func NewProcessor(s *Store) *Processor {
	return &Processor{store: s}
}

// Process verifies the owner signature on signed, decodes the instruction
// and executes it. The instruction's sequence number must be one more than
// the owner's last committed sequence; it is checked and advanced in the
// same ledger transaction as the operation, so a rejected instruction
// consumes nothing and a committed one can never be applied again.
func (p *Processor) Process(ctx context.Context, signed *instruction.Signed) (*Receipt, error) {
	if signed == nil {
		p.refuse(record.Owner{}, instruction.ErrNilInstruction)
		return nil, instruction.ErrNilInstruction
	}
	ins, err := signed.Open()
	if err != nil {
		p.refuse(signed.Owner, err)
		return nil, err
	}

	owner := signed.Owner
	key, fn, err := p.plan(owner, ins)
	if err != nil {
		p.refuse(owner, err)
		return nil, err
	}
	res, err := p.store.exec(ctx, ins.Op, owner, key, func(tx ledger.Tx) (Result, error) {
		if err := advanceSequence(tx, owner, ins.Sequence); err != nil {
			return Result{}, err
		}
		return fn(tx)
	})
	if err != nil {
		return nil, err
	}
	return &Receipt{
		ID:           uuid.New(),
		Op:           ins.Op,
		Owner:        owner,
		Sequence:     ins.Sequence,
		Key:          res.Key,
		Size:         res.Size,
		Checksum:     res.Checksum,
		DepositDelta: res.DepositDelta(),
	}, nil
}

// refuse records an instruction turned away before it reached the ledger.
func (p *Processor) refuse(owner record.Owner, err error) {
	reason := rejectReason(err)
	p.store.metrics.Rejected("unverified", reason)
	p.store.log.WithFields(logrus.Fields{
		"owner":  owner.String(),
		"reason": reason,
	}).WithError(err).Warn("instruction refused")
}

func advanceSequence(tx ledger.Tx, owner record.Owner, seq uint64) error {
	last, err := tx.Sequence(owner)
	if err != nil {
		return err
	}
	if last == ^uint64(0) || seq != last+1 {
		return fmt.Errorf("%w: got %d, last %d", ErrInvalidSequence, seq, last)
	}
	return tx.SetSequence(owner, seq)
}

// plan maps ins to the key it addresses and the handler body that executes it.
func (p *Processor) plan(owner record.Owner, ins *instruction.Instruction) (Key, txFunc, error) {
	s := p.store
	unversioned := Key{ID: ins.ID}
	key := Key{ID: ins.ID, Version: ins.Version}
	switch ins.Op {
	case instruction.OpCreate:
		return unversioned, s.createTx(owner, CreateArgs{ID: ins.ID, Size: ins.Size, Payload: ins.Payload}), nil
	case instruction.OpCreateVersioned:
		return key, s.createVersionedTx(owner, VersionedArgs{
			ID:        ins.ID,
			Version:   ins.Version,
			Payload:   ins.Payload,
			Envelope:  ins.Envelope,
			ExpiresAt: ins.ExpiresAt,
		}), nil
	case instruction.OpAppend:
		return key, s.appendTx(owner, key, ins.Payload), nil
	case instruction.OpUpdate:
		return key, s.updateTx(owner, key, UpdateArgs{
			Payload:   ins.Payload,
			Envelope:  ins.Envelope,
			ExpiresAt: ins.ExpiresAt,
		}), nil
	case instruction.OpDelete:
		return key, s.deleteTx(owner, key), nil
	case instruction.OpDeleteVersionCounter:
		return unversioned, s.deleteCounterTx(owner, ins.ID), nil
	case instruction.OpCreateLegacy:
		return unversioned, s.createLegacyTx(owner, CreateArgs{ID: ins.ID, Size: ins.Size, Payload: ins.Payload}), nil
	case instruction.OpAppendLegacy:
		return unversioned, s.appendLegacyTx(owner, ins.ID, ins.Payload), nil
	case instruction.OpUpdateLegacy:
		return unversioned, s.updateLegacyTx(owner, ins.ID, ins.Payload), nil
	case instruction.OpDeleteLegacy:
		return unversioned, s.deleteLegacyTx(owner, ins.ID), nil
	}
	return Key{}, nil, fmt.Errorf("%w: %s", instruction.ErrUnknownOp, ins.Op)
}

package bytestore

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/bytestore-go/capacity"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// Fund credits amount to the owner's free balance, from which capacity
// deposits are drawn.
func (s *Store) Fund(ctx context.Context, owner record.Owner, amount uint64) error {
	err := s.ledger.Update(ctx, func(tx ledger.Tx) error {
		return capacity.Credit(tx, owner, amount)
	})
	s.logFunding("fund", owner, amount, err)
	return err
}

// Withdraw debits amount from the owner's free balance. Deposits held by
// live records cannot be withdrawn.
func (s *Store) Withdraw(ctx context.Context, owner record.Owner, amount uint64) error {
	err := s.ledger.Update(ctx, func(tx ledger.Tx) error {
		return capacity.Debit(tx, owner, amount)
	})
	s.logFunding("withdraw", owner, amount, err)
	return err
}

// Balance returns the owner's free balance.
func (s *Store) Balance(ctx context.Context, owner record.Owner) (uint64, error) {
	var bal uint64
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		var err error
		bal, err = tx.Balance(owner)
		return err
	})
	return bal, err
}

func (s *Store) logFunding(op string, owner record.Owner, amount uint64, err error) {
	entry := s.log.WithFields(logrus.Fields{"op": op, "owner": owner.String(), "amount": amount})
	if err != nil {
		entry.WithError(err).Warn("funding rejected")
		return
	}
	entry.Debug("funding committed")
}

// Sequence returns the sequence number of the owner's last committed signed
// instruction. The next instruction must carry Sequence+1.
func (s *Store) Sequence(ctx context.Context, owner record.Owner) (uint64, error) {
	var seq uint64
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		var err error
		seq, err = tx.Sequence(owner)
		return err
	})
	return seq, err
}

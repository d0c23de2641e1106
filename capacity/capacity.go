// Package capacity sizes record accounts and moves the deposits that back
// them. Every record is kept at exactly the footprint of its current
// content: growth is charged to the owner, shrinkage is refunded, and a
// closed account returns its whole deposit.
package capacity

import (
	"errors"
	"fmt"
	"math"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

const (
	// LengthPrefixSize is the u32 length prefix carried by each variable field.
	LengthPrefixSize = 4

	// DefaultMaxRecordSize is the largest account the host allows (10 MiB).
	DefaultMaxRecordSize = 10 << 20

	// DefaultRentPerByte is the deposit per allocated byte.
	DefaultRentPerByte = 6960

	// DefaultRentOverhead is the per-account byte overhead included in the deposit.
	DefaultRentOverhead = 128
)

// Footprint returns the exact encoded size of a record with the given fixed
// size and variable-field lengths.
func Footprint(fixed int, varLens ...int) int {
	n := fixed
	for _, l := range varLens {
		n += LengthPrefixSize + l
	}
	return n
}

// FootprintOf returns the footprint of r.
func FootprintOf(r record.Record) int {
	return Footprint(r.FixedSize(), r.VarLens()...)
}

// Rent prices allocated capacity.
type Rent struct {
	PerByte  uint64
	Overhead uint64
}

// DefaultRent returns the default pricing.
func DefaultRent() Rent {
	return Rent{PerByte: DefaultRentPerByte, Overhead: DefaultRentOverhead}
}

// Deposit returns the amount held against an account of size bytes:
// (Overhead + size) * PerByte.
func (r Rent) Deposit(size int) (uint64, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrCapacityOverflow, size)
	}
	units := r.Overhead + uint64(size)
	if units < r.Overhead {
		return 0, fmt.Errorf("%w: size %d", ErrCapacityOverflow, size)
	}
	if r.PerByte != 0 && units > math.MaxUint64/r.PerByte {
		return 0, fmt.Errorf("%w: size %d", ErrCapacityOverflow, size)
	}
	return units * r.PerByte, nil
}

// Change reports the effect of a Resize.
type Change struct {
	Address  address.Address
	OldSize  int
	NewSize  int
	Charged  uint64
	Refunded uint64
}

// Delta returns the net deposit movement: positive for a charge, negative
// for a refund.
func (c Change) Delta() int64 {
	return int64(c.Charged) - int64(c.Refunded)
}

// Manager resizes accounts inside a ledger transaction.
type Manager struct {
	Rent          Rent
	MaxRecordSize int
}

// NewManager creates a Manager. A non-positive maxRecordSize selects
// DefaultMaxRecordSize.
func NewManager(rent Rent, maxRecordSize int) *Manager {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &Manager{Rent: rent, MaxRecordSize: maxRecordSize}
}

// Resize writes rec at addr, allocating the account if absent, and sizes it
// to exactly FootprintOf(rec). The deposit difference is charged to or
// refunded to owner in the same transaction.
func (m *Manager) Resize(tx ledger.Tx, owner record.Owner, addr address.Address, rec record.Record) (Change, error) {
	change := Change{Address: addr}

	need := FootprintOf(rec)
	if need > m.MaxRecordSize {
		return change, fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, need, m.MaxRecordSize)
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return change, fmt.Errorf("capacity: encode record: %w", err)
	}
	if len(data) != need {
		return change, fmt.Errorf("%w: encoded %d, footprint %d", ErrLayoutDrift, len(data), need)
	}

	var oldDeposit uint64
	existing, err := tx.Account(addr)
	switch {
	case err == nil:
		if existing.Owner != owner {
			return change, fmt.Errorf("%w: %s", ErrOwnerMismatch, addr)
		}
		oldDeposit = existing.Deposit
		change.OldSize = len(existing.Data)
	case isNotFound(err):
	default:
		return change, err
	}
	change.NewSize = need

	newDeposit, err := m.Rent.Deposit(need)
	if err != nil {
		return change, err
	}

	balance, err := tx.Balance(owner)
	if err != nil {
		return change, err
	}
	if newDeposit > oldDeposit {
		change.Charged = newDeposit - oldDeposit
		if balance < change.Charged {
			return change, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, change.Charged, balance)
		}
		balance -= change.Charged
	} else {
		change.Refunded = oldDeposit - newDeposit
		if balance+change.Refunded < balance {
			return change, fmt.Errorf("%w: balance", ErrCapacityOverflow)
		}
		balance += change.Refunded
	}

	if change.Charged != 0 || change.Refunded != 0 {
		if err := tx.SetBalance(owner, balance); err != nil {
			return change, err
		}
	}
	if err := tx.PutAccount(addr, &ledger.Account{Owner: owner, Deposit: newDeposit, Data: data}); err != nil {
		return change, err
	}
	return change, nil
}

// Close deletes the account at addr and refunds its whole deposit to owner.
func (m *Manager) Close(tx ledger.Tx, owner record.Owner, addr address.Address) (uint64, error) {
	acct, err := tx.Account(addr)
	if err != nil {
		return 0, err
	}
	if acct.Owner != owner {
		return 0, fmt.Errorf("%w: %s", ErrOwnerMismatch, addr)
	}
	if err := Credit(tx, owner, acct.Deposit); err != nil {
		return 0, err
	}
	if err := tx.DeleteAccount(addr); err != nil {
		return 0, err
	}
	return acct.Deposit, nil
}

// Credit adds amount to the owner's free balance.
func Credit(tx ledger.Tx, owner record.Owner, amount uint64) error {
	balance, err := tx.Balance(owner)
	if err != nil {
		return err
	}
	if balance+amount < balance {
		return fmt.Errorf("%w: balance", ErrCapacityOverflow)
	}
	return tx.SetBalance(owner, balance+amount)
}

// Debit removes amount from the owner's free balance.
func Debit(tx ledger.Tx, owner record.Owner, amount uint64) error {
	balance, err := tx.Balance(owner)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, balance)
	}
	return tx.SetBalance(owner, balance-amount)
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotFound)
}

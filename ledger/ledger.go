// Package ledger is the address-keyed arena that holds record accounts and
// owner balances. Every mutation runs inside a transaction that either
// commits in full or leaves no trace.
package ledger

import (
	"context"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/record"
)

// Account is the allocated storage behind one record. Capacity is len(Data);
// Deposit is the amount held against that capacity on behalf of Owner.
type Account struct {
	Owner   record.Owner
	Deposit uint64
	Data    []byte
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Data = make([]byte, len(a.Data))
	copy(cp.Data, a.Data)
	return &cp
}

// Tx is a ledger transaction.
type Tx interface {
	// Account returns a copy of the account at addr.
	Account(addr address.Address) (*Account, error)

	// PutAccount creates or replaces the account at addr.
	PutAccount(addr address.Address, acct *Account) error

	// DeleteAccount removes the account at addr.
	DeleteAccount(addr address.Address) error

	// Balance returns the owner's free balance (0 if never funded).
	Balance(owner record.Owner) (uint64, error)

	// SetBalance sets the owner's free balance.
	SetBalance(owner record.Owner, amount uint64) error

	// Sequence returns the sequence number of the last signed instruction
	// the owner committed (0 if none).
	Sequence(owner record.Owner) (uint64, error)

	// SetSequence records the owner's last committed sequence number.
	SetSequence(owner record.Owner, seq uint64) error

	// ForEachAccount calls fn for every account in address order. fn must
	// not write to the transaction.
	ForEachAccount(fn func(addr address.Address, acct *Account) error) error
}

// Ledger runs transactions against the account arena.
type Ledger interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing it wrote is kept.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error

	// Close releases the ledger's resources.
	Close() error
}

package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/record"
)

// MemLedger is an in-memory Ledger. Writers are serialized; each Update
// stages its writes in an overlay that is applied only when fn succeeds.
type MemLedger struct {
	mu       sync.RWMutex
	accounts map[address.Address]*Account
	balances map[record.Owner]uint64
	seqs     map[record.Owner]uint64
}

// Compile-time interface check.
var _ Ledger = (*MemLedger)(nil)

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		accounts: make(map[address.Address]*Account),
		balances: make(map[record.Owner]uint64),
		seqs:     make(map[record.Owner]uint64),
	}
}

// Update runs fn in a read-write transaction.
func (l *MemLedger) Update(ctx context.Context, fn func(Tx) error) error {
	if fn == nil {
		return fmt.Errorf("%w: transaction func", ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{
		l:        l,
		writable: true,
		accounts: make(map[address.Address]*Account),
		balances: make(map[record.Owner]uint64),
		seqs:     make(map[record.Owner]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	// Commit the overlay. A nil entry marks a deletion.
	for addr, acct := range tx.accounts {
		if acct == nil {
			delete(l.accounts, addr)
			continue
		}
		l.accounts[addr] = acct
	}
	for owner, bal := range tx.balances {
		l.balances[owner] = bal
	}
	for owner, seq := range tx.seqs {
		l.seqs[owner] = seq
	}
	return nil
}

// View runs fn in a read-only transaction.
func (l *MemLedger) View(ctx context.Context, fn func(Tx) error) error {
	if fn == nil {
		return fmt.Errorf("%w: transaction func", ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&memTx{l: l})
}

// Close is a no-op.
func (l *MemLedger) Close() error { return nil }

// memTx reads through its overlay to the committed maps. Caller holds l.mu.
type memTx struct {
	l        *MemLedger
	writable bool
	accounts map[address.Address]*Account
	balances map[record.Owner]uint64
	seqs     map[record.Owner]uint64
}

func (tx *memTx) Account(addr address.Address) (*Account, error) {
	if acct, staged := tx.accounts[addr]; staged {
		if acct == nil {
			return nil, ErrAccountNotFound
		}
		return acct.Clone(), nil
	}
	acct, ok := tx.l.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct.Clone(), nil
}

func (tx *memTx) PutAccount(addr address.Address, acct *Account) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if acct == nil {
		return fmt.Errorf("%w: account", ErrNilParam)
	}
	tx.accounts[addr] = acct.Clone()
	return nil
}

func (tx *memTx) DeleteAccount(addr address.Address) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if _, err := tx.Account(addr); err != nil {
		return err
	}
	tx.accounts[addr] = nil
	return nil
}

func (tx *memTx) Balance(owner record.Owner) (uint64, error) {
	if bal, staged := tx.balances[owner]; staged {
		return bal, nil
	}
	return tx.l.balances[owner], nil
}

func (tx *memTx) SetBalance(owner record.Owner, amount uint64) error {
	if !tx.writable {
		return ErrReadOnly
	}
	tx.balances[owner] = amount
	return nil
}

func (tx *memTx) Sequence(owner record.Owner) (uint64, error) {
	if seq, staged := tx.seqs[owner]; staged {
		return seq, nil
	}
	return tx.l.seqs[owner], nil
}

func (tx *memTx) SetSequence(owner record.Owner, seq uint64) error {
	if !tx.writable {
		return ErrReadOnly
	}
	tx.seqs[owner] = seq
	return nil
}

func (tx *memTx) ForEachAccount(fn func(addr address.Address, acct *Account) error) error {
	seen := make(map[address.Address]bool, len(tx.l.accounts)+len(tx.accounts))
	addrs := make([]address.Address, 0, len(tx.l.accounts)+len(tx.accounts))
	for addr := range tx.l.accounts {
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	for addr := range tx.accounts {
		if !seen[addr] {
			addrs = append(addrs, addr)
		}
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	for _, addr := range addrs {
		acct, err := tx.Account(addr)
		if errors.Is(err, ErrAccountNotFound) {
			continue // deleted in this transaction
		}
		if err != nil {
			return err
		}
		if err := fn(addr, acct); err != nil {
			return err
		}
	}
	return nil
}

package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/record"
)

var (
	bucketAccounts  = []byte("accounts")
	bucketBalances  = []byte("balances")
	bucketSequences = []byte("sequences")
)

// BoltLedger persists accounts, balances and sequence numbers in a bbolt database. bbolt
// allows one writer at a time, which gives every Update exclusive access to
// every address it touches.
type BoltLedger struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Ledger = (*BoltLedger)(nil)

// OpenBoltLedger opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, bucketBalances, bucketSequences} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("ledger: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// Path returns the database file path.
func (l *BoltLedger) Path() string { return l.db.Path() }

// Update runs fn in a bbolt read-write transaction.
func (l *BoltLedger) Update(ctx context.Context, fn func(Tx) error) error {
	if fn == nil {
		return fmt.Errorf("%w: transaction func", ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Update(func(btx *bbolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// View runs fn in a bbolt read-only transaction.
func (l *BoltLedger) View(ctx context.Context, fn func(Tx) error) error {
	if fn == nil {
		return fmt.Errorf("%w: transaction func", ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.View(func(btx *bbolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

type boltTx struct {
	tx *bbolt.Tx
}

func (t *boltTx) Account(addr address.Address) (*Account, error) {
	data := t.tx.Bucket(bucketAccounts).Get(addr[:])
	if data == nil {
		return nil, ErrAccountNotFound
	}
	var acct Account
	if err := decodeGob(data, &acct); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptAccount, addr, err)
	}
	return &acct, nil
}

func (t *boltTx) PutAccount(addr address.Address, acct *Account) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	if acct == nil {
		return fmt.Errorf("%w: account", ErrNilParam)
	}
	data, err := encodeGob(acct)
	if err != nil {
		return fmt.Errorf("ledger: encode account: %w", err)
	}
	if err := t.tx.Bucket(bucketAccounts).Put(addr[:], data); err != nil {
		return fmt.Errorf("ledger: put account: %w", err)
	}
	return nil
}

func (t *boltTx) DeleteAccount(addr address.Address) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	b := t.tx.Bucket(bucketAccounts)
	if b.Get(addr[:]) == nil {
		return ErrAccountNotFound
	}
	if err := b.Delete(addr[:]); err != nil {
		return fmt.Errorf("ledger: delete account: %w", err)
	}
	return nil
}

func (t *boltTx) Balance(owner record.Owner) (uint64, error) {
	return t.getU64(bucketBalances, owner, "balance")
}

func (t *boltTx) SetBalance(owner record.Owner, amount uint64) error {
	return t.putU64(bucketBalances, owner, amount, "balance")
}

func (t *boltTx) Sequence(owner record.Owner) (uint64, error) {
	return t.getU64(bucketSequences, owner, "sequence")
}

func (t *boltTx) SetSequence(owner record.Owner, seq uint64) error {
	return t.putU64(bucketSequences, owner, seq, "sequence")
}

// getU64 reads a big-endian counter keyed by owner; absent keys read as 0.
func (t *boltTx) getU64(bucket []byte, owner record.Owner, what string) (uint64, error) {
	v := t.tx.Bucket(bucket).Get(owner[:])
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("%w: %s for %s is %d bytes", ErrCorruptAccount, what, owner, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (t *boltTx) putU64(bucket []byte, owner record.Owner, n uint64, what string) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, n)
	if err := t.tx.Bucket(bucket).Put(owner[:], v); err != nil {
		return fmt.Errorf("ledger: put %s: %w", what, err)
	}
	return nil
}

func (t *boltTx) ForEachAccount(fn func(addr address.Address, acct *Account) error) error {
	return t.tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
		if len(k) != address.Size {
			return fmt.Errorf("%w: key of %d bytes", ErrCorruptAccount, len(k))
		}
		var addr address.Address
		copy(addr[:], k)
		var acct Account
		if err := decodeGob(v, &acct); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCorruptAccount, addr, err)
		}
		return fn(addr, &acct)
	})
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

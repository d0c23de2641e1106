package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/record"
)

var errAbort = errors.New("abort")

func tempBoltLedger(t *testing.T) *BoltLedger {
	t.Helper()
	l, err := OpenBoltLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testAddr(seed byte) address.Address {
	var a address.Address
	for i := range a {
		a[i] = seed
	}
	return a
}

func testOwner(seed byte) record.Owner {
	var o record.Owner
	o[0] = 0x02
	o[1] = seed
	return o
}

// forEachLedger runs fn against both implementations.
func forEachLedger(t *testing.T, fn func(t *testing.T, l Ledger)) {
	t.Run("mem", func(t *testing.T) { fn(t, NewMemLedger()) })
	t.Run("bolt", func(t *testing.T) { fn(t, tempBoltLedger(t)) })
}

func TestLedger_PutGetDelete(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		addr := testAddr(1)
		acct := &Account{Owner: testOwner(1), Deposit: 42, Data: []byte{1, 2, 3}}

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			return tx.PutAccount(addr, acct)
		}))

		require.NoError(t, l.View(ctx, func(tx Tx) error {
			got, err := tx.Account(addr)
			require.NoError(t, err)
			assert.Equal(t, acct.Owner, got.Owner)
			assert.Equal(t, uint64(42), got.Deposit)
			assert.Equal(t, []byte{1, 2, 3}, got.Data)
			return nil
		}))

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			return tx.DeleteAccount(addr)
		}))
		err := l.View(ctx, func(tx Tx) error {
			_, err := tx.Account(addr)
			return err
		})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestLedger_RollbackOnError(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		owner := testOwner(2)

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			return tx.SetBalance(owner, 100)
		}))

		err := l.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.SetBalance(owner, 1))
			require.NoError(t, tx.PutAccount(testAddr(2), &Account{Owner: owner, Data: []byte{9}}))

			// The transaction sees its own writes.
			bal, err := tx.Balance(owner)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), bal)
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		require.NoError(t, l.View(ctx, func(tx Tx) error {
			bal, err := tx.Balance(owner)
			require.NoError(t, err)
			assert.Equal(t, uint64(100), bal, "balance must be unchanged")
			_, err = tx.Account(testAddr(2))
			assert.ErrorIs(t, err, ErrAccountNotFound)
			return nil
		}))
	})
}

func TestLedger_ViewIsReadOnly(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		err := l.View(context.Background(), func(tx Tx) error {
			return tx.PutAccount(testAddr(3), &Account{})
		})
		assert.ErrorIs(t, err, ErrReadOnly)

		err = l.View(context.Background(), func(tx Tx) error {
			return tx.SetBalance(testOwner(3), 1)
		})
		assert.ErrorIs(t, err, ErrReadOnly)

		err = l.View(context.Background(), func(tx Tx) error {
			return tx.SetSequence(testOwner(3), 1)
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestLedger_DeleteMissing(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		err := l.Update(context.Background(), func(tx Tx) error {
			return tx.DeleteAccount(testAddr(4))
		})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestLedger_ForEachAccountOrdered(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			for _, seed := range []byte{5, 1, 3} {
				if err := tx.PutAccount(testAddr(seed), &Account{Data: []byte{seed}}); err != nil {
					return err
				}
			}
			return nil
		}))

		var seen []byte
		require.NoError(t, l.View(ctx, func(tx Tx) error {
			return tx.ForEachAccount(func(addr address.Address, acct *Account) error {
				seen = append(seen, acct.Data[0])
				return nil
			})
		}))
		assert.Equal(t, []byte{1, 3, 5}, seen)
	})
}

func TestLedger_Sequence(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		owner := testOwner(8)

		require.NoError(t, l.View(ctx, func(tx Tx) error {
			seq, err := tx.Sequence(owner)
			require.NoError(t, err)
			assert.Zero(t, seq)
			return nil
		}))

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			return tx.SetSequence(owner, 3)
		}))

		err := l.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.SetSequence(owner, 4))
			seq, err := tx.Sequence(owner)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), seq)
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		require.NoError(t, l.View(ctx, func(tx Tx) error {
			seq, err := tx.Sequence(owner)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), seq, "aborted sequence must not persist")
			other, err := tx.Sequence(testOwner(9))
			require.NoError(t, err)
			assert.Zero(t, other)
			return nil
		}))
	})
}

func TestLedger_UnfundedBalanceIsZero(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		require.NoError(t, l.View(context.Background(), func(tx Tx) error {
			bal, err := tx.Balance(testOwner(9))
			require.NoError(t, err)
			assert.Zero(t, bal)
			return nil
		}))
	})
}

func TestLedger_CancelledContext(t *testing.T) {
	forEachLedger(t, func(t *testing.T, l Ledger) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := l.Update(ctx, func(tx Tx) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemLedger_AccountsAreCopied(t *testing.T) {
	l := NewMemLedger()
	ctx := context.Background()
	acct := &Account{Data: []byte{1}}
	require.NoError(t, l.Update(ctx, func(tx Tx) error {
		return tx.PutAccount(testAddr(6), acct)
	}))
	acct.Data[0] = 99

	require.NoError(t, l.View(ctx, func(tx Tx) error {
		got, err := tx.Account(testAddr(6))
		require.NoError(t, err)
		assert.Equal(t, byte(1), got.Data[0])
		got.Data[0] = 77
		return nil
	}))
	require.NoError(t, l.View(ctx, func(tx Tx) error {
		got, err := tx.Account(testAddr(6))
		require.NoError(t, err)
		assert.Equal(t, byte(1), got.Data[0])
		return nil
	}))
}

func TestBoltLedger_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	l1, err := OpenBoltLedger(dbPath)
	require.NoError(t, err)
	require.NoError(t, l1.Update(ctx, func(tx Tx) error {
		if err := tx.SetBalance(testOwner(7), 500); err != nil {
			return err
		}
		if err := tx.SetSequence(testOwner(7), 12); err != nil {
			return err
		}
		return tx.PutAccount(testAddr(7), &Account{Owner: testOwner(7), Deposit: 5, Data: []byte("x")})
	}))
	require.NoError(t, l1.Close())

	l2, err := OpenBoltLedger(dbPath)
	require.NoError(t, err)
	defer l2.Close()
	assert.Equal(t, dbPath, l2.Path())

	require.NoError(t, l2.View(ctx, func(tx Tx) error {
		bal, err := tx.Balance(testOwner(7))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), bal)
		seq, err := tx.Sequence(testOwner(7))
		require.NoError(t, err)
		assert.Equal(t, uint64(12), seq)
		got, err := tx.Account(testAddr(7))
		require.NoError(t, err)
		assert.Equal(t, uint64(5), got.Deposit)
		return nil
	}))
}

package bytestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

func TestListByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := testID(t, "a"), testID(t, "b"), testID(t, "c")

	_, err := f.store.Create(ctx, f.owner, CreateArgs{ID: a, Size: 1, Payload: []byte{1}})
	require.NoError(t, err)
	for v := uint64(1); v <= 3; v++ {
		_, err = f.store.CreateVersioned(ctx, f.owner, VersionedArgs{ID: b, Version: v, Payload: []byte{byte(v)}})
		require.NoError(t, err)
	}
	_, err = f.store.Delete(ctx, f.owner, Key{ID: b, Version: 2})
	require.NoError(t, err)
	_, err = f.store.CreateLegacy(ctx, f.owner, CreateArgs{ID: c, Size: 2, Payload: []byte("cc")})
	require.NoError(t, err)

	// Another owner's records under the same identifiers stay invisible.
	other := newOwner(t)
	require.NoError(t, f.store.Fund(ctx, other, testFunding))
	_, err = f.store.Create(ctx, other, CreateArgs{ID: a, Size: 1, Payload: []byte{2}})
	require.NoError(t, err)
	_, err = f.store.CreateVersioned(ctx, other, VersionedArgs{ID: b, Version: 1, Payload: []byte{2}})
	require.NoError(t, err)

	t.Run("metadata", func(t *testing.T) {
		metas, err := f.store.ListMetadataByOwner(ctx, f.owner)
		require.NoError(t, err)
		var keys []Key
		for _, m := range metas {
			assert.Equal(t, f.owner, m.Owner)
			keys = append(keys, Key{ID: m.ID, Version: m.Version})
		}
		assert.Equal(t, []Key{{ID: a}, {ID: b, Version: 1}, {ID: b, Version: 3}}, keys)
	})

	t.Run("counters", func(t *testing.T) {
		counters, err := f.store.ListCountersByOwner(ctx, f.owner)
		require.NoError(t, err)
		require.Len(t, counters, 1)
		assert.Equal(t, b, counters[0].ID)
		assert.Equal(t, uint64(3), counters[0].Current)
	})

	t.Run("legacy", func(t *testing.T) {
		recs, err := f.store.ListLegacyByOwner(ctx, f.owner)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, c, recs[0].ID)
		assert.Equal(t, []byte("cc"), recs[0].Payload)
	})

	t.Run("other owner", func(t *testing.T) {
		metas, err := f.store.ListMetadataByOwner(ctx, other)
		require.NoError(t, err)
		assert.Len(t, metas, 2)
		counters, err := f.store.ListCountersByOwner(ctx, other)
		require.NoError(t, err)
		assert.Len(t, counters, 1)
		recs, err := f.store.ListLegacyByOwner(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestListByOwner_Empty(t *testing.T) {
	f := newFixture(t)
	metas, err := f.store.ListMetadataByOwner(context.Background(), newOwner(t))
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestListByOwner_CorruptRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.CreateVersioned(ctx, f.owner, VersionedArgs{ID: testID(t, "bad"), Version: 1, Payload: []byte{1}})
	require.NoError(t, err)

	// Truncate the counter so its header still names the family but the body
	// no longer decodes.
	cs, err := counterSlot(f.owner, testID(t, "bad"))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Update(ctx, func(tx ledger.Tx) error {
		acct, err := tx.Account(cs.addr)
		if err != nil {
			return err
		}
		acct.Data = acct.Data[:record.DiscriminatorSize+1]
		return tx.PutAccount(cs.addr, acct)
	}))

	_, err = f.store.ListCountersByOwner(ctx, f.owner)
	assert.ErrorIs(t, err, ledger.ErrCorruptAccount)
}

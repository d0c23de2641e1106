package bytestore

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/bitfsorg/bytestore-go/address"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// The by-owner listings scan every account in the ledger and keep those
// held by owner. There is no owner index, so each call costs one pass over
// the ledger.

// ListMetadataByOwner returns the metadata of every live split-layout blob
// of owner, versioned and un-versioned, ordered by identifier then version.
func (s *Store) ListMetadataByOwner(ctx context.Context, owner record.Owner) ([]*record.Metadata, error) {
	var out []*record.Metadata
	err := s.scanOwner(ctx, owner, record.KindMetadata, func(data []byte) error {
		meta := &record.Metadata{}
		if err := meta.UnmarshalBinary(data); err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].ID[:], out[j].ID[:]); c != 0 {
			return c < 0
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// ListCountersByOwner returns every version counter of owner, ordered by identifier.
func (s *Store) ListCountersByOwner(ctx context.Context, owner record.Owner) ([]*record.VersionCounter, error) {
	var out []*record.VersionCounter
	err := s.scanOwner(ctx, owner, record.KindVersion, func(data []byte) error {
		counter := &record.VersionCounter{}
		if err := counter.UnmarshalBinary(data); err != nil {
			return err
		}
		out = append(out, counter)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

// ListLegacyByOwner returns every legacy record of owner, ordered by identifier.
func (s *Store) ListLegacyByOwner(ctx context.Context, owner record.Owner) ([]*record.LegacyStore, error) {
	var out []*record.LegacyStore
	err := s.scanOwner(ctx, owner, record.KindLegacy, func(data []byte) error {
		rec := &record.LegacyStore{}
		if err := rec.UnmarshalBinary(data); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

// scanOwner calls fn with the data of every account of owner whose record
// family is kind.
func (s *Store) scanOwner(ctx context.Context, owner record.Owner, kind string, fn func(data []byte) error) error {
	return s.ledger.View(ctx, func(tx ledger.Tx) error {
		return tx.ForEachAccount(func(addr address.Address, acct *ledger.Account) error {
			if acct.Owner != owner || record.Kind(acct.Data) != kind {
				return nil
			}
			if err := fn(acct.Data); err != nil {
				return fmt.Errorf("%w: %s: %w", ledger.ErrCorruptAccount, addr, err)
			}
			return nil
		})
	})
}

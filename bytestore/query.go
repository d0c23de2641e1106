package bytestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// GetMetadata returns the metadata record of key.
func (s *Store) GetMetadata(ctx context.Context, owner record.Owner, key Key) (*record.Metadata, error) {
	var meta *record.Metadata
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return err
		}
		meta = &record.Metadata{}
		if err := load(tx, owner, sl.meta.addr, meta); err != nil {
			return err
		}
		return checkMetadata(meta, owner, key, sl)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// GetBytes returns the byte record of key.
func (s *Store) GetBytes(ctx context.Context, owner record.Owner, key Key) (*record.ByteRecord, error) {
	var br *record.ByteRecord
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return err
		}
		_, br, err = loadPair(tx, owner, key, sl)
		return err
	})
	if err != nil {
		return nil, err
	}
	return br, nil
}

// GetEncryptionParams returns the separately stored envelope of key.
func (s *Store) GetEncryptionParams(ctx context.Context, owner record.Owner, key Key) (*record.EncryptionParams, error) {
	params := &record.EncryptionParams{}
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return err
		}
		if err := load(tx, owner, sl.envelope.addr, params); err != nil {
			return err
		}
		if params.ID != key.ID || params.Version != key.Version {
			return fmt.Errorf("%w: encryption params at %s", ErrAddressMismatch, sl.envelope.addr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

// GetVersionCounter returns the version counter of id.
func (s *Store) GetVersionCounter(ctx context.Context, owner record.Owner, id record.Identifier) (*record.VersionCounter, error) {
	counter := &record.VersionCounter{}
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		cs, err := counterSlot(owner, id)
		if err != nil {
			return err
		}
		return load(tx, owner, cs.addr, counter)
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// CurrentVersion returns the highest version created for id, or 0 if no
// counter exists.
func (s *Store) CurrentVersion(ctx context.Context, owner record.Owner, id record.Identifier) (uint64, error) {
	counter, err := s.GetVersionCounter(ctx, owner, id)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Current, nil
}

// GetLegacy returns the legacy record of id.
func (s *Store) GetLegacy(ctx context.Context, owner record.Owner, id record.Identifier) (*record.LegacyStore, error) {
	var rec *record.LegacyStore
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		var err error
		_, rec, err = loadLegacy(tx, owner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListVersions returns the metadata of the last limit versions of id, oldest
// first. Deleted versions are skipped. A non-positive limit lists every
// version.
func (s *Store) ListVersions(ctx context.Context, owner record.Owner, id record.Identifier, limit int) ([]*record.Metadata, error) {
	var out []*record.Metadata
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		cs, err := counterSlot(owner, id)
		if err != nil {
			return err
		}
		counter := &record.VersionCounter{}
		if err := load(tx, owner, cs.addr, counter); err != nil {
			return err
		}

		first := uint64(1)
		if limit > 0 && counter.Current > uint64(limit) {
			first = counter.Current - uint64(limit) + 1
		}
		for v := first; v <= counter.Current; v++ {
			key := Key{ID: id, Version: v}
			sl, err := resolveSlots(owner, key)
			if err != nil {
				return err
			}
			meta := &record.Metadata{}
			err = load(tx, owner, sl.meta.addr, meta)
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := checkMetadata(meta, owner, key, sl); err != nil {
				return err
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Integrity is the outcome of VerifyIntegrity.
type Integrity struct {
	Size     uint64
	Checksum checksum.Checksum
	Expired  bool
}

// VerifyIntegrity recomputes the size and checksum of the stored payload of
// key and compares them with its metadata. It fails with ErrIntegrity when
// they disagree and reports whether the record has expired.
func (s *Store) VerifyIntegrity(ctx context.Context, owner record.Owner, key Key) (Integrity, error) {
	var out Integrity
	err := s.ledger.View(ctx, func(tx ledger.Tx) error {
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return err
		}
		meta, br, err := loadPair(tx, owner, key, sl)
		if err != nil {
			return err
		}
		if uint64(len(br.Payload)) != meta.Size {
			return fmt.Errorf("%w: size %d, payload %d", ErrIntegrity, meta.Size, len(br.Payload))
		}
		if err := checksum.Verify(meta.Checksum, br.Payload); err != nil {
			return fmt.Errorf("%w: %w", ErrIntegrity, err)
		}
		out = Integrity{
			Size:     meta.Size,
			Checksum: meta.Checksum,
			Expired:  meta.Expired(s.now()),
		}
		return nil
	})
	return out, err
}

package bytestore

import (
	"context"

	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// UpdateArgs are the inputs of Update.
type UpdateArgs struct {
	Payload  []byte
	Envelope record.Envelope

	// ExpiresAt replaces the stored expiry when present; Some(0) clears it.
	// When absent the stored expiry is kept.
	ExpiresAt record.Optional[uint64]
}

// Update replaces the payload and envelope of an existing record.
func (s *Store) Update(ctx context.Context, owner record.Owner, key Key, args UpdateArgs) (Result, error) {
	return s.exec(ctx, instruction.OpUpdate, owner, key, s.updateTx(owner, key, args))
}

func (s *Store) updateTx(owner record.Owner, key Key, args UpdateArgs) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		var res Result
		now := s.now()
		if err := checkExpiry(args.ExpiresAt, now); err != nil {
			return res, err
		}
		if !key.Versioned() && hasEnvelope(args.Envelope) {
			return res, ErrEnvelopeUnsupported
		}

		sl, err := resolveSlots(owner, key)
		if err != nil {
			return res, err
		}
		meta, br, err := loadPair(tx, owner, key, sl)
		if err != nil {
			return res, err
		}

		br.Payload = args.Payload
		if err := s.applyEnvelope(tx, owner, key, sl, br, args.Envelope, &res); err != nil {
			return res, err
		}
		ch, err := s.capacity.Resize(tx, owner, sl.bytes.addr, br)
		if err != nil {
			return res, err
		}
		res.add(ch)

		meta.Size = uint64(len(args.Payload))
		meta.Checksum = checksum.Sum(args.Payload)
		meta.UpdatedAt = now
		meta.IsEncrypted = key.Versioned() && args.Envelope.Encrypted()
		if v, ok := args.ExpiresAt.Get(); ok {
			meta.ExpiresAt = v
		}
		if ch, err = s.capacity.Resize(tx, owner, sl.meta.addr, meta); err != nil {
			return res, err
		}
		res.add(ch)

		res.Size = meta.Size
		res.Checksum = meta.Checksum
		return res, nil
	}
}

package bytestore

import (
	"context"

	"github.com/bitfsorg/bytestore-go/checksum"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/record"
)

// Append extends the payload of an existing record with suffix. The
// envelope and expiry are left as they are.
func (s *Store) Append(ctx context.Context, owner record.Owner, key Key, suffix []byte) (Result, error) {
	return s.exec(ctx, instruction.OpAppend, owner, key, s.appendTx(owner, key, suffix))
}

func (s *Store) appendTx(owner record.Owner, key Key, suffix []byte) txFunc {
	return func(tx ledger.Tx) (Result, error) {
		var res Result
		sl, err := resolveSlots(owner, key)
		if err != nil {
			return res, err
		}
		meta, br, err := loadPair(tx, owner, key, sl)
		if err != nil {
			return res, err
		}

		payload := make([]byte, 0, len(br.Payload)+len(suffix))
		payload = append(payload, br.Payload...)
		payload = append(payload, suffix...)
		br.Payload = payload

		ch, err := s.capacity.Resize(tx, owner, sl.bytes.addr, br)
		if err != nil {
			return res, err
		}
		res.add(ch)

		meta.Size = uint64(len(payload))
		meta.Checksum = checksum.Sum(payload)
		meta.UpdatedAt = s.now()
		if ch, err = s.capacity.Resize(tx, owner, sl.meta.addr, meta); err != nil {
			return res, err
		}
		res.add(ch)

		res.Size = meta.Size
		res.Checksum = meta.Checksum
		return res, nil
	}
}

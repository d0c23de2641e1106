package instruction

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/bitfsorg/bytestore-go/record"
)

// Signed is an instruction body together with its owner and signature.
type Signed struct {
	Owner     record.Owner
	Signature []byte // DER
	Body      []byte
}

// Digest returns the double SHA-256 of an instruction body; it is the
// message that owners sign.
func Digest(body []byte) []byte {
	return bsvhash.Sha256d(body)
}

// Sign encodes ins and signs it with priv. The owner is priv's public key.
func Sign(ins *Instruction, priv *ec.PrivateKey) (*Signed, error) {
	if priv == nil {
		return nil, ErrNilKey
	}
	body, err := ins.Marshal()
	if err != nil {
		return nil, err
	}
	sig, err := priv.Sign(Digest(body))
	if err != nil {
		return nil, fmt.Errorf("instruction: sign: %w", err)
	}
	return &Signed{
		Owner:     record.OwnerFromPublicKey(priv.PubKey()),
		Signature: sig.Serialize(),
		Body:      body,
	}, nil
}

// Verify checks the signature against the owner key.
func (s *Signed) Verify() error {
	if s == nil {
		return ErrNilInstruction
	}
	pub, err := s.Owner.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	sig, err := ec.ParseDERSignature(s.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if !sig.Verify(Digest(s.Body), pub) {
		return ErrBadSignature
	}
	return nil
}

// Open verifies s and decodes its body.
func (s *Signed) Open() (*Instruction, error) {
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return Unmarshal(s.Body)
}

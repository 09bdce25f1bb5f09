// Package zkrand defines the verifiable-randomness capability PoRD leader
// election is driven by. The zero-knowledge proving/verification backend
// itself is out of scope for this repository (spec §1); the core only
// consumes Prove/Verify and trusts that a Receipt's journal has already
// been checked against a pinned proving-program identifier by the backend
// before its bytes are used (spec §9 Open Questions).
package zkrand

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tolelom/sequencer/crypto"
)

// JournalSize is the fixed size of the random byte string a Receipt's
// journal decodes to.
const JournalSize = 32

// Receipt is an opaque, signed artifact produced by the proving backend.
// Seal is the backend-specific proof bytes; Journal is the public output
// the proof attests to (here: exactly JournalSize random bytes).
type Receipt struct {
	Journal [JournalSize]byte `json:"journal"`
	Seal    []byte            `json:"seal"`
}

// RandomBigEndian interprets the journal as an unsigned big-endian integer,
// used by leader election to compute R mod N.
func (r Receipt) RandomBigEndian() []byte {
	return r.Journal[:]
}

// Prover is the capability the consensus engine consumes. Prove is called
// once per height by the round's committing validator with inputs
// (validator pubkey, next height big-endian); Verify checks a Receipt's
// journal against its seal. The commitment path (RoundState.InsertCommitment
// and the node's /commit handler) does not call Verify; it uses received
// journals as they arrive.
type Prover interface {
	Prove(validator crypto.PubKey, nextHeightBE []byte) (Receipt, error)
	Verify(r Receipt) error
}

// DeterministicProver is a stand-in for an external zk proving backend: it
// derives "randomness" as an HMAC over (validator, height) under a shared
// network seed, and a matching Verify recomputes the same HMAC in place of
// checking the proof against a pinned program identifier. This keeps the
// core's contract identical to a real backend's while requiring no
// external prover process.
type DeterministicProver struct {
	NetworkSeed []byte
}

// NewDeterministicProver creates a Prover seeded by seed. All validators in
// a deployment must share the same seed so each can independently verify
// every other validator's receipts.
func NewDeterministicProver(seed []byte) *DeterministicProver {
	return &DeterministicProver{NetworkSeed: seed}
}

func (p *DeterministicProver) mac(validator crypto.PubKey, nextHeightBE []byte) [JournalSize]byte {
	h := hmac.New(sha256.New, p.NetworkSeed)
	h.Write(validator)
	h.Write(nextHeightBE)
	var out [JournalSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Prove derives the receipt for validator at the given height. The Seal
// carries the inputs so Verify can recompute and check the journal without
// a separate out-of-band channel; a real backend would instead carry an
// actual zk proof here.
func (p *DeterministicProver) Prove(validator crypto.PubKey, nextHeightBE []byte) (Receipt, error) {
	if len(nextHeightBE) != 4 {
		return Receipt{}, fmt.Errorf("nextHeightBE must be 4 bytes, got %d", len(nextHeightBE))
	}
	journal := p.mac(validator, nextHeightBE)
	seal := make([]byte, 0, len(validator)+4)
	seal = append(seal, validator...)
	seal = append(seal, nextHeightBE...)
	return Receipt{Journal: journal, Seal: seal}, nil
}

// Verify recomputes the expected journal from the Seal's embedded inputs
// and rejects receipts that do not match.
func (p *DeterministicProver) Verify(r Receipt) error {
	if len(r.Seal) < 4 {
		return errors.New("zkrand: malformed seal")
	}
	validator := r.Seal[:len(r.Seal)-4]
	heightBE := r.Seal[len(r.Seal)-4:]
	want := p.mac(validator, heightBE)
	if !hmac.Equal(want[:], r.Journal[:]) {
		return errors.New("zkrand: journal does not match seal")
	}
	return nil
}

// BigEndianHeight encodes height as the 4-byte big-endian value Prove
// expects.
func BigEndianHeight(height uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], height)
	return b[:]
}

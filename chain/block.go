package chain

import (
	"encoding/json"

	"github.com/tolelom/sequencer/crypto"
)

// Block is an ordered batch of transactions with an optional leader
// signature and an optional set of threshold attestations. A Block with a
// nil Signature is unsigned (a fresh proposal under construction); a Block
// with nil Commitments has not yet accumulated any attestations.
type Block struct {
	Height       uint32        `json:"height"`
	Timestamp    uint32        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Signature    *crypto.Sig   `json:"signature"`
	Commitments  []Attestation `json:"commitments"`
}

// canonicalView is Block with Signature and Commitments stripped: the
// declaration-order fields a signature actually covers (spec's
// block_to_bytes). Keeping this as its own type, rather than zeroing the
// two fields on a copy of Block, guarantees the signed bytes never
// accidentally include a json:"signature":null/commitments:null that a
// differently-ordered Block literal might emit.
type canonicalView struct {
	Height       uint32        `json:"height"`
	Timestamp    uint32        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// CanonicalBytes returns the deterministic byte serialization signatures
// and attestations are computed over. Every implementation of this
// protocol, on any platform, must produce identical bytes for identical
// semantic blocks.
func (b *Block) CanonicalBytes() []byte {
	data, err := json.Marshal(canonicalView{
		Height:       b.Height,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
	})
	if err != nil {
		return nil
	}
	return data
}

// NewBlock constructs an unsigned block proposal.
func NewBlock(height, timestamp uint32, txs []Transaction) *Block {
	return &Block{
		Height:       height,
		Timestamp:    timestamp,
		Transactions: txs,
	}
}

// Genesis constructs the height-0 block: empty transactions, no signature,
// no commitments, timestamped at node startup (spec invariant 1).
func Genesis(t0 uint32) *Block {
	return &Block{Height: 0, Timestamp: t0}
}

// IsGenesis reports whether b is the height-0 block, which is exempt from
// the signature/threshold invariant.
func (b *Block) IsGenesis() bool {
	return b.Height == 0
}

// Sign signs b's canonical bytes with priv and sets b.Signature.
func (b *Block) Sign(signer crypto.Signer, priv crypto.PrivKey) {
	sig := signer.Sign(priv, b.CanonicalBytes())
	b.Signature = &sig
}

// VerifySignature reports whether b.Signature is a valid signature by pub
// over b's canonical bytes. A block with no signature never verifies.
func (b *Block) VerifySignature(signer crypto.Signer, pub crypto.PubKey) bool {
	if b.Signature == nil {
		return false
	}
	return signer.Verify(pub, b.CanonicalBytes(), *b.Signature)
}

// CountValidAttestations counts distinct valid attestations in
// b.Commitments: entries whose Validator is in validators and whose
// Signature verifies over b's canonical bytes. Invalid or unknown-validator
// entries, and duplicate attestations from the same validator, are
// silently skipped (spec §4.6 step 5, invariant 4).
func (b *Block) CountValidAttestations(signer crypto.Signer, validators []crypto.PubKey) int {
	known := make(map[string]bool, len(validators))
	for _, v := range validators {
		known[v.Hex()] = true
	}
	canonical := b.CanonicalBytes()
	seen := make(map[string]bool, len(b.Commitments))
	count := 0
	for _, a := range b.Commitments {
		key := a.Validator.Hex()
		if !known[key] || seen[key] {
			continue
		}
		if !signer.Verify(a.Validator, canonical, a.Signature) {
			continue
		}
		seen[key] = true
		count++
	}
	return count
}

// HasAttestationFrom reports whether pub already appears as an attester in
// b.Commitments, regardless of signature validity (spec §4.6 step 5
// is_signed check — a node must not re-sign a proposal it already signed).
func (b *Block) HasAttestationFrom(pub crypto.PubKey) bool {
	for _, a := range b.Commitments {
		if a.Validator.Hex() == pub.Hex() {
			return true
		}
	}
	return false
}

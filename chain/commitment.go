package chain

import (
	"github.com/tolelom/sequencer/crypto"
	"github.com/tolelom/sequencer/zkrand"
)

// RandomnessCommitment is the wire message published by a round's
// committing validator: a zero-knowledge receipt whose journal decodes to
// 32 random bytes, generated with inputs (validator pubkey, next height
// big-endian) so each validator produces exactly one well-defined
// commitment per height (spec §3).
type RandomnessCommitment struct {
	Validator crypto.PubKey  `json:"validator"`
	Receipt   zkrand.Receipt `json:"receipt"`
}

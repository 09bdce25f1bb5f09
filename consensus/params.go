// Package consensus implements the round-based Proof-of-Random-Dispatch
// (PoRD) leader election and the block proposal/attestation/threshold
// protocol (components C6, C7, C8): the round state machine, the
// leader-derivation math, and inbound proposal validation.
package consensus

import "github.com/tolelom/sequencer/crypto"

// Params are the static, process-lifetime consensus parameters every node
// in a deployment must agree on byte-for-byte (spec §4.5).
type Params struct {
	Validators            []crypto.PubKey
	RoundDuration         uint32 // seconds; length of one round within a height
	ClearingPhaseDuration uint32 // seconds; initial reset sub-phase of each round
	Threshold             int    // minimum distinct valid attestations to commit
}

// N is the validator-set size.
func (p Params) N() int {
	return len(p.Validators)
}

// IndexOf returns pub's position in the validator set, or -1 if pub is not
// a validator.
func (p Params) IndexOf(pub crypto.PubKey) int {
	for i, v := range p.Validators {
		if v.Hex() == pub.Hex() {
			return i
		}
	}
	return -1
}

// IsValidator reports whether pub is in the validator set.
func (p Params) IsValidator(pub crypto.PubKey) bool {
	return p.IndexOf(pub) >= 0
}

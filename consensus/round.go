package consensus

import "github.com/tolelom/sequencer/crypto"

// Round is the spec's round(t): the 1-indexed round number within the
// current height, given the timestamp of the latest committed block.
func Round(tLast, t uint32, params Params) uint32 {
	var elapsed uint32
	if t > tLast {
		elapsed = t - tLast
	}
	return elapsed/params.RoundDuration + 1
}

// RoundStart is the spec's round_start(t): the timestamp at which the
// given round number began.
func RoundStart(tLast uint32, round uint32, params Params) uint32 {
	return tLast + (round-1)*params.RoundDuration
}

// InClearingPhase reports whether t falls in the initial sub-phase of its
// round, during which ConsensusState is reset and no action is taken.
func InClearingPhase(tLast, t uint32, params Params) bool {
	round := Round(tLast, t, params)
	return t <= RoundStart(tLast, round, params)+params.ClearingPhaseDuration
}

// CommittingValidator returns the validator responsible for publishing the
// randomness commitment in the given round: ValidatorSet[(round-1) mod N].
// The spec requires modulo N, not N-1 (§9 Open Questions: the N-1 variant
// observed in one revision excludes the last validator and is a bug).
func CommittingValidator(params Params, round uint32) crypto.PubKey {
	n := params.N()
	if n == 0 {
		return nil
	}
	idx := int((round - 1)) % n
	return params.Validators[idx]
}

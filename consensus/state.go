package consensus

import (
	"bytes"
	"sync"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/crypto"
)

// RoundState is the per-height, per-round ephemeral state the engine and
// proposal handler mutate (component C6). It is reset at every round's
// clearing sub-phase and on every successful block commit (spec §4.8).
//
// RoundState is not itself safe for concurrent use by independent
// goroutines; callers serialize access the same way the rest of
// ServerState does (spec §5) — it carries its own mutex only so tests and
// debug handlers can read it without threading the outer lock through.
type RoundState struct {
	mu sync.RWMutex

	Leader              crypto.PubKey // nil until elected for this round
	Committed           bool          // local node already gossiped its commitment this round
	Proposed            bool          // local node already gossiped its proposal this round
	LowestProposalBytes []byte        // nil until a proposal has been seen this round

	commitments map[string]chain.RandomnessCommitment // validator hex -> commitment
}

// NewRoundState creates a freshly reset RoundState.
func NewRoundState() *RoundState {
	return &RoundState{commitments: make(map[string]chain.RandomnessCommitment)}
}

// Reset clears every field back to its zero value: called on every round's
// clearing sub-phase and on every successful block commit.
func (s *RoundState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Leader = nil
	s.Committed = false
	s.Proposed = false
	s.LowestProposalBytes = nil
	s.commitments = make(map[string]chain.RandomnessCommitment)
}

// HasLeader reports whether a leader has been elected for the current
// round.
func (s *RoundState) HasLeader() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Leader != nil
}

// GetLeader returns the elected leader, or nil if none yet.
func (s *RoundState) GetLeader() crypto.PubKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Leader
}

// InsertCommitment records c. On the first commitment received from the
// round's committing validator, it derives and stores the leader.
// Duplicate commitments for an already-known leader are discarded (spec
// §4.8 insert_commitment).
func (s *RoundState) InsertCommitment(c chain.RandomnessCommitment, params Params, round uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Validator.Hex()
	if _, dup := s.commitments[key]; dup {
		return
	}
	s.commitments[key] = c

	if s.Leader != nil {
		return
	}
	committing := CommittingValidator(params, round)
	if committing == nil || key != committing.Hex() {
		return
	}
	s.Leader = EvaluateCommitment(c, params)
}

// Commitments returns a snapshot of every commitment received this round,
// for debug inspection (spec's GET /get/commitments).
func (s *RoundState) Commitments() []chain.RandomnessCommitment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chain.RandomnessCommitment, 0, len(s.commitments))
	for _, c := range s.commitments {
		out = append(out, c)
	}
	return out
}

// MarkCommitted sets the local "already published a commitment this
// round" flag.
func (s *RoundState) MarkCommitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Committed = true
}

// IsCommitted reports the local commitment flag.
func (s *RoundState) IsCommitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Committed
}

// MarkProposed sets the local "already proposed this round" flag.
func (s *RoundState) MarkProposed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Proposed = true
}

// IsProposed reports the local proposed flag.
func (s *RoundState) IsProposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Proposed
}

// ConsiderProposal applies the lowest-block tie-break rule (spec §4.6 step
// 4): returns true if candidate should be processed further (it is the
// first proposal seen this round, or is <= the current lowest), and
// records candidate as the new lowest when it is strictly smaller.
func (s *RoundState) ConsiderProposal(candidate []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LowestProposalBytes == nil {
		s.LowestProposalBytes = candidate
		return true
	}
	switch bytes.Compare(candidate, s.LowestProposalBytes) {
	case 1: // candidate > lowest
		return false
	case -1: // candidate < lowest
		s.LowestProposalBytes = candidate
		return true
	default: // equal
		return true
	}
}

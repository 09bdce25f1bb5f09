package consensus

import (
	"fmt"
	"log"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/crypto"
	"github.com/tolelom/sequencer/events"
	"github.com/tolelom/sequencer/gossip"
	"github.com/tolelom/sequencer/trie"
)

// Outcome strings returned by HandlePropose, matched exactly by peers
// (spec §6, §7: there is no structured error channel to clients).
const (
	OutcomeAccepted = "[Ok] Block was processed"
	OutcomeAwaiting = "[Warning] Awaiting consensus evaluation"
)

// ProposalHandler validates and applies inbound /propose bodies (component
// C8). Like Engine, it holds no lock of its own; the caller serializes
// every call behind ServerState's single lock (spec §5).
type ProposalHandler struct {
	Params Params

	Signer  crypto.Signer
	Gossip  *gossip.Client
	Peers   []string
	PrivKey crypto.PrivKey
	PubKey  crypto.PubKey

	Log     *chain.BlockLog
	Trie    *trie.Store
	State   *RoundState
	Emitter *events.Emitter
}

// HandlePropose runs the full inbound validation and state-transition
// pipeline for a peer's proposal P at wall-clock time now (spec §4.6).
// Returns one of OutcomeAccepted, OutcomeAwaiting, or a rejection string
// containing "Block was rejected".
func (h *ProposalHandler) HandlePropose(now uint32, p *chain.Block) string {
	tLast, height, err := lastCommitted(h.Log)
	if err != nil {
		return fmt.Sprintf("Block was rejected: %v", err)
	}

	round := Round(tLast, now, h.Params)
	roundStart := tLast + (round-1)*h.Params.RoundDuration
	if p.Timestamp < roundStart {
		return "Block was rejected: stale round (InvalidTimestamp)"
	}

	if p.Signature == nil {
		return "Block was rejected: missing proposer signature"
	}
	leader := h.State.GetLeader()
	if leader == nil {
		return OutcomeAwaiting
	}
	if !p.VerifySignature(h.Signer, leader) {
		h.Emitter.Emit(events.Event{Type: events.EventProposalRejected, Height: p.Height})
		return "Block was rejected: invalid proposer signature (InvalidProposerSignature)"
	}

	canonical := p.CanonicalBytes()
	if !h.State.ConsiderProposal(canonical) {
		// Lowest-block rule: a higher-byte duplicate at this round is
		// silently dropped (spec §4.6 step 4).
		return "Block was rejected: superseded by a lower proposal"
	}

	validCount := p.CountValidAttestations(h.Signer, h.Params.Validators)
	if validCount >= h.Params.Threshold {
		return h.commit(height, p)
	}

	if p.Height != height+1 {
		return "Block was rejected: wrong height"
	}
	if p.HasAttestationFrom(h.PubKey) {
		return OutcomeAccepted // already signed; no-op, not an error
	}

	sig := h.Signer.Sign(h.PrivKey, canonical)
	p.Commitments = append(p.Commitments, chain.Attestation{
		Signature: sig, Validator: h.PubKey, Timestamp: now,
	})
	h.Gossip.GossipProposal(h.Peers, p)
	return OutcomeAccepted
}

// commit inserts p into the block log at height+1, indexes its
// transactions into the trie, and resets round state for the next height
// (spec §4.6 step 6, §4.8).
func (h *ProposalHandler) commit(height uint32, p *chain.Block) string {
	next := height + 1
	if err := h.Log.Insert(next, p); err != nil {
		return fmt.Sprintf("Block was rejected: %v", err)
	}
	for _, tx := range p.Transactions {
		h.Trie.Insert(tx.Data)
	}
	root, err := h.Trie.Root()
	if err != nil && err != trie.ErrEmpty {
		log.Printf("[consensus] FATAL: trie root after commit %d: %v", next, err)
	}
	h.State.Reset()
	h.Emitter.Emit(events.Event{
		Type:   events.EventBlockCommit,
		Height: next,
		Data:   map[string]any{"txs": len(p.Transactions), "root": fmt.Sprintf("%x", root)},
	})
	return OutcomeAccepted
}

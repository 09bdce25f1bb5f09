// Package sync implements the slow, best-effort chain synchronizer
// (component C9): a node lagging behind its peers polls their height and
// ascending-fetches the blocks it is missing, grounded on the teacher's
// network.Syncer validate-then-insert loop but driven by HTTP polling via
// gossip.Client instead of push-based TCP messages (spec §4.7).
package sync

import (
	"log"
	"time"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/crypto"
	"github.com/tolelom/sequencer/events"
	"github.com/tolelom/sequencer/gossip"
	"github.com/tolelom/sequencer/trie"
)

// maxBlocksPerTick bounds how many blocks a single tick fetches from one
// peer, so one very-far-behind peer can't stall the whole sync interval.
const maxBlocksPerTick = 200

// Syncer polls peers for their chain height and fetches any blocks the
// local node is missing. It holds no lock of its own; the caller
// serializes every Tick behind ServerState's single lock (spec §5).
type Syncer struct {
	Params Params

	Gossip *gossip.Client
	Peers  []string

	Log     *chain.BlockLog
	Trie    *trie.Store
	Emitter *events.Emitter
}

// Params carries the subset of consensus.Params the synchronizer needs to
// validate blocks it fetches from a peer: the validator set and the
// threshold required for a block to be considered final.
type Params struct {
	Validators []crypto.PubKey
	Threshold  int
}

// Tick polls every configured peer's height once, and for any peer ahead
// of the local chain, fetches and applies blocks in ascending order up to
// maxBlocksPerTick (spec §4.7: "a slow ticker, per-peer, ascending
// height").
func (s *Syncer) Tick() {
	local := s.Log.CurrentHeight()
	for _, peer := range s.others() {
		peerHeight, ok := s.Gossip.FetchPeerHeight(peer)
		if !ok || peerHeight <= local {
			continue
		}
		s.catchUpFrom(peer, local, peerHeight)
		local = s.Log.CurrentHeight()
	}
}

func (s *Syncer) others() []string {
	out := make([]string, 0, len(s.Peers))
	out = append(out, s.Peers...)
	return out
}

// catchUpFrom fetches and applies blocks (local, peerHeight] from peer, in
// ascending order, stopping early on the first block that fails validation
// or insertion (a later block can't be trusted once an earlier one in the
// sequence is rejected).
func (s *Syncer) catchUpFrom(peer string, local, peerHeight uint32) {
	limit := peerHeight
	if limit-local > maxBlocksPerTick {
		limit = local + maxBlocksPerTick
	}
	for h := local + 1; h <= limit; h++ {
		block, ok := s.Gossip.FetchPeerBlock(peer, h)
		if !ok {
			log.Printf("[sync] %s: failed to fetch block %d, stopping catch-up", peer, h)
			return
		}
		if err := s.validate(block); err != nil {
			log.Printf("[sync] %s: block %d rejected: %v", peer, h, err)
			return
		}
		if err := s.Log.Insert(h, block); err != nil {
			log.Printf("[sync] %s: block %d insert failed: %v", peer, h, err)
			return
		}
		for _, tx := range block.Transactions {
			s.Trie.Insert(tx.Data)
		}
	}
	s.Emitter.Emit(events.Event{Type: events.EventSyncCaughtUp, Height: s.Log.CurrentHeight()})
}

// validate checks that block carries a valid leader signature from a known
// validator and at least Threshold valid attestations, mirroring the
// acceptance rule ProposalHandler applies to a locally-received proposal
// (spec §4.6 step 5, §7) without re-deriving which validator was the
// round's leader — a lagging node trusts the validator set's signatures,
// not a re-run of leader election for a round it never observed.
func (s *Syncer) validate(block *chain.Block) error {
	signer := crypto.Ed25519Signer{}
	if block.Signature == nil {
		return errMissingSignature
	}
	signedByValidator := false
	for _, v := range s.Params.Validators {
		if block.VerifySignature(signer, v) {
			signedByValidator = true
			break
		}
	}
	if !signedByValidator {
		return errUnknownSigner
	}
	if n := block.CountValidAttestations(signer, s.Params.Validators); n < s.Params.Threshold {
		return errBelowThreshold
	}
	return nil
}

// sentinel errors for validate's rejection reasons.
type syncError string

func (e syncError) Error() string { return string(e) }

const (
	errMissingSignature syncError = "missing leader signature"
	errUnknownSigner    syncError = "signature not from a known validator"
	errBelowThreshold   syncError = "attestation count below threshold"
)

// Run drives Tick on interval until stop is closed, grounded on the
// teacher's ticker-driven goroutine pattern (consensus.PoA.Run).
func (s *Syncer) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-stop:
			return
		}
	}
}

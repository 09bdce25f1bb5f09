package consensus

import (
	"fmt"
	"log"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/crypto"
	"github.com/tolelom/sequencer/events"
	"github.com/tolelom/sequencer/gossip"
	"github.com/tolelom/sequencer/zkrand"
)

// Engine is the round state machine (component C7): it schedules the
// commit/propose phases of the local validator against the Clock. Engine
// holds no lock of its own; the caller (package node) serializes every
// Tick behind ServerState's single lock. Gossip sends are spawned from
// inside Tick as detached goroutines, so no peer I/O is awaited while that
// lock is held (spec §5, §9).
type Engine struct {
	Params Params

	Signer crypto.Signer
	Prover zkrand.Prover
	Gossip *gossip.Client
	Peers  []string

	PrivKey crypto.PrivKey
	PubKey  crypto.PubKey

	Log     *chain.BlockLog
	Pool    *chain.Pool
	State   *RoundState
	Emitter *events.Emitter
}

// lastCommitted returns the timestamp and height of the current tip.
func lastCommitted(l *chain.BlockLog) (tLast uint32, height uint32, err error) {
	height = l.CurrentHeight()
	tip, err := l.Get(height)
	if err != nil {
		return 0, 0, fmt.Errorf("consensus: load tip at height %d: %w", height, err)
	}
	return tip.Timestamp, height, nil
}

// Tick runs one engine step at wall-clock time now (spec §4.5). It is
// invoked on a periodic timer by the caller.
func (e *Engine) Tick(now uint32) error {
	tLast, height, err := lastCommitted(e.Log)
	if err != nil {
		return err
	}

	if InClearingPhase(tLast, now, e.Params) {
		e.State.Reset()
		return nil
	}

	round := Round(tLast, now, e.Params)
	committing := CommittingValidator(e.Params, round)

	if committing != nil && committing.Hex() == e.PubKey.Hex() && !e.State.IsCommitted() {
		e.publishCommitment(height, round)
	}

	if !e.State.HasLeader() {
		return nil
	}

	leader := e.State.GetLeader()
	if leader.Hex() == e.PubKey.Hex() && !e.State.IsProposed() {
		e.proposeBlock(height, now)
	}

	return nil
}

func (e *Engine) publishCommitment(height uint32, round uint32) {
	nextHeightBE := zkrand.BigEndianHeight(height + 1)
	receipt, err := e.Prover.Prove(e.PubKey, nextHeightBE)
	if err != nil {
		log.Printf("[consensus] prove randomness for height %d: %v", height+1, err)
		return
	}
	commitment := chain.RandomnessCommitment{Validator: e.PubKey, Receipt: receipt}

	// Compute and store the locally-derived leader immediately: we know our
	// own commitment before it round-trips over the network.
	e.State.InsertCommitment(commitment, e.Params, round)
	e.State.MarkCommitted()

	e.Emitter.Emit(events.Event{
		Type:   events.EventCommitmentReceived,
		Height: height + 1,
		Data:   map[string]any{"validator": e.PubKey.Hex()},
	})
	e.Gossip.GossipCommitment(e.Peers, commitment)
}

func (e *Engine) proposeBlock(height uint32, now uint32) {
	txs := e.Pool.DrainAll()
	block := chain.NewBlock(height+1, now, txs)
	block.Sign(e.Signer, e.PrivKey)

	e.State.MarkProposed()
	e.Emitter.Emit(events.Event{
		Type:   events.EventProposalSent,
		Height: block.Height,
		Data:   map[string]any{"txs": len(txs)},
	})
	e.Gossip.GossipProposal(e.Peers, block)
}

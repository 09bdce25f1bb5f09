// Package node wires components C1-C9 into a single running validator: one
// lock-guarded ServerState, an HTTP surface over it (spec §6), and the
// engine/synchronizer tickers that drive it (spec §5).
package node

import (
	"crypto/tls"
	"sync"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/clock"
	"github.com/tolelom/sequencer/config"
	"github.com/tolelom/sequencer/consensus"
	"github.com/tolelom/sequencer/crypto"
	"github.com/tolelom/sequencer/events"
	"github.com/tolelom/sequencer/gossip"
	chainsync "github.com/tolelom/sequencer/sync"
	"github.com/tolelom/sequencer/trie"
	"github.com/tolelom/sequencer/zkrand"
)

// ServerState is the single aggregate every request handler, the engine
// ticker, and the synchronizer ticker serialize through one
// sync.RWMutex (spec §5 "Shared mutable aggregate"). Some components
// beneath it (BlockLog, Pool, RoundState, Emitter) also carry their own
// mutex, which guards only a single method call; multi-step sequences rely
// on this lock.
type ServerState struct {
	mu sync.RWMutex

	Params  consensus.Params
	Log     *chain.BlockLog
	Pool    *chain.Pool
	Trie    *trie.Store
	Round   *consensus.RoundState
	Emitter *events.Emitter

	Engine  *consensus.Engine
	Handler *consensus.ProposalHandler
	Syncer  *chainsync.Syncer
	Gossip  *gossip.Client
	Peers   []string

	Clock clock.Clock
}

// New builds a ServerState from cfg, a store-backed block log, and the
// local validator's signing identity. Callers (cmd/node/main.go) must call
// Init before serving traffic so genesis runs and the height is recovered.
// A non-nil tlsCfg makes every outbound gossip send dial peers over mTLS,
// matching the HTTP surface's own listener configuration.
func New(cfg *config.Config, store chain.Store, priv crypto.PrivKey, pub crypto.PubKey, clk clock.Clock, prover zkrand.Prover, tlsCfg *tls.Config) (*ServerState, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	log := chain.NewBlockLog(store)
	pool := chain.NewPool()
	tr := trie.New()
	round := consensus.NewRoundState()
	emitter := events.NewEmitter()
	wireLogging(emitter)
	signer := crypto.Ed25519Signer{}
	var gossipClient *gossip.Client
	if tlsCfg != nil {
		gossipClient = gossip.NewTLSClient(cfg.APIHostWithPort, tlsCfg)
	} else {
		gossipClient = gossip.NewClient(cfg.APIHostWithPort)
	}

	engine := &consensus.Engine{
		Params:  params,
		Signer:  signer,
		Prover:  prover,
		Gossip:  gossipClient,
		Peers:   cfg.Peers,
		PrivKey: priv,
		PubKey:  pub,
		Log:     log,
		Pool:    pool,
		State:   round,
		Emitter: emitter,
	}
	handler := &consensus.ProposalHandler{
		Params:  params,
		Signer:  signer,
		Gossip:  gossipClient,
		Peers:   cfg.Peers,
		PrivKey: priv,
		PubKey:  pub,
		Log:     log,
		Trie:    tr,
		State:   round,
		Emitter: emitter,
	}
	syncer := &chainsync.Syncer{
		Params:  chainsync.Params{Validators: params.Validators, Threshold: params.Threshold},
		Gossip:  gossipClient,
		Peers:   cfg.Peers,
		Log:     log,
		Trie:    tr,
		Emitter: emitter,
	}

	return &ServerState{
		Params:  params,
		Log:     log,
		Pool:    pool,
		Trie:    tr,
		Round:   round,
		Emitter: emitter,
		Engine:  engine,
		Handler: handler,
		Syncer:  syncer,
		Gossip:  gossipClient,
		Peers:   cfg.Peers,
		Clock:   clk,
	}, nil
}

// Init recovers height from the store and runs genesis if the store is
// empty.
func (s *ServerState) Init(t0 uint32) error {
	if err := s.Log.Init(); err != nil {
		return err
	}
	return s.Log.Genesis(t0)
}

// Tick runs one engine step at the current clock time, under exclusive
// lock (spec §5: "/schedule, /commit, /propose, and the engine/
// synchronizer tasks take exclusive access").
func (s *ServerState) Tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engine.Tick(s.Clock.Now())
}

// SyncTick runs one synchronizer pass under exclusive lock.
func (s *ServerState) SyncTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Syncer.Tick()
}

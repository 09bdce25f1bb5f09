package node

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/consensus"
	"github.com/tolelom/sequencer/trie"
)

const maxRequestBody = 1 << 20 // 1 MiB, mirrors the teacher's rpc.Server body cap

// Routes registers every endpoint from spec.md §6 on mux.
func (s *ServerState) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/schedule", s.handleSchedule)
	mux.HandleFunc("/commit", s.handleCommit)
	mux.HandleFunc("/propose", s.handlePropose)
	mux.HandleFunc("/merkle_proof", s.handleMerkleProof)
	mux.HandleFunc("/get/pool", s.handleGetPool)
	mux.HandleFunc("/get/commitments", s.handleGetCommitments)
	mux.HandleFunc("/get/block/", s.handleGetBlock)
	mux.HandleFunc("/get/height", s.handleGetHeight)
	mux.HandleFunc("/get/state_root_hash", s.handleGetStateRoot)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("decode body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[node] write response: %v", err)
	}
}

// handleSchedule accepts a transaction into the pool unconditionally (spec
// §6: "Accepted into C2 unconditionally").
func (s *ServerState) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var tx chain.Transaction
	if !decodeBody(w, r, &tx) {
		return
	}
	s.mu.Lock()
	s.Pool.Insert(tx)
	s.mu.Unlock()
	writeText(w, fmt.Sprintf("[Ok] Transaction is being sequenced: %x", tx.Data))
}

// handleCommit accepts a randomness commitment and folds it into the round
// state, electing a leader if the sender is this round's committing
// validator (spec §4.8, §6).
func (s *ServerState) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var c chain.RandomnessCommitment
	if !decodeBody(w, r, &c) {
		return
	}

	s.mu.Lock()
	tLast, err := s.tipTimestampLocked()
	if err == nil {
		round := consensus.Round(tLast, s.Clock.Now(), s.Params)
		s.Round.InsertCommitment(c, s.Params, round)
	}
	s.mu.Unlock()

	if err != nil {
		writeText(w, fmt.Sprintf("Block was rejected: %v", err))
		return
	}
	writeText(w, fmt.Sprintf("[Ok] Commitment was accepted: %s", c.Validator.Hex()))
}

// handlePropose runs the full proposal validation pipeline under exclusive
// lock (spec §4.6, §6).
func (s *ServerState) handlePropose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var b chain.Block
	if !decodeBody(w, r, &b) {
		return
	}
	s.mu.Lock()
	outcome := s.Handler.HandlePropose(s.Clock.Now(), &b)
	s.mu.Unlock()
	writeText(w, outcome)
}

// handleMerkleProof takes a bit-key (JSON array of u8) and returns its
// inclusion proof, or a failure string if the key was never inserted (spec
// §6).
func (s *ServerState) handleMerkleProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var key trie.Key
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		writeText(w, "[Err] Failed to generate Merkle Proof for Transaction")
		return
	}

	s.mu.RLock()
	proof, ok := s.Trie.Proof(key)
	s.mu.RUnlock()

	if !ok {
		writeText(w, "[Err] Failed to generate Merkle Proof for Transaction")
		return
	}
	writeJSON(w, proof)
}

func (s *ServerState) handleGetPool(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	txs := s.Pool.Snapshot()
	s.mu.RUnlock()
	writeJSON(w, txs)
}

func (s *ServerState) handleGetCommitments(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	commitments := s.Round.Commitments()
	s.mu.RUnlock()
	writeJSON(w, commitments)
}

func (s *ServerState) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	hStr := strings.TrimPrefix(r.URL.Path, "/get/block/")
	h, err := strconv.ParseUint(hStr, 10, 32)
	if err != nil {
		writeText(w, "[Warning] Requested Block that does not exist")
		return
	}

	s.mu.RLock()
	block, err := s.Log.Get(uint32(h))
	s.mu.RUnlock()

	if err != nil {
		writeText(w, "[Warning] Requested Block that does not exist")
		return
	}
	writeJSON(w, block)
}

func (s *ServerState) handleGetHeight(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	height := s.Log.CurrentHeight()
	s.mu.RUnlock()
	writeJSON(w, height)
}

func (s *ServerState) handleGetStateRoot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	root, err := s.Trie.Root()
	s.mu.RUnlock()

	if err != nil {
		root = [32]byte{}
	}
	writeJSON(w, root)
}

// tipTimestampLocked returns the current tip's timestamp. Caller must hold
// s.mu.
func (s *ServerState) tipTimestampLocked() (uint32, error) {
	tip, err := s.Log.Get(s.Log.CurrentHeight())
	if err != nil {
		return 0, err
	}
	return tip.Timestamp, nil
}

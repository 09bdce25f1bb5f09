// Package gossip implements the best-effort, fan-out RPC client peers use
// to disseminate proposals and randomness commitments and to catch up on
// one another's chain state (component C5). Every send is fire-and-forget:
// it is spawned on its own goroutine with an independent deadline so a
// single slow peer never blocks another, or the caller (spec §4.4, §9).
package gossip

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tolelom/sequencer/chain"
)

const (
	proposalTimeout  = 3 * time.Second
	commitTimeout    = 10 * time.Second
	heightTimeout    = 15 * time.Second
	blockTimeout     = 30 * time.Second
)

// Client fans out requests to a static peer list, filtering the local
// node's own address out of every send.
type Client struct {
	self   string
	scheme string
	http   *http.Client
}

// NewClient creates a Client. self is this node's own "host:port" entry in
// the peer list, used to filter outbound sends.
func NewClient(self string) *Client {
	return &Client{
		self:   self,
		scheme: "http",
		http:   &http.Client{},
	}
}

// NewTLSClient creates a Client that dials peers over mTLS, using the same
// certificate/key pair the local node's HTTP surface serves with — peers
// are each other's server and client at once (spec §9, config.TLSConfig).
func NewTLSClient(self string, tlsCfg *tls.Config) *Client {
	return &Client{
		self:   self,
		scheme: "https",
		http:   &http.Client{Transport: &http.Transport{TLSClientConfig: tlsCfg}},
	}
}

// others filters self out of peers.
func (c *Client) others(peers []string) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != c.self {
			out = append(out, p)
		}
	}
	return out
}

// GossipProposal sends block to every peer concurrently as POST /propose.
// Each send task logs its own outcome and exits; there is no aggregation
// across peers (spec §4.4).
func (c *Client) GossipProposal(peers []string, block *chain.Block) {
	body, err := json.Marshal(block)
	if err != nil {
		log.Printf("[gossip] marshal proposal: %v", err)
		return
	}
	for _, peer := range c.others(peers) {
		peer := peer
		go func() {
			if err := c.post(peer, "/propose", body, proposalTimeout); err != nil {
				log.Printf("[gossip] propose -> %s: %v", peer, err)
			}
		}()
	}
}

// GossipCommitment sends c to every peer concurrently as POST /commit.
func (c *Client) GossipCommitment(peers []string, commitment chain.RandomnessCommitment) {
	body, err := json.Marshal(commitment)
	if err != nil {
		log.Printf("[gossip] marshal commitment: %v", err)
		return
	}
	for _, peer := range c.others(peers) {
		peer := peer
		go func() {
			if err := c.post(peer, "/commit", body, commitTimeout); err != nil {
				log.Printf("[gossip] commit -> %s: %v", peer, err)
			}
		}()
	}
}

// FetchPeerHeight polls peer's /get/height. ok is false on any transport,
// timeout, or decoding failure — transient peer failures are swallowed
// here; the synchronizer will simply try again next cadence (spec §7).
func (c *Client) FetchPeerHeight(peer string) (height uint32, ok bool) {
	data, err := c.get(peer, "/get/height", heightTimeout)
	if err != nil {
		log.Printf("[gossip] get height <- %s: %v", peer, err)
		return 0, false
	}
	if err := json.Unmarshal(data, &height); err != nil {
		log.Printf("[gossip] decode height <- %s: %v", peer, err)
		return 0, false
	}
	return height, true
}

// FetchPeerBlock polls peer's /get/block/{h}.
func (c *Client) FetchPeerBlock(peer string, h uint32) (*chain.Block, bool) {
	data, err := c.get(peer, fmt.Sprintf("/get/block/%d", h), blockTimeout)
	if err != nil {
		log.Printf("[gossip] get block %d <- %s: %v", h, peer, err)
		return nil, false
	}
	var b chain.Block
	if err := json.Unmarshal(data, &b); err != nil {
		log.Printf("[gossip] decode block %d <- %s: %v", h, peer, err)
		return nil, false
	}
	return &b, true
}

func (c *Client) post(peer, path string, body []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scheme+"://"+peer+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(peer, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.scheme+"://"+peer+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

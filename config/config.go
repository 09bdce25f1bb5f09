package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tolelom/sequencer/consensus"
	"github.com/tolelom/sequencer/crypto"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// Config holds all node configuration (spec §6).
type Config struct {
	APIHostWithPort string `json:"api_host_with_port"`
	LocalValidator  int    `json:"local_validator"` // index into Validators this node signs as
	PathToDB        string `json:"path_to_db"`

	Validators []string `json:"validators"` // hex-encoded ed25519 pubkeys, in committing order
	Peers      []string `json:"peers"`      // host:port of every peer, this node's own entry included

	RoundDurationSecs         uint32 `json:"round_duration_secs"`
	ClearingPhaseDurationSecs uint32 `json:"clearing_phase_duration_secs"`
	Threshold                 int    `json:"threshold"`
	SyncIntervalSecs          uint32 `json:"sync_interval_secs"`

	// NetworkSeed is hex-encoded and shared by every validator in the
	// deployment: it seeds the randomness prover, so any two validators
	// given the same seed derive and verify identical receipts for the
	// same (validator, height) pair.
	NetworkSeed string `json:"network_seed"`

	TLS *TLSConfig `json:"tls,omitempty"` // nil → plain TCP
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		APIHostWithPort:           "127.0.0.1:8080",
		LocalValidator:            0,
		PathToDB:                  "./data",
		RoundDurationSecs:         30,
		ClearingPhaseDurationSecs: 5,
		Threshold:                 1,
		SyncIntervalSecs:          120,
		NetworkSeed:               "00",
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.APIHostWithPort == "" {
		return fmt.Errorf("api_host_with_port must not be empty")
	}
	if c.PathToDB == "" {
		return fmt.Errorf("path_to_db must not be empty")
	}
	if len(c.Validators) == 0 {
		return fmt.Errorf("validators list must not be empty")
	}
	for i, v := range c.Validators {
		b, err := hex.DecodeString(v)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("validators[%d]: must be 64-char hex (32 bytes ed25519 pubkey), got %q", i, v)
		}
	}
	if c.LocalValidator < 0 || c.LocalValidator >= len(c.Validators) {
		return fmt.Errorf("local_validator %d out of range for %d validators", c.LocalValidator, len(c.Validators))
	}
	if c.RoundDurationSecs == 0 {
		return fmt.Errorf("round_duration_secs must be > 0")
	}
	if c.Threshold <= 0 || c.Threshold > len(c.Validators) {
		return fmt.Errorf("threshold must be 1-%d, got %d", len(c.Validators), c.Threshold)
	}
	if c.SyncIntervalSecs == 0 {
		return fmt.Errorf("sync_interval_secs must be > 0")
	}
	if _, err := hex.DecodeString(c.NetworkSeed); err != nil {
		return fmt.Errorf("network_seed: must be hex, got %q: %w", c.NetworkSeed, err)
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ValidatorPubKeys decodes every hex entry in Validators into a PubKey, in
// order, for use as consensus.Params.Validators.
func (c *Config) ValidatorPubKeys() ([]crypto.PubKey, error) {
	out := make([]crypto.PubKey, 0, len(c.Validators))
	for i, v := range c.Validators {
		pub, err := crypto.PubKeyFromHex(v)
		if err != nil {
			return nil, fmt.Errorf("validators[%d]: %w", i, err)
		}
		out = append(out, pub)
	}
	return out, nil
}

// NetworkSeedBytes decodes NetworkSeed for use as a zkrand.Prover seed.
func (c *Config) NetworkSeedBytes() ([]byte, error) {
	b, err := hex.DecodeString(c.NetworkSeed)
	if err != nil {
		return nil, fmt.Errorf("network_seed: %w", err)
	}
	return b, nil
}

// Params builds a consensus.Params from the config's round-timing fields
// and decoded validator set.
func (c *Config) Params() (consensus.Params, error) {
	validators, err := c.ValidatorPubKeys()
	if err != nil {
		return consensus.Params{}, err
	}
	return consensus.Params{
		Validators:            validators,
		RoundDuration:         c.RoundDurationSecs,
		ClearingPhaseDuration: c.ClearingPhaseDurationSecs,
		Threshold:             c.Threshold,
	}, nil
}

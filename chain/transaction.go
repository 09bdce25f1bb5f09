// Package chain holds the append-only block log and pending-transaction
// pool (components C1/C2): the data the consensus packages order and
// persist. Transaction payloads are opaque bytes throughout — this package
// never interprets, executes, or accounts for their content.
package chain

import "github.com/tolelom/sequencer/crypto"

// Transaction is a client-submitted opaque payload plus a client-supplied
// wall-clock hint. Timestamp is never trusted for ordering; ordering is
// FIFO by pool insertion.
type Transaction struct {
	Data      []byte `json:"data"`
	Timestamp uint32 `json:"timestamp"`
}

// Attestation is a validator's signature over a block's canonical bytes.
type Attestation struct {
	Signature crypto.Sig    `json:"signature"`
	Validator crypto.PubKey `json:"validator"`
	Timestamp uint32        `json:"timestamp"`
}

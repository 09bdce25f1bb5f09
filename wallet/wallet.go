package wallet

import "github.com/tolelom/sequencer/crypto"

// Wallet holds a validator's key pair — the identity the engine signs
// block proposals, attestations, and randomness commitments with.
type Wallet struct {
	priv crypto.PrivKey
	pub  crypto.PubKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv, pub: pub}, nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivKey {
	return w.priv
}

// PubKey returns the validator's public key.
func (w *Wallet) PubKey() crypto.PubKey {
	return w.pub
}

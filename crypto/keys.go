package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PrivKey wraps an ed25519 private key. It is what a Signer (see
// Ed25519Signer) signs with; PrivKey itself does not implement Signer.
type PrivKey []byte

// PubKey wraps an ed25519 public key and identifies a validator.
type PubKey []byte

// GenerateKeyPair generates a new ed25519 validator identity.
func GenerateKeyPair() (PrivKey, PubKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivKey(priv), PubKey(pub), nil
}

// Hex returns the 64-char hex-encoded public key used as the validator's
// identity throughout the wire protocol.
func (pub PubKey) Hex() string {
	return hex.EncodeToString(pub)
}

// Hex returns the hex-encoded private key.
func (priv PrivKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Public derives the ed25519 public key from the private key.
func (priv PrivKey) Public() PubKey {
	return PubKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// MarshalJSON encodes the public key as a hex string, matching the wire
// convention every validator identity uses throughout the protocol.
func (pub PubKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pub.Hex())
}

// UnmarshalJSON decodes a hex-encoded public key.
func (pub *PubKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*pub = nil
		return nil
	}
	k, err := PubKeyFromHex(s)
	if err != nil {
		return err
	}
	*pub = k
	return nil
}

// PubKeyFromHex decodes a hex-encoded public key.
func PubKeyFromHex(s string) (PubKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return PubKey(b), nil
}

// PrivKeyFromHex decodes a hex-encoded private key.
func PrivKeyFromHex(s string) (PrivKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("privkey must be %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	return PrivKey(b), nil
}

package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// Sig is a hex-encoded ed25519 signature, as carried on the wire in
// attestations and block headers.
type Sig string

// Signer is the capability consensus consumes for block and attestation
// signatures. The zero-knowledge randomness proving backend is a distinct
// capability (see package zkrand) and is not part of this interface.
type Signer interface {
	Sign(priv PrivKey, msg []byte) Sig
	Verify(pub PubKey, msg []byte, sig Sig) bool
}

// Ed25519Signer implements Signer using ed25519.
type Ed25519Signer struct{}

// Sign signs msg with priv and returns a hex-encoded signature.
func (Ed25519Signer) Sign(priv PrivKey, msg []byte) Sig {
	sig := ed25519.Sign(ed25519.PrivateKey(priv), msg)
	return Sig(hex.EncodeToString(sig))
}

// Verify checks sig against msg using pub. It never panics on malformed
// input; malformed signatures simply fail to verify.
func (Ed25519Signer) Verify(pub PubKey, msg []byte, sig Sig) bool {
	raw, err := hex.DecodeString(string(sig))
	if err != nil {
		return false
	}
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, raw)
}

// VerifyErr is like Verify but reports the decoding error, for callers that
// want to distinguish a malformed signature from a failed verification.
func VerifyErr(pub PubKey, msg []byte, sig Sig) error {
	raw, err := hex.DecodeString(string(sig))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("invalid public key length")
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, raw) {
		return errors.New("signature verification failed")
	}
	return nil
}

package chain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/crypto"
	"github.com/tolelom/sequencer/internal/testutil"
)

func TestBlockLogGenesisIsIdempotent(t *testing.T) {
	log := chain.NewBlockLog(testutil.NewMemBlockStore())
	require.NoError(t, log.Init())
	require.NoError(t, log.Genesis(1000))
	require.NoError(t, log.Genesis(2000)) // second call is a no-op

	b, err := log.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint32(1000), b.Timestamp)
	require.Equal(t, uint32(0), log.CurrentHeight())
}

func TestBlockLogRejectsNonAdvancingHeight(t *testing.T) {
	log := chain.NewBlockLog(testutil.NewMemBlockStore())
	require.NoError(t, log.Genesis(0))
	require.NoError(t, log.Insert(1, chain.NewBlock(1, 30, nil)))

	err := log.Insert(1, chain.NewBlock(1, 30, nil))
	require.Error(t, err)
	err = log.Insert(0, chain.NewBlock(0, 30, nil))
	require.Error(t, err)
}

func TestBlockLogGetUnknownHeight(t *testing.T) {
	log := chain.NewBlockLog(testutil.NewMemBlockStore())
	require.NoError(t, log.Genesis(0))
	_, err := log.Get(5)
	require.ErrorIs(t, err, chain.ErrNotFound)
}

func TestBlockSignAndVerify(t *testing.T) {
	signer := crypto.Ed25519Signer{}
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b := chain.NewBlock(1, 30, []chain.Transaction{{Data: []byte("x"), Timestamp: 30}})
	require.False(t, b.VerifySignature(signer, pub)) // unsigned

	b.Sign(signer, priv)
	require.True(t, b.VerifySignature(signer, pub))

	_, otherPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, b.VerifySignature(signer, otherPub))
}

func TestCountValidAttestations(t *testing.T) {
	signer := crypto.Ed25519Signer{}
	var validators []crypto.PubKey
	var privs []crypto.PrivKey
	for i := 0; i < 4; i++ {
		priv, pub, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		validators = append(validators, pub)
		privs = append(privs, priv)
	}

	b := chain.NewBlock(1, 30, nil)
	canonical := b.CanonicalBytes()

	for i := 0; i < 3; i++ {
		sig := signer.Sign(privs[i], canonical)
		b.Commitments = append(b.Commitments, chain.Attestation{
			Signature: sig, Validator: validators[i], Timestamp: 30,
		})
	}
	// Duplicate attestation from validator 0 must count once.
	dup := signer.Sign(privs[0], canonical)
	b.Commitments = append(b.Commitments, chain.Attestation{
		Signature: dup, Validator: validators[0], Timestamp: 31,
	})
	// Attestation from a non-validator must be skipped.
	_, strangerPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, strangerPriv, _ := crypto.GenerateKeyPair()
	_ = strangerPriv
	b.Commitments = append(b.Commitments, chain.Attestation{
		Signature: "deadbeef", Validator: strangerPub, Timestamp: 31,
	})

	require.Equal(t, 3, b.CountValidAttestations(signer, validators))
	require.True(t, b.HasAttestationFrom(validators[0]))
	require.False(t, b.HasAttestationFrom(strangerPub))
}

func TestPoolFIFOAndDrain(t *testing.T) {
	p := chain.NewPool()
	p.Insert(chain.Transaction{Data: []byte("a")})
	p.Insert(chain.Transaction{Data: []byte("b")})
	require.Equal(t, 2, p.Size())

	drained := p.DrainAll()
	require.Len(t, drained, 2)
	require.Equal(t, []byte("a"), drained[0].Data)
	require.Equal(t, 0, p.Size())
}

func TestPoolNoDeduplication(t *testing.T) {
	p := chain.NewPool()
	p.Insert(chain.Transaction{Data: []byte("same")})
	p.Insert(chain.Transaction{Data: []byte("same")})
	require.Equal(t, 2, p.Size())
}

package trie

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertIsIdempotent(t *testing.T) {
	s := New()
	k1 := s.Insert([]byte("payload-a"))
	k2 := s.Insert([]byte("payload-a"))
	require.Equal(t, k1, k2)
	require.Equal(t, 1, s.Len())
}

func TestRootChangesOnNewContent(t *testing.T) {
	s := New()
	_, err := s.Root()
	require.ErrorIs(t, err, ErrEmpty)

	s.Insert([]byte("payload-a"))
	r1, err := s.Root()
	require.NoError(t, err)

	s.Insert([]byte("payload-b"))
	r2, err := s.Root()
	require.NoError(t, err)

	require.NotEqual(t, r1, r2)
}

// TestProofInclusionSoundness is P5: every key ever inserted has a proof
// that verifies against the current root.
func TestProofInclusionSoundness(t *testing.T) {
	s := New()
	payloads := [][]byte{
		[]byte("alpha"), []byte("bravo"), []byte("charlie"),
		[]byte("delta"), []byte("echo"), []byte("foxtrot"),
	}
	keys := make([]Key, len(payloads))
	for i, p := range payloads {
		keys[i] = s.Insert(p)
	}
	root, err := s.Root()
	require.NoError(t, err)

	for i, k := range keys {
		proof, ok := s.Proof(k)
		require.True(t, ok, "payload %d should have a proof", i)
		require.True(t, VerifyProof(proof, root), "proof for payload %d should verify", i)
	}
}

// TestProofRejectsWrongRoot ensures a proof does not verify against a root
// it wasn't built for.
func TestProofRejectsWrongRoot(t *testing.T) {
	s := New()
	s.Insert([]byte("alpha"))
	k := s.Insert([]byte("bravo"))

	proof, ok := s.Proof(k)
	require.True(t, ok)

	s2 := New()
	s2.Insert([]byte("completely-different"))
	wrongRoot, err := s2.Root()
	require.NoError(t, err)

	require.False(t, VerifyProof(proof, wrongRoot))
}

// TestProofAbsentKeyIsNonInclusion is P6: a key that was never inserted has
// no proof at all, which callers treat as definitive non-inclusion.
func TestProofAbsentKeyIsNonInclusion(t *testing.T) {
	s := New()
	s.Insert([]byte("alpha"))
	s.Insert([]byte("bravo"))

	absent := KeyOf([]byte("never-inserted"))
	_, ok := s.Proof(absent)
	require.False(t, ok)
}

// TestProofTamperedValueFailsVerification ensures a proof cannot be
// repurposed to vouch for a different value under the same key.
func TestProofTamperedValueFailsVerification(t *testing.T) {
	s := New()
	k := s.Insert([]byte("alpha"))
	s.Insert([]byte("bravo"))
	root, err := s.Root()
	require.NoError(t, err)

	proof, ok := s.Proof(k)
	require.True(t, ok)

	proof.Value[0] ^= 0xFF
	require.False(t, VerifyProof(proof, root))
}

func TestManyInsertsProduceDistinctLeaves(t *testing.T) {
	s := New()
	const n = 200
	for i := 0; i < n; i++ {
		s.Insert([]byte{byte(i), byte(i >> 8)})
	}
	require.Equal(t, n, s.Len())

	root, err := s.Root()
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		k := KeyOf([]byte{byte(i), byte(i >> 8)})
		proof, ok := s.Proof(k)
		require.True(t, ok)
		require.True(t, VerifyProof(proof, root))
	}
}

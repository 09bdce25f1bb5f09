package wallet_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/sequencer/wallet"
)

func TestGenerateProducesMatchingPubKey(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)
	require.Equal(t, w.PubKey().Hex(), w.PrivKey().Public().Hex())
}

func TestKeystoreRoundTrip(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, wallet.SaveKey(path, "correct horse battery staple", w.PrivKey()))

	loaded, err := wallet.LoadKey(path, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, w.PrivKey().Hex(), loaded.Hex())
}

func TestKeystoreRejectsWrongPassword(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, wallet.SaveKey(path, "right-password", w.PrivKey()))

	_, err = wallet.LoadKey(path, "wrong-password")
	require.Error(t, err)
}

package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/internal/testutil"
	"github.com/tolelom/sequencer/storage"
	"github.com/tolelom/sequencer/trie"
)

// LevelBlockStore is defined against the storage.DB interface, not a
// concrete LevelDB, so an in-memory DB exercises the exact same code path
// production does against real LevelDB.
func TestLevelBlockStoreOverMemDB(t *testing.T) {
	db := testutil.NewMemDB()
	store := storage.NewLevelBlockStore(db)

	require.NoError(t, store.PutBlock(0, chain.Genesis(1000)))
	tx := chain.Transaction{Data: []byte("payload"), Timestamp: 1001}
	require.NoError(t, store.PutBlock(1, chain.NewBlock(1, 1001, []chain.Transaction{tx})))

	h, ok, err := store.Height()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(1), h)

	got, err := store.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, tx.Data, got.Transactions[0].Data)

	_, err = store.GetBlock(2)
	require.ErrorIs(t, err, chain.ErrNotFound)
}

func TestReplayTransactionsIntoRebuildsTrie(t *testing.T) {
	db := testutil.NewMemDB()
	store := storage.NewLevelBlockStore(db)

	require.NoError(t, store.PutBlock(0, chain.Genesis(1000)))
	tx1 := chain.Transaction{Data: []byte("payload-1"), Timestamp: 1001}
	tx2 := chain.Transaction{Data: []byte("payload-2"), Timestamp: 1002}
	require.NoError(t, store.PutBlock(1, chain.NewBlock(1, 1001, []chain.Transaction{tx1})))
	require.NoError(t, store.PutBlock(2, chain.NewBlock(2, 1002, []chain.Transaction{tx2})))

	want := trie.New()
	want.Insert(tx1.Data)
	want.Insert(tx2.Data)
	wantRoot, err := want.Root()
	require.NoError(t, err)

	got := trie.New()
	require.NoError(t, storage.ReplayTransactionsInto(db, got))
	require.Equal(t, 2, got.Len())

	gotRoot, err := got.Root()
	require.NoError(t, err)
	require.Equal(t, wantRoot, gotRoot)
}

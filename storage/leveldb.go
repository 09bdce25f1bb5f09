package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/trie"
)

// ErrNotFound is the sentinel storage.DB implementations return for a
// missing key.
var ErrNotFound = chain.ErrNotFound

// LevelDB implements DB using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.batch.Put(key, value) }
func (b *levelBatch) Delete(key []byte)      { b.batch.Delete(key) }
func (b *levelBatch) Reset()                 { b.batch.Reset() }
func (b *levelBatch) Write() error           { return b.db.Write(b.batch, nil) }

// ---- chain.Store implementation ----

// heightKey gives BlockLog a one-table layout: every committed block lives
// under "block:" followed by the big-endian height, so goleveldb's
// lexicographic iteration order agrees with numeric height order. A single
// marker key records the highest height written so Height() needs no scan.
const heightMarkerKey = "chain:height"

func heightKey(h uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], h)
	return append([]byte("block:"), buf[:]...)
}

// LevelBlockStore implements chain.Store on top of any DB, keyed the same
// way regardless of backend (LevelDB in production, DB's in-memory test
// double in package testutil).
type LevelBlockStore struct {
	db DB
}

// NewLevelBlockStore wraps db as a chain.Store.
func NewLevelBlockStore(db DB) *LevelBlockStore {
	return &LevelBlockStore{db: db}
}

func (s *LevelBlockStore) PutBlock(height uint32, block *chain.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block %d: %w", height, err)
	}
	batch := s.db.NewBatch()
	batch.Set(heightKey(height), data)
	var hbuf [4]byte
	binary.BigEndian.PutUint32(hbuf[:], height)
	batch.Set([]byte(heightMarkerKey), hbuf[:])
	return batch.Write()
}

func (s *LevelBlockStore) GetBlock(height uint32) (*chain.Block, error) {
	data, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, err
	}
	var b chain.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal block %d: %w", height, err)
	}
	return &b, nil
}

func (s *LevelBlockStore) Height() (uint32, bool, error) {
	val, err := s.db.Get([]byte(heightMarkerKey))
	if err == ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint32(val), true, nil
}

// blockKeyPrefix is the iteration prefix every committed block is stored
// under (see heightKey) — everything under it, and nothing else, is a
// JSON-encoded chain.Block.
var blockKeyPrefix = []byte("block:")

// ReplayTransactionsInto walks every block db has ever stored, via its
// prefix iterator, and inserts each transaction payload into tr. The trie
// holds no durable state of its own, so a restarted node must rebuild it
// from the block log before serving /merkle_proof or /get/state_root_hash.
func ReplayTransactionsInto(db DB, tr *trie.Store) error {
	it := db.NewIterator(blockKeyPrefix)
	defer it.Release()
	for it.Next() {
		var b chain.Block
		if err := json.Unmarshal(it.Value(), &b); err != nil {
			return fmt.Errorf("replay: unmarshal %q: %w", it.Key(), err)
		}
		for _, tx := range b.Transactions {
			tr.Insert(tx.Data)
		}
	}
	return it.Error()
}

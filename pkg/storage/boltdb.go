package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/drewrad8/strategos/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketHistory     = []byte("history")
	bucketCheckpoints = []byte("checkpoints")
	bucketReflections = []byte("reflections")
)

// seqKeyWidth is wide enough that lexicographic byte ordering of
// zero-padded decimal seqs matches numeric ordering for any seq a
// single process lifetime will produce.
const seqKeyWidth = 20

func historyKey(workerID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s/%0*d", workerID, seqKeyWidth, seq))
}

func historyPrefix(workerID string) []byte {
	return []byte(workerID + "/")
}

// BoltStore implements Store using BoltDB, mirroring the teacher's
// bucket-per-entity idiom repurposed from cluster-state buckets to
// output-history and checkpoint buckets.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the strategos bbolt database
// under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "strategos.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketHistory, bucketCheckpoints, bucketReflections} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// AppendHistory writes one durable output segment. The history bucket
// is append-only: the registry is the sole writer and never reuses a
// seq for a given worker, so this never overwrites an existing key in
// practice even though Put would allow it (spec.md §4.3).
func (s *BoltStore) AppendHistory(workerID string, seq uint64, data []byte, at time.Time) error {
	entry := HistoryEntry{Seq: seq, Bytes: data, Timestamp: at}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		encoded, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(historyKey(workerID, seq), encoded)
	})
}

// History returns up to limit entries for workerID starting at offset,
// in seq order.
func (s *BoltStore) History(workerID string, offset, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		c := b.Cursor()
		prefix := historyPrefix(workerID)
		skipped := 0
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// SaveCheckpoint persists an immutable checkpoint record, keyed by id.
func (s *BoltStore) SaveCheckpoint(cp *types.Checkpoint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		data, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		return b.Put([]byte(cp.ID), data)
	})
}

// GetCheckpoint retrieves a checkpoint by id.
func (s *BoltStore) GetCheckpoint(id string) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("checkpoint not found: %s", id)
		}
		return json.Unmarshal(data, &cp)
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListCheckpoints returns every checkpoint in the store, across all
// workers. Callers filter by WorkerID themselves.
func (s *BoltStore) ListCheckpoints() ([]*types.Checkpoint, error) {
	var checkpoints []*types.Checkpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		return b.ForEach(func(k, v []byte) error {
			var cp types.Checkpoint
			if err := json.Unmarshal(v, &cp); err != nil {
				return err
			}
			checkpoints = append(checkpoints, &cp)
			return nil
		})
	})
	return checkpoints, err
}

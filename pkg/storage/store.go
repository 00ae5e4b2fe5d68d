package storage

import (
	"time"

	"github.com/drewrad8/strategos/pkg/types"
)

// HistoryEntry is one durable output segment, as returned by paginated
// history reads (spec.md §4.3).
type HistoryEntry struct {
	Seq       uint64    `json:"seq"`
	Bytes     []byte    `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore is the durable, paginated side of the output ring
// (spec.md §3's History Store). Entries are never modified once
// written.
type HistoryStore interface {
	AppendHistory(workerID string, seq uint64, data []byte, at time.Time) error
	History(workerID string, offset, limit int) ([]HistoryEntry, error)
}

// CheckpointStore persists immutable Checkpoint records (spec.md §3).
type CheckpointStore interface {
	SaveCheckpoint(cp *types.Checkpoint) error
	ListCheckpoints() ([]*types.Checkpoint, error)
	GetCheckpoint(id string) (*types.Checkpoint, error)
}

// Store composes the durable stores backing the core, plus lifecycle.
type Store interface {
	HistoryStore
	CheckpointStore
	ReflectionStore
	Close() error
}

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drewrad8/strategos/pkg/types"
)

// snapshotSchemaVersion is bumped whenever the envelope's shape changes
// in a way old readers cannot tolerate (SPEC_FULL.md §9.2).
const snapshotSchemaVersion = 1

// RegistrySnapshot is the whole-file envelope written on every registry
// mutation. Unlike history and checkpoints, the registry's live state
// is wholesale replaced rather than appended to, so it is kept as a
// single JSON document instead of a bbolt bucket.
type RegistrySnapshot struct {
	SchemaVersion int             `json:"schemaVersion"`
	Workers       []*types.Worker `json:"workers"`
}

// ErrUnsupportedSnapshotVersion is returned by LoadSnapshot when the
// file's schemaVersion is newer than this binary understands.
type ErrUnsupportedSnapshotVersion struct {
	Found int
}

func (e *ErrUnsupportedSnapshotVersion) Error() string {
	return fmt.Sprintf("storage: snapshot schema version %d is newer than supported version %d", e.Found, snapshotSchemaVersion)
}

func snapshotPath(dataDir string) string {
	return filepath.Join(dataDir, "registry-snapshot.json")
}

// SaveSnapshot writes the registry snapshot atomically: the new
// contents land in a temp file in the same directory, then an
// os.Rename swaps it into place, so a reader never observes a
// partially-written file and a crash mid-write leaves the previous
// snapshot intact.
func SaveSnapshot(dataDir string, workers []*types.Worker) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	snap := RegistrySnapshot{
		SchemaVersion: snapshotSchemaVersion,
		Workers:       workers,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := snapshotPath(dataDir)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// LoadSnapshot reads the registry snapshot written by SaveSnapshot. A
// missing file is not an error: it returns a nil worker slice, the
// state of a registry that has never been persisted.
func LoadSnapshot(dataDir string) ([]*types.Worker, error) {
	path := snapshotPath(dataDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap RegistrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.SchemaVersion > snapshotSchemaVersion {
		return nil, &ErrUnsupportedSnapshotVersion{Found: snap.SchemaVersion}
	}
	return snap.Workers, nil
}

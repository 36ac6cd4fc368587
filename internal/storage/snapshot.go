package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairScope/internal/model"
)

// FileSnapshotStore persists snapshots to a JSON file, replacing it atomically.
type FileSnapshotStore struct {
	path    string
	enabled bool
}

func NewFileSnapshotStore(path string, enabled bool) *FileSnapshotStore {
	return &FileSnapshotStore{path: path, enabled: enabled}
}

func (s *FileSnapshotStore) Load(_ context.Context) (model.Snapshot, bool, error) {
	if !s.enabled {
		return model.Snapshot{}, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return model.Snapshot{}, false, fmt.Errorf("snapshot path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (s *FileSnapshotStore) Save(_ context.Context, snapshot model.Snapshot) error {
	if !s.enabled {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	if snapshot.UpdatedAt == "" {
		snapshot.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

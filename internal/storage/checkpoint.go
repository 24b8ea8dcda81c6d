package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Checkpoint errors.
var (
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrCheckpointExists    = errors.New("checkpoint already exists")
	ErrCheckpointCorrupted = errors.New("checkpoint integrity check failed")
	ErrInvalidCheckpoint   = errors.New("invalid checkpoint id")
	ErrInMemoryDatabase    = errors.New("in-memory databases cannot be checkpointed")
)

// CheckpointInfo describes one database snapshot.
type CheckpointInfo struct {
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	ID            string    `json:"id" yaml:"id"`
	Description   string    `json:"description" yaml:"description"`
	FileSize      int64     `json:"file_size" yaml:"file_size"`
	Users         int       `json:"users" yaml:"users"`
	Documents     int       `json:"documents" yaml:"documents"`
	SchemaVersion int       `json:"schema_version" yaml:"schema_version"`
}

// CheckpointManager snapshots the database into a checkpoints directory next to it.
type CheckpointManager struct {
	storage *SQLiteStorage
	dir     string
}

// NewCheckpointManager creates a manager for a file-backed storage.
func NewCheckpointManager(s *SQLiteStorage) (*CheckpointManager, error) {
	if s.dbPath == ":memory:" {
		return nil, ErrInMemoryDatabase
	}

	dir := filepath.Join(filepath.Dir(s.dbPath), "checkpoints")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &CheckpointManager{storage: s, dir: dir}, nil
}

func (cm *CheckpointManager) paths(id string) (db, meta string, err error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidCheckpoint, id)
	}
	return filepath.Join(cm.dir, id+".db"), filepath.Join(cm.dir, id+".meta.json"), nil
}

// Create writes a consistent copy of the database. An empty id is generated from the clock.
func (cm *CheckpointManager) Create(ctx context.Context, id, description string) (*CheckpointInfo, error) {
	if id == "" {
		id = "checkpoint-" + time.Now().Format("2006-01-02-150405")
	}
	dbPath, metaPath, err := cm.paths(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointExists, id)
	}

	version, err := cm.storage.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	info := &CheckpointInfo{
		ID:            id,
		CreatedAt:     time.Now(),
		Description:   description,
		SchemaVersion: version,
	}
	if err := cm.storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&info.Users); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := cm.storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&info.Documents); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if _, err := cm.storage.db.ExecContext(ctx, "VACUUM INTO ?", dbPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	info.FileSize = stat.Size()

	if err := writeMetadata(metaPath, info); err != nil {
		if rmErr := os.Remove(dbPath); rmErr != nil {
			slog.Error("Failed to remove checkpoint after metadata failure", "error", rmErr)
		}
		return nil, err
	}

	slog.Info("Created checkpoint", "id", id, "users", info.Users, "documents", info.Documents)
	return info, nil
}

// List returns every checkpoint, newest first. Unreadable metadata is skipped.
func (cm *CheckpointManager) List() ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(cm.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	var infos []CheckpointInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := readMetadata(filepath.Join(cm.dir, entry.Name()))
		if err != nil {
			slog.Debug("Skipping unreadable checkpoint metadata", "file", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, *info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Restore replaces the database file with a checkpoint. The storage is closed
// first and must be reopened by the caller.
func (cm *CheckpointManager) Restore(id string) error {
	dbPath, metaPath, err := cm.paths(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
		}
		return fmt.Errorf("failed to access checkpoint: %w", err)
	}
	if _, err := readMetadata(metaPath); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointCorrupted, err)
	}

	if err := cm.storage.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	live := cm.storage.dbPath
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(live + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s file: %w", suffix, err)
		}
	}
	if err := copyFile(dbPath, live); err != nil {
		return fmt.Errorf("failed to restore checkpoint: %w", err)
	}

	slog.Info("Restored checkpoint", "id", id, "database", live)
	return nil
}

// Delete removes a checkpoint and its metadata.
func (cm *CheckpointManager) Delete(id string) error {
	dbPath, metaPath, err := cm.paths(id)
	if err != nil {
		return err
	}
	if err := os.Remove(dbPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
		}
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove checkpoint metadata", "error", err, "path", metaPath)
	}
	return nil
}

func writeMetadata(path string, info *CheckpointInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint metadata: %w", err)
	}
	return nil
}

func readMetadata(path string) (*CheckpointInfo, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var info CheckpointInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// copyFile writes through a temporary file and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

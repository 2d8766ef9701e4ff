package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
)

// DefaultDataDir is the default directory for the JSON files.
const DefaultDataDir = "data"

// File names inside the data directory.
const (
	pipelinesFile  = "pipelines.json"
	executionsFile = "executions.json"
	auditFile      = "audit.json"
)

// FileBackend stores each collection as a JSON array in its own file.
// Writes go to a temp file first and are renamed into place.
type FileBackend struct {
	dir string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	if dir == "" {
		dir = DefaultDataDir
	}
	return &FileBackend{dir: dir}
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }

// Dir returns the data directory.
func (b *FileBackend) Dir() string { return b.dir }

// Load reads the three collection files. Missing files are empty collections.
func (b *FileBackend) Load(_ context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := b.readJSON(pipelinesFile, &snap.Pipelines); err != nil {
		return nil, err
	}
	if err := b.readJSON(executionsFile, &snap.Executions); err != nil {
		return nil, err
	}
	if err := b.readJSON(auditFile, &snap.Audit); err != nil {
		return nil, err
	}
	return snap, nil
}

// Persist rewrites all three collection files.
func (b *FileBackend) Persist(_ context.Context, snap *Snapshot) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	var errs []error
	if err := b.writeJSON(pipelinesFile, snap.Pipelines); err != nil {
		errs = append(errs, err)
	}
	if err := b.writeJSON(executionsFile, snap.Executions); err != nil {
		errs = append(errs, err)
	}
	if err := b.writeJSON(auditFile, snap.Audit); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) readJSON(name string, v any) error {
	path := filepath.Join(b.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("store file not found, starting empty", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

func (b *FileBackend) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if string(data) == "null" {
		data = []byte("[]")
	}

	path := filepath.Join(b.dir, name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file for %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

// MemoryBackend keeps the last persisted snapshot in memory.
type MemoryBackend struct {
	last    *Snapshot
	persist int
	// Err, when set, is returned from Persist.
	Err error
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns a backend seeded with snap (may be nil).
func NewMemoryBackend(snap *Snapshot) *MemoryBackend {
	return &MemoryBackend{last: snap}
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return "memory" }

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context) (*Snapshot, error) {
	return m.last, nil
}

// Persist implements Backend.
func (m *MemoryBackend) Persist(_ context.Context, snap *Snapshot) error {
	m.persist++
	if m.Err != nil {
		return m.Err
	}
	m.last = snap
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }

// Last returns the most recently persisted snapshot.
func (m *MemoryBackend) Last() *Snapshot { return m.last }

// PersistCount returns how many times Persist was called.
func (m *MemoryBackend) PersistCount() int { return m.persist }

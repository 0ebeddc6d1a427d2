package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aktagon/feedwatch/internal/logger"
)

// JSONFile stores entries as an indented JSON array in a single file.
type JSONFile struct {
	path          string
	backupCorrupt bool
	log           logger.Logger
}

// NewJSONFile returns a JSON file backend for path.
func NewJSONFile(path string, opts Options) *JSONFile {
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &JSONFile{path: path, backupCorrupt: opts.BackupCorrupt, log: log}
}

// Path returns the file location.
func (s *JSONFile) Path() string {
	return s.path
}

// Load reads the store. A missing or blank file is an empty store. Entries
// repeating an earlier link are dropped.
func (s *JSONFile) Load(ctx context.Context) ([]Entry, error) {
	entries, err := s.LoadWithDuplicates(ctx)
	if err != nil {
		return nil, err
	}

	entries, dropped := Dedupe(entries)
	if dropped > 0 {
		s.log.Warn("dropped duplicate links from store",
			logger.String("path", s.path),
			logger.Int("dropped", dropped),
		)
	}
	return entries, nil
}

// LoadWithDuplicates is Load without link deduplication.
func (s *JSONFile) LoadWithDuplicates(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		if !s.backupCorrupt {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
		}
		return nil, s.backup(err)
	}
	return entries, nil
}

// backup moves an undecodable store aside so the run can start empty
// without destroying the previous contents.
func (s *JSONFile) backup(decodeErr error) error {
	backupPath := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, backupPath); err != nil {
		return fmt.Errorf("%w: %s: %v (backup failed: %v)", ErrCorrupt, s.path, decodeErr, err)
	}

	s.log.Warn("store is corrupt, starting empty",
		logger.String("path", s.path),
		logger.String("backup", backupPath),
		logger.Error(decodeErr),
	)
	return nil
}

// Save replaces the file contents atomically: the entries are written to a
// temporary file in the same directory which is then renamed over the store.
func (s *JSONFile) Save(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Keywords == nil {
			e.Keywords = []string{}
		}
		out[i] = e
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	return WriteFileAtomic(s.path, append(data, '\n'))
}

// Close is a no-op for file stores.
func (s *JSONFile) Close() error {
	return nil
}

// WriteFileAtomic writes data to path via a synced temporary file and rename,
// so readers see either the old or the new contents.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

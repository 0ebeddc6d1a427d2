package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aktagon/feedwatch/internal/logger"
)

// ErrCorrupt is returned when a store exists but cannot be decoded.
var ErrCorrupt = errors.New("store is corrupt")

// Backend loads and replaces the persisted entries as a whole.
type Backend interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// Options configures Open.
type Options struct {
	// BackupCorrupt moves an undecodable JSON store aside and loads it as empty
	// instead of failing.
	BackupCorrupt bool
	Log           logger.Logger
}

// Open returns the backend for driver ("json" or "sqlite") at path.
func Open(driver, path string, opts Options) (Backend, error) {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}

	switch driver {
	case "json":
		return NewJSONFile(path, opts), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// DriverForPath infers the driver from a file extension.
func DriverForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "json"
	}
}

// Command migrate performs maintenance on feedwatch stores.
//
//	migrate dedupe <store.json>      drop entries repeating an earlier link
//	migrate convert <src> <dst>      copy entries between JSON and SQLite stores
//
// The backend is chosen from the file extension: .db, .sqlite and .sqlite3
// are SQLite, anything else is JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aktagon/feedwatch/internal/logger"
	"github.com/aktagon/feedwatch/internal/store"
)

const usage = "Usage: migrate <dedupe <store.json> | convert <src> <dst>>"

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), os.Args[1:], log); err != nil {
		log.Error("migration failed", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, log logger.Logger) error {
	if len(args) < 2 {
		return errors.New(usage)
	}

	switch args[0] {
	case "dedupe":
		removed, err := dedupe(ctx, args[1])
		if err != nil {
			return err
		}
		log.Info("deduplicated store", logger.String("path", args[1]), logger.Int("removed", removed))
		return nil
	case "convert":
		if len(args) < 3 {
			return errors.New(usage)
		}
		n, err := convert(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		log.Info("converted store",
			logger.String("src", args[1]),
			logger.String("dst", args[2]),
			logger.Int("entries", n),
		)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// dedupe rewrites a JSON store keeping the first entry per link and returns
// how many entries were removed. SQLite stores enforce unique links already.
func dedupe(ctx context.Context, path string) (int, error) {
	if store.DriverForPath(path) != "json" {
		return 0, fmt.Errorf("dedupe supports JSON stores only, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("opening store: %w", err)
	}

	file := store.NewJSONFile(path, store.Options{})
	entries, err := file.LoadWithDuplicates(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}

	kept, removed := store.Dedupe(entries)
	if removed == 0 {
		return 0, nil
	}
	if err := file.Save(ctx, kept); err != nil {
		return 0, fmt.Errorf("saving %s: %w", path, err)
	}
	return removed, nil
}

// convert copies every entry from src to dst, replacing dst's contents.
func convert(ctx context.Context, src, dst string) (int, error) {
	if _, err := os.Stat(src); err != nil {
		return 0, fmt.Errorf("opening source store: %w", err)
	}

	from, err := store.Open(store.DriverForPath(src), src, store.Options{})
	if err != nil {
		return 0, err
	}
	defer from.Close()

	entries, err := from.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", src, err)
	}

	to, err := store.Open(store.DriverForPath(dst), dst, store.Options{})
	if err != nil {
		return 0, err
	}
	defer to.Close()

	if err := to.Save(ctx, entries); err != nil {
		return 0, fmt.Errorf("saving %s: %w", dst, err)
	}
	return len(entries), nil
}

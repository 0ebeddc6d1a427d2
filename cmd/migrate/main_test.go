package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aktagon/feedwatch/internal/logger"
	"github.com/aktagon/feedwatch/internal/store"
)

const duplicated = `[
    {"title": "first", "summary": "", "link": "https://a", "published": "Unknown Date", "keywords": ["CDx"]},
    {"title": "other", "summary": "", "link": "https://b", "published": "Unknown Date", "keywords": ["KRAS"]},
    {"title": "second", "summary": "", "link": "https://a", "published": "Unknown Date", "keywords": ["CDx"]}
]`

func TestDedupe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered_feeds.json")
	require.NoError(t, os.WriteFile(path, []byte(duplicated), 0644))

	removed, err := dedupe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := store.NewJSONFile(path, store.Options{}).LoadWithDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Title)
	assert.Equal(t, "https://b", entries[1].Link)

	removed, err = dedupe(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDedupe_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := dedupe(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = dedupe(context.Background(), filepath.Join(dir, "feeds.db"))
	assert.ErrorContains(t, err, "JSON stores only")
}

func TestConvert_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "filtered_feeds.json")
	db := filepath.Join(dir, "feeds.db")
	back := filepath.Join(dir, "back.json")
	require.NoError(t, os.WriteFile(src, []byte(duplicated), 0644))

	n, err := convert(context.Background(), src, db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = convert(context.Background(), db, back)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := store.NewJSONFile(back, store.Options{}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Title)
	assert.Equal(t, []string{"KRAS"}, entries[1].Keywords)
}

func TestRun_Usage(t *testing.T) {
	log := logger.NewNop()

	assert.Error(t, run(context.Background(), nil, log))
	assert.Error(t, run(context.Background(), []string{"convert", "only-src.json"}, log))
	assert.ErrorContains(t, run(context.Background(), []string{"explode", "x"}, log), "unknown command")
}

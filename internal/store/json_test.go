package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFile_FieldNamesAndIndent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered_feeds.json")
	s := NewJSONFile(path, Options{})

	require.NoError(t, s.Save(context.Background(), []Entry{{Title: "t", Link: "l", Published: UnknownDate}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	for _, field := range []string{`"title"`, `"summary"`, `"link"`, `"published"`, `"keywords": []`} {
		assert.Contains(t, text, field)
	}
	assert.True(t, strings.HasPrefix(text, "[\n    {\n        \"title\""), "want 4-space indentation, got %q", text)
}

func TestJSONFile_BlankFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	entries, err := NewJSONFile(path, Options{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJSONFile_CorruptFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("[{not json"), 0644))

	_, err := NewJSONFile(path, Options{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)

	// the file is left untouched
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "[{not json", string(data))
}

func TestJSONFile_CorruptBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	require.NoError(t, os.WriteFile(path, []byte("[{not json"), 0644))

	entries, err := NewJSONFile(path, Options{BackupCorrupt: true}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupt store should be moved aside")

	backups, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "[{not json", string(data))
}

func TestJSONFile_LoadDedupesHandEditedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	content := `[{"title":"a","link":"x"},{"title":"b","link":"x"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := NewJSONFile(path, Options{}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Title)

	raw, err := NewJSONFile(path, Options{}).LoadWithDuplicates(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "out.json", files[0].Name())
}

func TestJSONFile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewJSONFile(filepath.Join(t.TempDir(), "s.json"), Options{})
	assert.ErrorIs(t, s.Save(ctx, nil), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-labs/lumi-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStoreMissingFileIsEmptyTable(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), testLogger())

	users, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFileStoreSkipsMalformedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	doc := `{"12": {"language": "ru"}, "not-a-number": {"language": "en"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	store := NewFileStore(path, testLogger())
	users, err := store.LoadAll(context.Background())
	require.NoError(t, err)

	require.Len(t, users, 1)
	assert.Equal(t, int64(12), users[12].ChatID)
}

func TestFileStoreCorruptDocumentFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	store := NewFileStore(path, testLogger())
	_, err := store.LoadAll(context.Background())
	assert.Error(t, err)
}

func TestFileStoreSaveAllLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	store := NewFileStore(path, testLogger())
	ctx := context.Background()

	users := map[int64]*domain.UserRecord{1: domain.NewRecord(1, "ru")}
	require.NoError(t, store.SaveAll(ctx, users))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "users.json", entries[0].Name())
}

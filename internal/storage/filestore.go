package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lumi-labs/lumi-bot/internal/domain"
)

// FileStore keeps the whole user table in one JSON document. Keys are the
// chat IDs rendered as strings, matching the legacy state file layout.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore creates a document-backed store writing to path.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}

	return &FileStore{path: path, log: log}
}

// LoadAll reads the document. A missing file is an empty table, not an error.
func (s *FileStore) LoadAll(_ context.Context) (map[int64]*domain.UserRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[int64]*domain.UserRecord{}, nil
		}
		return nil, fmt.Errorf("read state file %q: %w", s.path, err)
	}

	var raw map[string]*domain.UserRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode state file %q: %w", s.path, err)
	}

	users := make(map[int64]*domain.UserRecord, len(raw))
	for key, rec := range raw {
		chatID, convErr := strconv.ParseInt(key, 10, 64)
		if convErr != nil || rec == nil {
			s.log.Warn("skipping malformed state entry", slog.String("key", key))
			continue
		}
		rec.ChatID = chatID
		users[chatID] = rec
	}

	return users, nil
}

// SaveAll serializes the whole table and replaces the document atomically
// via a temp file rename, so a crash mid-write cannot truncate the state.
func (s *FileStore) SaveAll(_ context.Context, users map[int64]*domain.UserRecord) error {
	raw := make(map[string]*domain.UserRecord, len(users))
	for chatID, rec := range users {
		raw[strconv.FormatInt(chatID, 10)] = rec
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file %q: %w", s.path, err)
	}

	return nil
}

// Path returns the backing file location, useful for diagnostics.
func (s *FileStore) Path() string {
	return filepath.Clean(s.path)
}

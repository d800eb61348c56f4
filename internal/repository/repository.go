// Package repository owns the in-memory user table. It is the single source
// of truth during process lifetime: handlers read and mutate records only
// through it, and every mutation is written through to the backend as a
// full snapshot before the mutating call returns.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/storage"
)

// Repository is a mutex-guarded map of user records backed by a Store.
// The backend's full-snapshot contract forces writes to serialize, so a
// single lock covers both the map and the write-through; events for
// different users cannot race on the snapshot write by construction.
type Repository struct {
	mu          sync.Mutex
	users       map[int64]*domain.UserRecord
	store       storage.Store
	defaultLang string
	log         *slog.Logger
}

// New creates an empty repository over the given backend. Call Load before
// serving events.
func New(store storage.Store, defaultLang string, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}

	return &Repository{
		users:       make(map[int64]*domain.UserRecord),
		store:       store,
		defaultLang: defaultLang,
		log:         log,
	}
}

// Load reads the whole table from the backend and normalizes every record,
// applying defaults for fields missing in older snapshots. The corrected
// form is persisted on the next write, not here.
func (r *Repository) Load(ctx context.Context) error {
	users, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load user table: %w", err)
	}

	for chatID, rec := range users {
		rec.ChatID = chatID
		rec.Normalize(r.defaultLang)
	}

	r.mu.Lock()
	r.users = users
	r.mu.Unlock()

	r.log.Info("user table loaded", slog.Int("users", len(users)))
	return nil
}

// Update runs fn against the record for chatID under the repository lock,
// creating the record on first contact, then writes the full snapshot
// through to the backend. fn must not block on network calls.
func (r *Repository) Update(ctx context.Context, chatID int64, fn func(u *domain.UserRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.ensureLocked(chatID)
	if err := fn(rec); err != nil {
		return err
	}

	return r.saveLocked(ctx)
}

// Get returns a copy of the record for chatID, or nil for unknown users.
// Reads never create records; creation happens in Update so the table only
// ever holds persisted entries. The copy is safe to read without holding
// the lock; mutations go through Update.
func (r *Repository) Get(chatID int64) *domain.UserRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[chatID]
	if !ok {
		return nil
	}
	return rec.Clone()
}

// ForEach calls fn with a copy of every record, ordered by chat ID.
func (r *Repository) ForEach(fn func(u *domain.UserRecord)) {
	r.mu.Lock()
	snapshot := make([]*domain.UserRecord, 0, len(r.users))
	for _, rec := range r.users {
		snapshot = append(snapshot, rec.Clone())
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ChatID < snapshot[j].ChatID })

	for _, rec := range snapshot {
		fn(rec)
	}
}

// Count returns the number of known users.
func (r *Repository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}

func (r *Repository) ensureLocked(chatID int64) *domain.UserRecord {
	rec, ok := r.users[chatID]
	if !ok {
		rec = domain.NewRecord(chatID, r.defaultLang)
		r.users[chatID] = rec
	}
	return rec
}

func (r *Repository) saveLocked(ctx context.Context) error {
	if err := r.store.SaveAll(ctx, r.users); err != nil {
		return fmt.Errorf("persist user table: %w", err)
	}
	return nil
}

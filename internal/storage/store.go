// Package storage defines the persistence contract for the user table and
// its two interchangeable backends. The contract is deliberately coarse:
// the whole table is loaded once at startup and written back as a full
// snapshot after every state-mutating operation. Backends never default
// missing fields; that is the repository's job.
package storage

import (
	"context"

	"github.com/lumi-labs/lumi-bot/internal/domain"
)

// Store is the durable map from chat ID to user record.
type Store interface {
	LoadAll(ctx context.Context) (map[int64]*domain.UserRecord, error)
	SaveAll(ctx context.Context, users map[int64]*domain.UserRecord) error
}

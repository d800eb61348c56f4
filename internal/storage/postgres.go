package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumi-labs/lumi-bot/internal/domain"
)

// PostgresStore maps one row per user: scalar fields as columns in users,
// the conversation history as a JSON column in histories. Every SaveAll
// upserts each user inside a single transaction.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresStore wraps an already-opened database handle.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresStore{db: db, log: log}
}

// LoadAll reads the users table and joins in histories. Histories without a
// matching user row still produce a record so no conversation is orphaned.
func (s *PostgresStore) LoadAll(ctx context.Context) (map[int64]*domain.UserRecord, error) {
	const userQuery = `
		SELECT chat_id, language, lang_confirmed, accepted_at, offer_prompted, offer_remind_at,
		       free_used, premium_plan, premium_until, premium_started_at, premium_source,
		       premium_payment_method, premium_payment_reference, permanent_plan,
		       abuse_strikes, awaiting_lyrics, news_opt_out, news_opted_at,
		       last_support, last_seen_at, last_username, last_full_name
		FROM users
	`

	rows, err := s.db.QueryContext(ctx, userQuery)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	users := make(map[int64]*domain.UserRecord)
	for rows.Next() {
		rec, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan user row: %w", scanErr)
		}
		users[rec.ChatID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	const historyQuery = `SELECT chat_id, history FROM histories`

	hrows, err := s.db.QueryContext(ctx, historyQuery)
	if err != nil {
		return nil, fmt.Errorf("select histories: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var chatID int64
		var raw []byte
		if err := hrows.Scan(&chatID, &raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		rec, ok := users[chatID]
		if !ok {
			rec = &domain.UserRecord{ChatID: chatID}
			users[chatID] = rec
		}

		var history []domain.Turn
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &history); err != nil {
				s.log.Warn("discarding malformed history", slog.Int64("chat_id", chatID), slog.Any("error", err))
				history = nil
			}
		}
		rec.History = history
	}
	if err := hrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate histories: %w", err)
	}

	return users, nil
}

// SaveAll upserts every user and its history inside one transaction.
func (s *PostgresStore) SaveAll(ctx context.Context, users map[int64]*domain.UserRecord) error {
	const upsertUser = `
		INSERT INTO users (
			chat_id, language, lang_confirmed, accepted_at, offer_prompted, offer_remind_at,
			free_used, premium_plan, premium_until, premium_started_at, premium_source,
			premium_payment_method, premium_payment_reference, permanent_plan,
			abuse_strikes, awaiting_lyrics, news_opt_out, news_opted_at,
			last_support, last_seen_at, last_username, last_full_name
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (chat_id) DO UPDATE SET
			language = EXCLUDED.language,
			lang_confirmed = EXCLUDED.lang_confirmed,
			accepted_at = EXCLUDED.accepted_at,
			offer_prompted = EXCLUDED.offer_prompted,
			offer_remind_at = EXCLUDED.offer_remind_at,
			free_used = EXCLUDED.free_used,
			premium_plan = EXCLUDED.premium_plan,
			premium_until = EXCLUDED.premium_until,
			premium_started_at = EXCLUDED.premium_started_at,
			premium_source = EXCLUDED.premium_source,
			premium_payment_method = EXCLUDED.premium_payment_method,
			premium_payment_reference = EXCLUDED.premium_payment_reference,
			permanent_plan = EXCLUDED.permanent_plan,
			abuse_strikes = EXCLUDED.abuse_strikes,
			awaiting_lyrics = EXCLUDED.awaiting_lyrics,
			news_opt_out = EXCLUDED.news_opt_out,
			news_opted_at = EXCLUDED.news_opted_at,
			last_support = EXCLUDED.last_support,
			last_seen_at = EXCLUDED.last_seen_at,
			last_username = EXCLUDED.last_username,
			last_full_name = EXCLUDED.last_full_name
	`

	const upsertHistory = `
		INSERT INTO histories (chat_id, history)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET history = EXCLUDED.history
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}

	for chatID, rec := range users {
		if rec == nil {
			continue
		}

		if _, err := tx.ExecContext(ctx, upsertUser,
			chatID,
			rec.Language,
			rec.LangConfirmed,
			nullTime(rec.PolicyAcceptedAt),
			rec.OfferPrompted,
			nullTime(rec.OfferRemindAt),
			rec.FreeUsed,
			nullString(rec.PremiumPlan),
			nullTime(rec.PremiumUntil),
			nullTime(rec.PremiumStartedAt),
			nullString(rec.PremiumSource),
			nullString(rec.PaymentMethod),
			nullString(rec.PaymentReference),
			nullString(rec.PermanentPlan),
			rec.AbuseStrikes,
			rec.AwaitingLyrics,
			rec.NewsOptOut,
			nullTime(rec.NewsOptedAt),
			nullTime(rec.LastSupportAt),
			nullTime(rec.LastSeenAt),
			nullString(rec.LastUsername),
			nullString(rec.LastFullName),
		); err != nil {
			rollback(tx, s.log)
			return fmt.Errorf("upsert user %d: %w", chatID, err)
		}

		history := rec.History
		if history == nil {
			history = []domain.Turn{}
		}
		raw, marshalErr := json.Marshal(history)
		if marshalErr != nil {
			rollback(tx, s.log)
			return fmt.Errorf("encode history %d: %w", chatID, marshalErr)
		}

		if _, err := tx.ExecContext(ctx, upsertHistory, chatID, raw); err != nil {
			rollback(tx, s.log)
			return fmt.Errorf("upsert history %d: %w", chatID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}

	return nil
}

func scanUser(rows *sql.Rows) (*domain.UserRecord, error) {
	var rec domain.UserRecord
	var (
		acceptedAt, offerRemindAt, premiumUntil, premiumStartedAt  sql.NullTime
		newsOptedAt, lastSupport, lastSeenAt                       sql.NullTime
		premiumPlan, premiumSource, paymentMethod, paymentRef      sql.NullString
		permanentPlan, lastUsername, lastFullName                  sql.NullString
	)

	if err := rows.Scan(
		&rec.ChatID,
		&rec.Language,
		&rec.LangConfirmed,
		&acceptedAt,
		&rec.OfferPrompted,
		&offerRemindAt,
		&rec.FreeUsed,
		&premiumPlan,
		&premiumUntil,
		&premiumStartedAt,
		&premiumSource,
		&paymentMethod,
		&paymentRef,
		&permanentPlan,
		&rec.AbuseStrikes,
		&rec.AwaitingLyrics,
		&rec.NewsOptOut,
		&newsOptedAt,
		&lastSupport,
		&lastSeenAt,
		&lastUsername,
		&lastFullName,
	); err != nil {
		return nil, err
	}

	rec.PolicyAcceptedAt = timePtr(acceptedAt)
	rec.OfferRemindAt = timePtr(offerRemindAt)
	rec.PremiumUntil = timePtr(premiumUntil)
	rec.PremiumStartedAt = timePtr(premiumStartedAt)
	rec.NewsOptedAt = timePtr(newsOptedAt)
	rec.LastSupportAt = timePtr(lastSupport)
	rec.LastSeenAt = timePtr(lastSeenAt)
	rec.PremiumPlan = premiumPlan.String
	rec.PremiumSource = premiumSource.String
	rec.PaymentMethod = paymentMethod.String
	rec.PaymentReference = paymentRef.String
	rec.PermanentPlan = permanentPlan.String
	rec.LastUsername = lastUsername.String
	rec.LastFullName = lastFullName.String

	return &rec, nil
}

func rollback(tx *sql.Tx, log *slog.Logger) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone && log != nil {
		log.Error("rollback error", slog.Any("error", err))
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

package admin

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/entitlement"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/plan"
	"github.com/lumi-labs/lumi-bot/internal/repository"
	"github.com/lumi-labs/lumi-bot/internal/storage"
)

// keyTranslator echoes keys back, so assertions read against locale keys.
type keyTranslator struct{}

func (keyTranslator) T(key string) string           { return key }
func (keyTranslator) Tr(key string, _ ...string) string { return key }
func (keyTranslator) Pool(string) []string          { return nil }
func (keyTranslator) Lang() string                  { return "ru" }

var _ i18n.Translator = keyTranslator{}

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.New(storage.NewFileStore(filepath.Join(t.TempDir(), "users.json"), log), "ru", log)
	require.NoError(t, repo.Load(context.Background()))

	resolver := entitlement.NewResolver(nil, []int64{99}, log)
	return NewService(repo, resolver, entitlement.NewTrialTracker(75, nil)), repo
}

func seed(t *testing.T, repo *repository.Repository, chatID int64, fn func(u *domain.UserRecord)) {
	t.Helper()
	require.NoError(t, repo.Update(context.Background(), chatID, func(u *domain.UserRecord) error {
		fn(u)
		return nil
	}))
}

func TestOverviewActiveOnly(t *testing.T) {
	svc, repo := newTestService(t)
	until := time.Now().UTC().Add(72 * time.Hour)

	seed(t, repo, 1, func(u *domain.UserRecord) { u.LastUsername = "freeloader" })
	seed(t, repo, 2, func(u *domain.UserRecord) {
		u.LastUsername = "payer"
		u.PremiumPlan = string(plan.Comfort)
		u.PremiumUntil = &until
		u.PaymentMethod = "cryptobot"
		u.PaymentReference = "2:comfort:0123456789abcdef"
	})
	seed(t, repo, 3, func(u *domain.UserRecord) { u.PermanentPlan = string(plan.Warm) })

	report := svc.Overview(keyTranslator{}, true)

	assert.Contains(t, report, "subs.header_active")
	assert.NotContains(t, report, "@freeloader")
	assert.Contains(t, report, "2 @payer")
	assert.Contains(t, report, "subs.remaining")
	assert.Contains(t, report, "subs.permanent")
	// long payment references get trimmed
	assert.Contains(t, report, "2:comfort:01…")
	assert.NotContains(t, report, "0123456789abcdef")
}

func TestOverviewAllIncludesFreeUsers(t *testing.T) {
	svc, repo := newTestService(t)

	seed(t, repo, 1, func(u *domain.UserRecord) { u.FreeUsed = 70 })

	report := svc.Overview(keyTranslator{}, false)

	assert.Contains(t, report, "subs.header_all")
	assert.Contains(t, report, "subs.free_left")
}

func TestOverviewEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, "subs.none_active", svc.Overview(keyTranslator{}, true))
	assert.Equal(t, "subs.none_all", svc.Overview(keyTranslator{}, false))
}

func TestGrantAndGrantBest(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, 5, 30, plan.Basic, "manual"))
	u := repo.Get(5)
	assert.Equal(t, string(plan.Basic), u.PremiumPlan)
	require.NotNil(t, u.PremiumUntil)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *u.PremiumUntil, time.Minute)

	require.NoError(t, svc.GrantBest(ctx, 5))
	u = repo.Get(5)
	assert.Equal(t, string(plan.Warm), u.PermanentPlan)
}

func TestFindByUsername(t *testing.T) {
	svc, repo := newTestService(t)

	seed(t, repo, 42, func(u *domain.UserRecord) { u.LastUsername = "SomeUser" })

	id, ok := svc.FindByUsername("@someuser")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = svc.FindByUsername("nobody")
	assert.False(t, ok)
}

func TestIsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	assert.True(t, svc.IsAdmin(99))
	assert.False(t, svc.IsAdmin(1))
}

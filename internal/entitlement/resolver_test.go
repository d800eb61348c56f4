package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

func TestActivePlanPrecedence(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	now := time.Now().UTC()

	t.Run("free by default", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		code, mutated := r.ActivePlan(u)
		assert.Equal(t, plan.Free, code)
		assert.False(t, mutated)
	})

	t.Run("unexpired time-boxed plan wins over free", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		until := now.Add(24 * time.Hour)
		u.PremiumPlan = string(plan.Comfort)
		u.PremiumUntil = &until

		code, _ := r.ActivePlan(u)
		assert.Equal(t, plan.Comfort, code)
	})

	t.Run("expired time-boxed plan falls back to free", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		until := now.Add(-time.Hour)
		u.PremiumPlan = string(plan.Comfort)
		u.PremiumUntil = &until

		code, _ := r.ActivePlan(u)
		assert.Equal(t, plan.Free, code)
	})

	t.Run("permanent wins over everything", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		until := now.Add(-time.Hour)
		u.PremiumPlan = string(plan.Basic)
		u.PremiumUntil = &until
		u.PermanentPlan = string(plan.Warm)

		code, _ := r.ActivePlan(u)
		assert.Equal(t, plan.Warm, code)
	})

	t.Run("unknown stored plan resolves to basic", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		until := now.Add(time.Hour)
		u.PremiumPlan = "legacy"
		u.PremiumUntil = &until

		code, _ := r.ActivePlan(u)
		assert.Equal(t, plan.Basic, code)
	})
}

func TestActivePlanAllowListGrant(t *testing.T) {
	r := NewResolver([]int64{42}, nil, nil)

	u := domain.NewRecord(42, "ru")
	u.FreeUsed = 10

	code, mutated := r.ActivePlan(u)
	assert.Equal(t, plan.Best, code)
	assert.True(t, mutated)
	assert.Equal(t, string(plan.Best), u.PermanentPlan)
	assert.Zero(t, u.FreeUsed)

	// second resolution is pure
	code, mutated = r.ActivePlan(u)
	assert.Equal(t, plan.Best, code)
	assert.False(t, mutated)
}

func TestGrantTimeBoxed(t *testing.T) {
	r := NewResolver(nil, nil, nil)

	u := domain.NewRecord(7, "ru")
	u.FreeUsed = 60
	u.PermanentPlan = string(plan.Warm)

	r.GrantTimeBoxed(u, 30, plan.Comfort, GrantMeta{Source: "cryptopay", PaymentReference: "ref-1"})

	assert.Empty(t, u.PermanentPlan)
	assert.Equal(t, string(plan.Comfort), u.PremiumPlan)
	require.NotNil(t, u.PremiumUntil)
	assert.True(t, u.PremiumUntil.After(time.Now().Add(29*24*time.Hour)))
	assert.Zero(t, u.FreeUsed)
	assert.Equal(t, "cryptopay", u.PremiumSource)
	assert.Equal(t, "ref-1", u.PaymentReference)

	code, _ := r.ActivePlan(u)
	assert.Equal(t, plan.Comfort, code)
}

func TestGrantTimeBoxedDefaults(t *testing.T) {
	r := NewResolver(nil, nil, nil)

	u := domain.NewRecord(7, "ru")
	r.GrantTimeBoxed(u, 0, plan.Free, GrantMeta{})

	assert.Equal(t, string(plan.Basic), u.PremiumPlan)
	require.NotNil(t, u.PremiumUntil)
	// zero days clamps to one
	assert.True(t, u.PremiumUntil.Before(time.Now().Add(25*time.Hour)))
}

func TestIsAdmin(t *testing.T) {
	r := NewResolver([]int64{42}, []int64{1}, nil)

	assert.True(t, r.IsAdmin(1))
	assert.True(t, r.IsAdmin(42))
	assert.False(t, r.IsAdmin(2))
}

package support

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

func newTestScheduler(now *time.Time) *Scheduler {
	s := NewScheduler()
	s.now = func() time.Time { return *now }
	return s
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(&now)

	t.Run("plans without cadence are never due", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		assert.False(t, s.Due(u, plan.Free))
		assert.False(t, s.Due(u, plan.Basic))
	})

	t.Run("no timestamp means due", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		assert.True(t, s.Due(u, plan.Warm))
	})

	t.Run("interval must fully elapse", func(t *testing.T) {
		u := domain.NewRecord(1, "ru")
		s.MarkSent(u)

		assert.False(t, s.Due(u, plan.Warm))

		now = now.Add(23 * time.Hour)
		assert.False(t, s.Due(u, plan.Warm))

		now = now.Add(2 * time.Hour)
		assert.True(t, s.Due(u, plan.Warm))

		// comfort's cadence is twice as long
		assert.False(t, s.Due(u, plan.Comfort))
	})
}

func TestPick(t *testing.T) {
	s := NewScheduler()
	s.pick = func(n int) int { return n - 1 }

	assert.Equal(t, "", s.Pick(nil))
	assert.Equal(t, "c", s.Pick([]string{"a", "b", "c"}))
}

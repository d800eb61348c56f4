package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lumi-labs/lumi-bot/internal/domain"
)

func newTestGate(now *time.Time) *Gate {
	g := NewGate(24*time.Hour, 2*time.Minute)
	g.now = func() time.Time { return *now }
	return g
}

func TestGateFlow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)
	u := domain.NewRecord(1, "ru")

	assert.Equal(t, NeedLanguage, g.Admit(u))

	g.ConfirmLanguage(u, "ru")
	assert.Equal(t, ShowOffer, g.Admit(u))
	assert.True(t, u.OfferPrompted)

	// inside the cooldown the gate stays silent
	now = now.Add(30 * time.Second)
	assert.Equal(t, Hold, g.Admit(u))

	// after the cooldown a short reminder goes out
	now = now.Add(2 * time.Minute)
	assert.Equal(t, RemindOffer, g.Admit(u))

	g.Accept(u)
	assert.Equal(t, Ready, g.Admit(u))
}

func TestGateAcceptanceExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)
	u := domain.NewRecord(1, "ru")

	g.ConfirmLanguage(u, "ru")
	g.Accept(u)
	assert.Equal(t, Ready, g.Admit(u))

	// an expired acceptance re-shows the full offer, not just a reminder
	now = now.Add(25 * time.Hour)
	assert.False(t, g.Accepted(u))
	assert.Nil(t, u.PolicyAcceptedAt)
	assert.Equal(t, ShowOffer, g.Admit(u))
}

func TestGateReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGate(&now)
	u := domain.NewRecord(1, "ru")

	g.ConfirmLanguage(u, "ru")
	g.Accept(u)
	g.Reset(u)

	assert.Nil(t, u.PolicyAcceptedAt)
	assert.False(t, u.OfferPrompted)
	// language confirmation survives a policy reset
	assert.True(t, u.LangConfirmed)
	assert.Equal(t, ShowOffer, g.Admit(u))
}

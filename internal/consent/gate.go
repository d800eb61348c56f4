// Package consent implements the language-confirmation and policy-acceptance
// gate. While the gate is not satisfied, no message reaches classification,
// entitlement, or the model.
package consent

import (
	"time"

	"github.com/lumi-labs/lumi-bot/internal/domain"
)

// Decision tells the caller what to send while the gate holds an event back.
type Decision int

const (
	// Ready means the gate is satisfied and processing may continue.
	Ready Decision = iota
	// NeedLanguage means a language-selection prompt must be sent.
	NeedLanguage
	// ShowOffer means the greeting plus full offer text must be sent.
	ShowOffer
	// RemindOffer means a short acceptance reminder must be sent.
	RemindOffer
	// Hold means the user was reminded recently; stay silent.
	Hold
)

// Gate checks and advances the consent state machine. Admit mutates the
// record (prompt bookkeeping, expiry cleanup), so it must run inside a
// repository update.
type Gate struct {
	ttl              time.Duration
	reminderCooldown time.Duration
	now              func() time.Time
}

// NewGate configures the acceptance TTL and the reminder throttle window.
func NewGate(ttl, reminderCooldown time.Duration) *Gate {
	return &Gate{
		ttl:              ttl,
		reminderCooldown: reminderCooldown,
		now:              time.Now,
	}
}

// Admit evaluates the gate for one inbound event and records the prompt
// bookkeeping for whatever Decision it returns.
func (g *Gate) Admit(u *domain.UserRecord) Decision {
	if !u.LangConfirmed {
		return NeedLanguage
	}

	if g.Accepted(u) {
		return Ready
	}

	now := g.now().UTC()

	if !u.OfferPrompted {
		u.OfferPrompted = true
		u.OfferRemindAt = &now
		return ShowOffer
	}

	if u.OfferRemindAt != nil && now.Sub(*u.OfferRemindAt) < g.reminderCooldown {
		return Hold
	}

	u.OfferRemindAt = &now
	return RemindOffer
}

// Accepted reports whether a valid, unexpired acceptance exists. An expired
// or malformed acceptance is cleared so the full offer is shown again.
func (g *Gate) Accepted(u *domain.UserRecord) bool {
	if u.PolicyAcceptedAt == nil {
		return false
	}

	if g.now().UTC().Sub(*u.PolicyAcceptedAt) >= g.ttl {
		g.Reset(u)
		return false
	}

	return true
}

// Accept records an explicit acceptance, valid for the configured TTL.
func (g *Gate) Accept(u *domain.UserRecord) {
	now := g.now().UTC()
	u.PolicyAcceptedAt = &now
	u.OfferPrompted = true
	u.OfferRemindAt = &now
}

// Reset drops the acceptance and prompt bookkeeping, reverting the record
// to the policy-pending state with the full offer due next.
func (g *Gate) Reset(u *domain.UserRecord) {
	u.PolicyAcceptedAt = nil
	u.OfferPrompted = false
	u.OfferRemindAt = nil
}

// ConfirmLanguage records an explicit language selection.
func (g *Gate) ConfirmLanguage(u *domain.UserRecord, lang string) {
	u.Language = lang
	u.LangConfirmed = true
}

// MarkOfferSent records that the full offer text went out through a path
// other than Admit, such as the /policy command, resetting the reminder
// throttle window.
func (g *Gate) MarkOfferSent(u *domain.UserRecord) {
	now := g.now().UTC()
	u.OfferPrompted = true
	u.OfferRemindAt = &now
}

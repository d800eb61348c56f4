// Package entitlement resolves which subscription tier applies to a user
// and accounts for free-tier trial usage.
package entitlement

import (
	"log/slog"
	"time"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

// permanentUntil is the sentinel expiry stored alongside a permanent grant.
var permanentUntil = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// GrantMeta carries payment bookkeeping attached to a time-boxed grant.
type GrantMeta struct {
	Source           string
	PaymentMethod    string
	PaymentReference string
}

// Resolver computes the active plan for a record and applies grants.
// Precedence is permanent > unexpired time-boxed > free; a missing or
// malformed expiry means inactive, never an error.
type Resolver struct {
	alwaysPremium map[int64]struct{}
	adminIDs      map[int64]struct{}
	now           func() time.Time
	log           *slog.Logger
}

// NewResolver builds a resolver. alwaysPremium users are lazily granted the
// best plan on first evaluation; adminIDs may run administrative commands.
func NewResolver(alwaysPremium, adminIDs []int64, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}

	return &Resolver{
		alwaysPremium: toSet(alwaysPremium),
		adminIDs:      toSet(adminIDs),
		now:           time.Now,
		log:           log,
	}
}

// ActivePlan returns the tier currently in force for u. The one side effect
// is the lazy permanent grant for allow-listed users; it mutates u, so the
// caller must run this inside a repository update when the result may
// change state. Mutated reports whether that happened.
func (r *Resolver) ActivePlan(u *domain.UserRecord) (code plan.Code, mutated bool) {
	if _, ok := r.alwaysPremium[u.ChatID]; ok && u.PermanentPlan != string(plan.Best) {
		r.GrantPermanent(u, plan.Best)
		mutated = true
		r.log.Info("granted allow-listed permanent plan", slog.Int64("chat_id", u.ChatID))
	}

	if u.PermanentPlan != "" {
		return plan.Code(u.PermanentPlan), mutated
	}

	if u.PremiumUntil != nil && u.PremiumUntil.After(r.now()) {
		code = plan.Code(u.PremiumPlan)
		if code == "" || !plan.Valid(code) {
			code = plan.Basic
		}
		return code, mutated
	}

	return plan.Free, mutated
}

// GrantTimeBoxed activates a paid tier for the given number of days,
// clearing any permanent flag and resetting trial usage.
func (r *Resolver) GrantTimeBoxed(u *domain.UserRecord, days int, code plan.Code, meta GrantMeta) {
	if days < 1 {
		days = 1
	}
	if !plan.Valid(code) || code == plan.Free {
		code = plan.Basic
	}

	now := r.now().UTC()
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	source := meta.Source
	if source == "" {
		source = "manual"
	}
	method := meta.PaymentMethod
	if method == "" {
		method = source
	}

	u.PermanentPlan = ""
	u.PremiumPlan = string(code)
	u.PremiumUntil = &until
	u.PremiumStartedAt = &now
	u.PremiumSource = source
	u.PaymentMethod = method
	u.PaymentReference = meta.PaymentReference
	u.FreeUsed = 0
}

// GrantPermanent activates a non-expiring tier and resets trial usage.
func (r *Resolver) GrantPermanent(u *domain.UserRecord, code plan.Code) {
	if !plan.Valid(code) {
		code = plan.Best
	}

	now := r.now().UTC()
	until := permanentUntil

	u.PermanentPlan = string(code)
	u.PremiumPlan = string(code)
	u.PremiumUntil = &until
	u.PremiumStartedAt = &now
	u.PremiumSource = "permanent"
	u.PaymentMethod = "permanent"
	u.PaymentReference = ""
	u.FreeUsed = 0
}

// IsAdmin reports whether chatID may run administrative commands.
// Allow-listed permanent users are admins too.
func (r *Resolver) IsAdmin(chatID int64) bool {
	if _, ok := r.adminIDs[chatID]; ok {
		return true
	}
	_, ok := r.alwaysPremium[chatID]
	return ok
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Package admin implements the operator commands: the subscription overview
// and manual plan grants.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/entitlement"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/plan"
	"github.com/lumi-labs/lumi-bot/internal/repository"
	"github.com/lumi-labs/lumi-bot/pkg/metrics"
)

// Service exposes the operator-facing operations.
type Service struct {
	repo     *repository.Repository
	resolver *entitlement.Resolver
	trial    *entitlement.TrialTracker
	now      func() time.Time
}

// NewService wires the admin operations.
func NewService(repo *repository.Repository, resolver *entitlement.Resolver, trial *entitlement.TrialTracker) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		trial:    trial,
		now:      time.Now,
	}
}

// IsAdmin delegates to the entitlement resolver.
func (s *Service) IsAdmin(chatID int64) bool {
	return s.resolver.IsAdmin(chatID)
}

// Overview renders the subscription report. With activeOnly, users on the
// free tier are skipped. Records come out of the repository sorted by chat
// ID, so the report is stable between calls.
func (s *Service) Overview(tr i18n.Translator, activeOnly bool) string {
	now := s.now().UTC()

	var lines []string
	s.repo.ForEach(func(u *domain.UserRecord) {
		code, _ := s.resolver.ActivePlan(u)
		if activeOnly && code == plan.Free {
			return
		}
		lines = append(lines, s.formatUser(tr, u, code, now))
	})

	if len(lines) == 0 {
		if activeOnly {
			return tr.T("subs.none_active")
		}
		return tr.T("subs.none_all")
	}

	header := tr.T("subs.header_all")
	if activeOnly {
		header = tr.T("subs.header_active")
	}

	return header + "\n\n" + strings.Join(lines, "\n")
}

func (s *Service) formatUser(tr i18n.Translator, u *domain.UserRecord, code plan.Code, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d", u.ChatID)
	if u.LastUsername != "" {
		fmt.Fprintf(&b, " @%s", u.LastUsername)
	}
	fmt.Fprintf(&b, " — %s", tr.T("plans."+string(code)+".name"))

	switch {
	case u.PermanentPlan != "":
		fmt.Fprintf(&b, " (%s)", tr.T("subs.permanent"))
	case u.PremiumUntil != nil:
		if u.PremiumUntil.After(now) {
			fmt.Fprintf(&b, " (%s %s)", tr.T("subs.remaining"), humanize(u.PremiumUntil.Sub(now)))
		} else {
			fmt.Fprintf(&b, " (%s %s %s)", tr.T("subs.expired"), humanize(now.Sub(*u.PremiumUntil)), tr.T("subs.ago"))
		}
	case code == plan.Free:
		left := s.trial.Remaining(u.FreeUsed)
		if left > 0 {
			fmt.Fprintf(&b, " (%s)", tr.Tr("subs.free_left", "count", fmt.Sprintf("%d", left)))
		} else {
			fmt.Fprintf(&b, " (%s)", tr.T("subs.free_none"))
		}
	default:
		fmt.Fprintf(&b, " (%s)", tr.T("subs.no_date"))
	}

	if code != plan.Free {
		if u.PaymentMethod != "" {
			fmt.Fprintf(&b, ", %s: %s", tr.T("subs.method"), u.PaymentMethod)
			if u.PaymentReference != "" {
				fmt.Fprintf(&b, " (%s %s)", tr.T("subs.ref"), shorten(u.PaymentReference))
			}
		} else {
			fmt.Fprintf(&b, ", %s", tr.T("subs.no_method"))
		}
	}

	return b.String()
}

// Grant activates a time-boxed plan for the target user.
func (s *Service) Grant(ctx context.Context, chatID int64, days int, code plan.Code, source string) error {
	err := s.repo.Update(ctx, chatID, func(u *domain.UserRecord) error {
		s.resolver.GrantTimeBoxed(u, days, code, entitlement.GrantMeta{Source: source})
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordGrant(string(code), source)
	return nil
}

// GrantBest activates a permanent best-tier plan for the target user.
func (s *Service) GrantBest(ctx context.Context, chatID int64) error {
	err := s.repo.Update(ctx, chatID, func(u *domain.UserRecord) error {
		s.resolver.GrantPermanent(u, plan.Best)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordGrant(string(plan.Best), "permanent")
	return nil
}

// FindByUsername resolves an @username to a chat ID from stored contact
// bookkeeping. Returns false when the name was never seen.
func (s *Service) FindByUsername(username string) (int64, bool) {
	username = strings.TrimPrefix(strings.ToLower(username), "@")
	if username == "" {
		return 0, false
	}

	var (
		found  bool
		chatID int64
	)
	s.repo.ForEach(func(u *domain.UserRecord) {
		if !found && strings.ToLower(u.LastUsername) == username {
			found = true
			chatID = u.ChatID
		}
	})

	return chatID, found
}

func humanize(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func shorten(ref string) string {
	if len(ref) <= 12 {
		return ref
	}
	return ref[:12] + "…"
}

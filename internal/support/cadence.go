// Package support times the unprompted supportive follow-up messages sent
// to plans that enable them.
package support

import (
	"math/rand"
	"time"

	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

// Scheduler decides when a supportive message is due and picks one.
type Scheduler struct {
	now  func() time.Time
	pick func(n int) int
}

// NewScheduler returns a cadence scheduler using wall-clock time and a
// uniform random phrase choice.
func NewScheduler() *Scheduler {
	return &Scheduler{
		now:  time.Now,
		pick: rand.Intn,
	}
}

// Due reports whether the plan enables supportive messages and enough time
// has passed since the last one. A missing timestamp means due.
func (s *Scheduler) Due(u *domain.UserRecord, code plan.Code) bool {
	interval := plan.Behavior(code).SupportInterval
	if interval <= 0 {
		return false
	}

	if u.LastSupportAt == nil {
		return true
	}

	return s.now().UTC().Sub(*u.LastSupportAt) > interval
}

// Pick selects one phrase from the pool, or "" when the pool is empty.
func (s *Scheduler) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[s.pick(len(pool))]
}

// MarkSent stamps the record after a supportive message went out.
func (s *Scheduler) MarkSent(u *domain.UserRecord) {
	now := s.now().UTC()
	u.LastSupportAt = &now
}

// Package history bounds conversational memory per plan.
package history

import (
	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

// Append records a completed exchange and trims the window to
// 2 × history-pair limit of the active plan, dropping the oldest turns.
// Callers invoke it only after a successful model reply; intercepted or
// rejected messages never reach here.
func Append(u *domain.UserRecord, code plan.Code, userText, reply string) {
	u.History = append(u.History,
		domain.Turn{Role: domain.RoleUser, Content: userText},
		domain.Turn{Role: domain.RoleAssistant, Content: reply},
	)
	u.History = Window(u.History, code)
}

// Window returns the newest turns that fit the plan's bound. The bound is
// plan-dependent: changing plans changes future truncation but never
// rewrites already-stored history beyond this trim.
func Window(turns []domain.Turn, code plan.Code) []domain.Turn {
	limit := plan.Behavior(code).HistoryLimit * 2
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}

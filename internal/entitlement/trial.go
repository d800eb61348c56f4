package entitlement

// TrialResult describes the outcome of consuming one trial message.
type TrialResult struct {
	// Rejected means the ceiling was exceeded: no model call, no history
	// append; the counter is not rolled back.
	Rejected bool
	// Remaining is the allowance left after this increment.
	Remaining int
	// Milestone means Remaining matched a configured reminder value and a
	// one-line reminder should follow the normal reply.
	Milestone bool
}

// TrialTracker accounts free-tier usage against a fixed message ceiling.
type TrialTracker struct {
	ceiling  int
	remindAt map[int]struct{}
}

// NewTrialTracker configures the trial ceiling and the set of remaining
// counts that trigger a milestone reminder.
func NewTrialTracker(ceiling int, remindAt []int) *TrialTracker {
	set := make(map[int]struct{}, len(remindAt))
	for _, n := range remindAt {
		set[n] = struct{}{}
	}

	return &TrialTracker{ceiling: ceiling, remindAt: set}
}

// Ceiling returns the configured number of free messages.
func (t *TrialTracker) Ceiling() int {
	return t.ceiling
}

// Consume charges one message for a free-tier user. Callers must skip it
// entirely for any non-free active plan.
func (t *TrialTracker) Consume(freeUsed *int) TrialResult {
	*freeUsed++

	if *freeUsed > t.ceiling {
		return TrialResult{Rejected: true}
	}

	remaining := t.ceiling - *freeUsed
	_, milestone := t.remindAt[remaining]
	return TrialResult{Remaining: remaining, Milestone: milestone}
}

// Remaining reports the allowance left without consuming anything.
func (t *TrialTracker) Remaining(freeUsed int) int {
	left := t.ceiling - freeUsed
	if left < 0 {
		return 0
	}
	return left
}

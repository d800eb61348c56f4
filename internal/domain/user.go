package domain

import "time"

// Turn roles as stored in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single history entry, most-recent-last.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserRecord holds everything the bot knows about one remote user.
// It is created lazily on first contact and never deleted by the core.
type UserRecord struct {
	ChatID int64 `json:"-"`

	Language      string `json:"language"`
	LangConfirmed bool   `json:"lang_confirmed"`

	PolicyAcceptedAt *time.Time `json:"accepted_at,omitempty"`
	OfferPrompted    bool       `json:"offer_prompted"`
	OfferRemindAt    *time.Time `json:"offer_remind_at,omitempty"`

	FreeUsed int `json:"free_used"`

	PremiumPlan      string     `json:"premium_plan,omitempty"`
	PremiumUntil     *time.Time `json:"premium_until,omitempty"`
	PremiumStartedAt *time.Time `json:"premium_started_at,omitempty"`
	PremiumSource    string     `json:"premium_source,omitempty"`
	PaymentMethod    string     `json:"premium_payment_method,omitempty"`
	PaymentReference string     `json:"premium_payment_reference,omitempty"`
	PermanentPlan    string     `json:"permanent_plan,omitempty"`

	AbuseStrikes   int  `json:"abuse_strikes"`
	AwaitingLyrics bool `json:"awaiting_lyrics"`

	NewsOptOut  bool       `json:"news_opt_out"`
	NewsOptedAt *time.Time `json:"news_opted_at,omitempty"`

	LastSupportAt *time.Time `json:"last_support,omitempty"`

	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	LastUsername string     `json:"last_username,omitempty"`
	LastFullName string     `json:"last_full_name,omitempty"`

	History []Turn `json:"history"`
}

// NewRecord returns a record with every field at its safe default.
// All defaulting lives here; the storage backends never invent values.
func NewRecord(chatID int64, language string) *UserRecord {
	return &UserRecord{
		ChatID:   chatID,
		Language: language,
		History:  []Turn{},
	}
}

// Normalize upgrades a record loaded from storage: records written by older
// versions may miss newer fields. Between messages the strike counter is
// only ever 0 or 1, so anything else collapses to 0.
func (u *UserRecord) Normalize(defaultLanguage string) {
	if u.Language == "" {
		u.Language = defaultLanguage
	}
	if u.FreeUsed < 0 {
		u.FreeUsed = 0
	}
	if u.AbuseStrikes < 0 || u.AbuseStrikes > 1 {
		u.AbuseStrikes = 0
	}
	if u.History == nil {
		u.History = []Turn{}
	}
}

// Clone returns a deep copy safe to hand out of the repository lock.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	cp := *u
	cp.History = make([]Turn, len(u.History))
	copy(cp.History, u.History)
	return &cp
}

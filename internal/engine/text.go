package engine

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lumi-labs/lumi-bot/internal/consent"
	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/history"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/openai"
	"github.com/lumi-labs/lumi-bot/internal/plan"
	"github.com/lumi-labs/lumi-bot/internal/safety"
	"github.com/lumi-labs/lumi-bot/pkg/metrics"
)

// lyricsPrefix marks stored history turns that came in through the deferred
// song-continuation mode.
const lyricsPrefix = "[LYRICS] "

// turn collects everything phase one decides under the repository lock, so
// the network work afterwards never touches shared state.
type turn struct {
	lang     string
	decision consent.Decision
	verdict  safety.Verdict
	code     plan.Code

	// replyKey, when set, ends the turn with a fixed localized reply.
	replyKey  string
	showPlans bool

	// proceed means a model call follows.
	proceed    bool
	lyricsMode bool
	ventNote   bool
	milestone  bool
	remaining  int
	window     []domain.Turn
}

// HandleText drives one inbound text message through the full pipeline.
func (e *Engine) HandleText(ctx context.Context, meta Meta, text string) error {
	var st turn

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		st.lang = u.Language

		st.decision = e.gate.Admit(u)
		if st.decision != consent.Ready {
			return nil
		}

		if strings.TrimSpace(text) == "" {
			st.replyKey = "ask_topic"
			return nil
		}

		st.verdict = e.classifier.Classify(text, u.AwaitingLyrics)
		e.applyVerdict(u, &st)
		if !st.proceed {
			return nil
		}

		code, _ := e.resolver.ActivePlan(u)
		st.code = code

		if code == plan.Free {
			res := e.trial.Consume(&u.FreeUsed)
			if res.Rejected {
				st.proceed = false
				st.replyKey = "free_end"
				st.showPlans = true
				metrics.RecordTrialRejection()
				return nil
			}
			st.milestone = res.Milestone
			st.remaining = res.Remaining
		}

		st.window = history.Window(u.History, code)
		return nil
	})
	if err != nil {
		return err
	}

	tr := e.translator(st.lang)

	if handled, err := e.answerGate(ctx, meta.ChatID, st, tr); handled {
		return err
	}

	if !st.proceed {
		metrics.RecordMessage(st.verdict.Rule, string(st.code))
		if st.replyKey != "" {
			if err := e.sender.Send(ctx, meta.ChatID, tr.T(st.replyKey)); err != nil {
				return err
			}
		}
		if st.showPlans {
			return e.sender.SendPlans(ctx, meta.ChatID, tr)
		}
		return nil
	}

	metrics.RecordMessage(st.verdict.Rule, string(st.code))

	userContent := text
	storedContent := text
	if st.lyricsMode {
		userContent = tr.Tr("lyrics_prompt", "fragment", text)
		storedContent = lyricsPrefix + text
	}

	reply, err := e.complete(ctx, tr, st, userContent)
	if err != nil {
		key, _ := e.errs.Handle(ctx, err)
		return e.sender.Send(ctx, meta.ChatID, tr.T(key))
	}

	err = e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		history.Append(u, st.code, storedContent, reply)
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.sender.Send(ctx, meta.ChatID, reply); err != nil {
		return err
	}

	if st.milestone {
		if err := e.sender.Send(ctx, meta.ChatID, tr.Tr("trial_left", "rest", itoa(st.remaining))); err != nil {
			e.log.Warn("trial reminder failed", slog.Int64("chat_id", meta.ChatID), slog.Any("error", err))
		}
	}

	if st.code != plan.Free {
		e.maybeSupport(ctx, meta.ChatID, st.code, tr)
	}

	return nil
}

// applyVerdict translates a classification into record mutations and the
// turn's continuation state. Runs under the repository lock.
func (e *Engine) applyVerdict(u *domain.UserRecord, st *turn) {
	switch st.verdict.Kind {
	case safety.OptOut:
		if u.NewsOptOut {
			st.replyKey = "news_off_already"
			return
		}
		now := time.Now().UTC()
		u.NewsOptOut = true
		u.NewsOptedAt = &now
		st.replyKey = "news_off_done"

	case safety.ContinuationPayload:
		u.AwaitingLyrics = false
		st.proceed = true
		st.lyricsMode = true

	case safety.ContinuationTrigger:
		u.AwaitingLyrics = true
		st.replyKey = "lyrics_ask"

	case safety.Sensitive:
		st.replyKey = "sensitive"

	case safety.TargetedAbuse:
		if u.AbuseStrikes >= 1 {
			u.AbuseStrikes = 0
			st.replyKey = "abuse_final"
			return
		}
		u.AbuseStrikes = 1
		st.replyKey = "abuse_first"

	case safety.Vent:
		st.proceed = true
		st.ventNote = true

	default:
		st.proceed = true
	}
}

// answerGate sends whatever the consent gate asked for. Returns handled=false
// when the gate admitted the message.
func (e *Engine) answerGate(ctx context.Context, chatID int64, st turn, tr i18n.Translator) (bool, error) {
	switch st.decision {
	case consent.NeedLanguage:
		return true, e.sender.SendLanguagePrompt(ctx, chatID, tr)
	case consent.ShowOffer:
		return true, e.sender.SendOffer(ctx, chatID, tr)
	case consent.RemindOffer:
		return true, e.sender.Send(ctx, chatID, tr.T("policy_repeat"))
	case consent.Hold:
		return true, nil
	default:
		return false, nil
	}
}

// complete builds the message list and calls the model with the plan's
// sampling parameters.
func (e *Engine) complete(ctx context.Context, tr i18n.Translator, st turn, userContent string) (string, error) {
	def := plan.Behavior(st.code)

	messages := make([]openai.Message, 0, len(st.window)+4)
	messages = append(messages,
		openai.Message{Role: "system", Content: tr.T("persona." + string(st.code))},
		openai.Message{Role: "system", Content: tr.T("style." + string(st.code))},
	)

	if st.ventNote {
		messages = append(messages, openai.Message{Role: "system", Content: tr.T("vent_note")})
	}

	for _, t := range st.window {
		messages = append(messages, openai.Message{Role: t.Role, Content: t.Content})
	}

	messages = append(messages, openai.Message{Role: domain.RoleUser, Content: userContent})

	return e.completer.Complete(ctx, messages, openai.CompletionParams{
		MaxTokens:        def.MaxTokens,
		Temperature:      def.Temperature,
		PresencePenalty:  def.PresencePenalty,
		FrequencyPenalty: def.FrequencyPenalty,
	})
}

// maybeSupport sends the scheduled supportive message when the plan's
// cadence says one is due. The timestamp is only advanced after a
// successful delivery; a failed delivery falls back to a short notice.
func (e *Engine) maybeSupport(ctx context.Context, chatID int64, code plan.Code, tr i18n.Translator) {
	due := false
	if u := e.repo.Get(chatID); u != nil {
		due = e.scheduler.Due(u, code)
	}
	if !due {
		return
	}

	phrase := e.scheduler.Pick(tr.Pool("supportive"))
	if phrase == "" {
		return
	}

	if err := e.sender.Send(ctx, chatID, tr.Tr("supportive_intro", "phrase", phrase)); err != nil {
		metrics.RecordSupportMessage("failed")
		e.log.Warn("support delivery failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		if ferr := e.sender.Send(ctx, chatID, tr.T("support_error")); ferr != nil {
			e.log.Warn("support fallback failed", slog.Int64("chat_id", chatID), slog.Any("error", ferr))
		}
		return
	}

	metrics.RecordSupportMessage("sent")

	err := e.repo.Update(ctx, chatID, func(u *domain.UserRecord) error {
		e.scheduler.MarkSent(u)
		return nil
	})
	if err != nil {
		e.log.Warn("support timestamp persist failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

// touch refreshes the contact bookkeeping on every inbound update.
func (e *Engine) touch(u *domain.UserRecord, meta Meta) {
	now := time.Now().UTC()
	u.LastSeenAt = &now
	if meta.Username != "" {
		u.LastUsername = meta.Username
	}
	if meta.FullName != "" {
		u.LastFullName = meta.FullName
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

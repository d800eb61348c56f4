package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/lumi-labs/lumi-bot/internal/consent"
	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// TranslatorFor returns the translator for the user's stored language,
// falling back to the default language for unknown users.
func (e *Engine) TranslatorFor(chatID int64) i18n.Translator {
	lang := e.i18n.DefaultLang()
	if u := e.repo.Get(chatID); u != nil {
		lang = u.Language
	}
	return e.translator(lang)
}

// Start handles /start: language selection first, then the offer, and a
// short welcome-back for users who already accepted.
func (e *Engine) Start(ctx context.Context, meta Meta) error {
	var (
		lang     string
		needLang bool
		accepted bool
	)

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		lang = u.Language
		needLang = !u.LangConfirmed
		accepted = e.gate.Accepted(u)
		if !needLang && !accepted {
			e.gate.MarkOfferSent(u)
		}
		return nil
	})
	if err != nil {
		return err
	}

	tr := e.translator(lang)

	if needLang {
		return e.sender.SendLanguagePrompt(ctx, meta.ChatID, tr)
	}
	if accepted {
		return e.sender.Send(ctx, meta.ChatID, tr.T("policy_again"))
	}
	return e.sender.SendOffer(ctx, meta.ChatID, tr)
}

// AcceptPolicy records an explicit acceptance and thanks the user.
func (e *Engine) AcceptPolicy(ctx context.Context, meta Meta) error {
	var lang string

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		e.gate.Accept(u)
		lang = u.Language
		return nil
	})
	if err != nil {
		return err
	}

	return e.sender.Send(ctx, meta.ChatID, e.translator(lang).T("thank_you"))
}

// Policy re-sends the full offer text on demand and resets the reminder
// throttle so Admit does not immediately repeat it.
func (e *Engine) Policy(ctx context.Context, meta Meta) error {
	var lang string

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		e.gate.MarkOfferSent(u)
		lang = u.Language
		return nil
	})
	if err != nil {
		return err
	}

	return e.sender.SendOffer(ctx, meta.ChatID, e.translator(lang))
}

// ResetPolicy drops the stored acceptance, forcing the gate again.
func (e *Engine) ResetPolicy(ctx context.Context, meta Meta) error {
	var lang string

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		e.gate.Reset(u)
		lang = u.Language
		return nil
	})
	if err != nil {
		return err
	}

	return e.sender.Send(ctx, meta.ChatID, e.translator(lang).T("policy_reset"))
}

// SetLanguage records an explicit language choice, confirms it in the
// chosen language, and falls through to the consent gate so a fresh user
// sees the offer in the same turn. Unknown codes fall back to the default
// catalog.
func (e *Engine) SetLanguage(ctx context.Context, meta Meta, lang string) error {
	if !e.i18n.Known(lang) {
		lang = e.i18n.DefaultLang()
	}

	var decision consent.Decision
	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		e.gate.ConfirmLanguage(u, lang)
		decision = e.gate.Admit(u)
		return nil
	})
	if err != nil {
		return err
	}

	tr := e.translator(lang)
	if err := e.sender.Send(ctx, meta.ChatID, tr.T("language_confirm")); err != nil {
		return err
	}

	if decision == consent.Ready {
		return nil
	}
	_, err = e.answerGate(ctx, meta.ChatID, turn{decision: decision}, tr)
	return err
}

// ChooseLanguage re-sends the language prompt.
func (e *Engine) ChooseLanguage(ctx context.Context, meta Meta) error {
	return e.sender.SendLanguagePrompt(ctx, meta.ChatID, e.TranslatorFor(meta.ChatID))
}

// NewsOff handles the explicit /news_off command.
func (e *Engine) NewsOff(ctx context.Context, meta Meta) error {
	var (
		lang    string
		already bool
	)

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		lang = u.Language
		if u.NewsOptOut {
			already = true
			return nil
		}
		now := nowUTC()
		u.NewsOptOut = true
		u.NewsOptedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	tr := e.translator(lang)
	if already {
		return e.sender.Send(ctx, meta.ChatID, tr.T("news_off_already"))
	}
	return e.sender.Send(ctx, meta.ChatID, tr.T("news_off_done"))
}

// Buy shows the plan list with payment links.
func (e *Engine) Buy(ctx context.Context, meta Meta) error {
	return e.sender.SendPlans(ctx, meta.ChatID, e.TranslatorFor(meta.ChatID))
}

// Diag reports the per-user runtime view used for quick support checks.
func (e *Engine) Diag(ctx context.Context, meta Meta) error {
	var (
		lang string
		code plan.Code
		left int
	)

	err := e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		lang = u.Language
		code, _ = e.resolver.ActivePlan(u)
		left = e.trial.Remaining(u.FreeUsed)
		return nil
	})
	if err != nil {
		return err
	}

	tr := e.translator(lang)
	text := tr.Tr("diagnostics",
		"router", "ok",
		"left", fmt.Sprintf("%d", left),
		"plan", string(code),
	)
	return e.sender.Send(ctx, meta.ChatID, text)
}

// Package engine ties the per-user state machine together: consent gate,
// safety classification, entitlement, trial accounting, history windowing
// and support cadence. Everything that mutates a record runs inside a
// repository update; network calls happen outside the lock.
package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/lumi-labs/lumi-bot/internal/consent"
	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/entitlement"
	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/openai"
	"github.com/lumi-labs/lumi-bot/internal/repository"
	"github.com/lumi-labs/lumi-bot/internal/safety"
	"github.com/lumi-labs/lumi-bot/internal/support"
)

// Completer produces the model reply for a prepared message list.
type Completer interface {
	Complete(ctx context.Context, messages []openai.Message, params openai.CompletionParams) (string, error)
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Describer analyzes an image.
type Describer interface {
	Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Sender delivers outbound messages. The bot layer implements it with
// telebot; prompts that carry inline keyboards get their own methods so the
// engine stays transport-agnostic.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendLanguagePrompt(ctx context.Context, chatID int64, tr i18n.Translator) error
	SendOffer(ctx context.Context, chatID int64, tr i18n.Translator) error
	SendPlans(ctx context.Context, chatID int64, tr i18n.Translator) error
}

// Meta identifies the sender of an inbound update.
type Meta struct {
	ChatID   int64
	Username string
	FullName string
}

// Engine is the per-message orchestrator.
type Engine struct {
	repo       *repository.Repository
	resolver   *entitlement.Resolver
	trial      *entitlement.TrialTracker
	gate       *consent.Gate
	classifier *safety.Classifier
	scheduler  *support.Scheduler
	i18n       *i18n.Manager
	completer  Completer
	transcribe Transcriber
	describe   Describer
	sender     Sender
	errs       *apperrors.Handler
	log        *slog.Logger
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Repo       *repository.Repository
	Resolver   *entitlement.Resolver
	Trial      *entitlement.TrialTracker
	Gate       *consent.Gate
	Classifier *safety.Classifier
	Scheduler  *support.Scheduler
	I18N       *i18n.Manager
	Completer  Completer
	Transcribe Transcriber
	Describe   Describer
	Sender     Sender
	Errors     *apperrors.Handler
	Log        *slog.Logger
}

// New wires an Engine from its dependencies.
func New(d Deps) *Engine {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		repo:       d.Repo,
		resolver:   d.Resolver,
		trial:      d.Trial,
		gate:       d.Gate,
		classifier: d.Classifier,
		scheduler:  d.Scheduler,
		i18n:       d.I18N,
		completer:  d.Completer,
		transcribe: d.Transcribe,
		describe:   d.Describe,
		sender:     d.Sender,
		errs:       d.Errors,
		log:        log,
	}
}

// SetSender installs the outbound transport. The bot layer needs the engine
// to register handlers and the engine needs the bot to send, so the sender
// arrives after construction.
func (e *Engine) SetSender(s Sender) {
	e.sender = s
}

// Trial exposes the trial tracker for diagnostics.
func (e *Engine) Trial() *entitlement.TrialTracker {
	return e.trial
}

// Resolver exposes entitlement resolution for the admin layer.
func (e *Engine) Resolver() *entitlement.Resolver {
	return e.resolver
}

// Repo exposes the state table for the admin layer.
func (e *Engine) Repo() *repository.Repository {
	return e.repo
}

// CountByPlan reports how many known users resolve to each plan right now.
// It works on record clones, so the lazy allow-list grant inside ActivePlan
// does not leak into stored state here.
func (e *Engine) CountByPlan() map[string]int {
	counts := make(map[string]int)
	e.repo.ForEach(func(u *domain.UserRecord) {
		code, _ := e.resolver.ActivePlan(u)
		counts[string(code)]++
	})
	return counts
}

func (e *Engine) translator(lang string) i18n.Translator {
	return e.i18n.Translator(lang)
}

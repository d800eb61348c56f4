// Package bot is the Telegram transport: update routing, middleware, inline
// keyboards and outbound delivery. All conversation logic lives in the
// engine; handlers here only translate telebot updates into engine calls.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/lumi-labs/lumi-bot/internal/admin"
	"github.com/lumi-labs/lumi-bot/internal/engine"
	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/payments"
	"github.com/lumi-labs/lumi-bot/internal/ratelimit"
	"github.com/lumi-labs/lumi-bot/pkg/config"
)

// Bot wraps telebot.Bot with the application dependencies required for
// handling updates.
type Bot struct {
	telebot *telebot.Bot
	engine  *engine.Engine
	admin   *admin.Service
	sender  *telebotSender
	log     *slog.Logger
}

// Deps bundles what the transport needs beyond the config.
type Deps struct {
	Engine   *engine.Engine
	Admin    *admin.Service
	I18N     *i18n.Manager
	Payments *payments.CryptoPay
	Limiter  ratelimit.Limiter
	Errors   *apperrors.Handler
	Log      *slog.Logger
}

// New builds a telegram bot instance configured according to the application
// settings and installs the outbound sender into the engine.
func New(cfg *config.Config, d Deps) (*Bot, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	tb, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.Bot.Token,
		Poller: &telebot.LongPoller{Timeout: cfg.Bot.PollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	sender := newTelebotSender(tb, d.I18N, d.Payments, log)
	d.Engine.SetSender(sender)

	b := &Bot{
		telebot: tb,
		engine:  d.Engine,
		admin:   d.Admin,
		sender:  sender,
		log:     log,
	}

	translate := d.Engine.TranslatorFor

	tb.Use(RecoveryMiddleware(log, d.Errors, translate))
	tb.Use(LoggingMiddleware(log))
	if cfg.RateLimit.Enabled && d.Limiter != nil {
		tb.Use(RateLimitMiddleware(d.Limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window, log))
	}
	tb.Use(ErrorHandlingMiddleware(d.Errors, translate))

	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerHandlers() {
	b.telebot.Handle(CommandStart, b.handleStart)
	b.telebot.Handle(CommandAccept, b.handleAccept)
	b.telebot.Handle(CommandPolicy, b.handlePolicy)
	b.telebot.Handle(CommandResetPolicy, b.handleResetPolicy)
	b.telebot.Handle(CommandLanguage, b.handleLanguage)
	b.telebot.Handle(CommandBuy, b.handleBuy)
	b.telebot.Handle(CommandNewsOff, b.handleNewsOff)
	b.telebot.Handle(CommandDiag, b.handleDiag)
	b.telebot.Handle(CommandSubs, b.handleSubs)
	b.telebot.Handle(CommandGrant, b.handleGrant)
	b.telebot.Handle(CommandGrantBest, b.handleGrantBest)

	b.telebot.Handle(telebot.OnText, b.handleText)
	b.telebot.Handle(telebot.OnCallback, b.handleCallback)
	b.telebot.Handle(telebot.OnVoice, b.handleVoice)
	b.telebot.Handle(telebot.OnAudio, b.handleAudio)
	b.telebot.Handle(telebot.OnVideo, b.handleVideo)
	b.telebot.Handle(telebot.OnVideoNote, b.handleVideoNote)
	b.telebot.Handle(telebot.OnPhoto, b.handlePhoto)
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

package bot

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/ratelimit"
	"github.com/lumi-labs/lumi-bot/pkg/logger"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler,
// and keeps the poller alive.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler, translate func(int64) i18n.Translator) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					key := "internal_error"
					if errHandler != nil {
						key, _ = errHandler.Handle(context.Background(), apperrors.NewStateError(fmt.Sprintf("panic recovered: %v", r)))
					}

					if c != nil && c.Sender() != nil {
						tr := translate(c.Sender().ID)
						if sendErr := c.Send(tr.T(key)); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for
// handler failures. Handler errors never bubble into the poller.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, translate func(int64) i18n.Translator) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			key := "internal_error"
			if errHandler != nil {
				key, _ = errHandler.Handle(context.Background(), err)
			}

			if c != nil && c.Sender() != nil {
				tr := translate(c.Sender().ID)
				_ = c.Send(tr.T(key))
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates with a fresh
// correlation identifier per update.
func LoggingMiddleware(log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			start := time.Now()
			_, correlationID := logger.WithCorrelationID(context.Background())

			chatID := int64(0)
			if c.Sender() != nil {
				chatID = c.Sender().ID
			}

			kind := "text"
			if c.Callback() != nil {
				kind = "callback"
			} else if c.Message() != nil {
				switch {
				case c.Message().Voice != nil:
					kind = "voice"
				case c.Message().Video != nil, c.Message().VideoNote != nil:
					kind = "video"
				case c.Message().Photo != nil:
					kind = "photo"
				case c.Message().Audio != nil:
					kind = "audio"
				}
			}

			err := next(c)
			log.Info("handled update",
				slog.String("correlation_id", correlationID),
				slog.Int64("chat_id", chatID),
				slog.String("kind", kind),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// RateLimitMiddleware throttles per-chat message bursts. A throttled update
// is dropped silently; the user already sent plenty.
func RateLimitMiddleware(limiter ratelimit.Limiter, requests int, window time.Duration, log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if limiter == nil || c.Sender() == nil {
				return next(c)
			}

			key := fmt.Sprintf("chat:%d", c.Sender().ID)
			result, err := limiter.Check(context.Background(), key, requests, window)
			if err != nil {
				if stdErrors.Is(err, ratelimit.ErrLimitExceeded) || (result != nil && !result.Allowed) {
					log.Debug("update throttled",
						slog.Int64("chat_id", c.Sender().ID),
						slog.Duration("retry_after", result.RetryAfter(time.Now())),
					)
					return nil
				}
				// limiter backend failure must not block users
				log.Warn("rate limiter unavailable", slog.Any("error", err))
				return next(c)
			}

			return next(c)
		}
	}
}

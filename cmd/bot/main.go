package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumi-labs/lumi-bot/internal/admin"
	"github.com/lumi-labs/lumi-bot/internal/bot"
	"github.com/lumi-labs/lumi-bot/internal/consent"
	"github.com/lumi-labs/lumi-bot/internal/database"
	"github.com/lumi-labs/lumi-bot/internal/engine"
	"github.com/lumi-labs/lumi-bot/internal/entitlement"
	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/openai"
	"github.com/lumi-labs/lumi-bot/internal/payments"
	"github.com/lumi-labs/lumi-bot/internal/ratelimit"
	"github.com/lumi-labs/lumi-bot/internal/repository"
	"github.com/lumi-labs/lumi-bot/internal/safety"
	"github.com/lumi-labs/lumi-bot/internal/storage"
	"github.com/lumi-labs/lumi-bot/internal/support"
	"github.com/lumi-labs/lumi-bot/pkg/config"
	"github.com/lumi-labs/lumi-bot/pkg/graceful"
	"github.com/lumi-labs/lumi-bot/pkg/logger"
	"github.com/lumi-labs/lumi-bot/pkg/metrics"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      firstNonEmpty(cfg.Sentry.Environment, cfg.AppEnv),
			TracesSampleRate: cfg.Sentry.SampleRate,
		})
		if err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(logger.Options{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		FilePath:   cfg.Logger.FilePath,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Sentry:     sentryEnabled,
	})
	slog.SetDefault(log)

	log.Info("starting lumi bot", slog.String("env", cfg.AppEnv))

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	repo := repository.New(store, cfg.Language.Default, log)
	if err := repo.Load(ctx); err != nil {
		log.Error("failed to load user state", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("user state loaded", slog.Int("users", repo.Count()))

	catalogs, err := i18n.LoadFromDir(cfg.Language.LocalesDir, cfg.Language.Default)
	if err != nil {
		log.Error("failed to load locales", slog.Any("error", err))
		os.Exit(1)
	}

	resolver := entitlement.NewResolver(cfg.Access.PermanentIDs, cfg.Access.AdminIDs, log)
	trial := entitlement.NewTrialTracker(cfg.Trial.Messages, cfg.Trial.RemindAt)
	gate := consent.NewGate(cfg.Consent.TTL, cfg.Consent.ReminderCooldown)

	ai := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, openai.Models{
		Text:       cfg.OpenAI.TextModel,
		Vision:     cfg.OpenAI.VisionModel,
		Transcribe: cfg.OpenAI.TranscribeModel,
	}, cfg.OpenAI.Timeout, log)

	pay := payments.NewCryptoPay(cfg.CryptoPay.Token, cfg.CryptoPay.BaseURL, cfg.CryptoPay.FallbackURLs, log)
	errHandler := apperrors.NewHandler(log, sentryEnabled)

	eng := engine.New(engine.Deps{
		Repo:       repo,
		Resolver:   resolver,
		Trial:      trial,
		Gate:       gate,
		Classifier: safety.NewClassifier(),
		Scheduler:  support.NewScheduler(),
		I18N:       catalogs,
		Completer:  ai,
		Transcribe: ai,
		Describe:   ai,
		Errors:     errHandler,
		Log:        log,
	})

	limiter, redisClient := buildLimiter(cfg, log)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn("failed to close redis client", slog.Any("error", err))
			}
		}()
		go ratelimit.NewCleaner(redisClient, log, 10*time.Minute).Run(ctx)
	}

	b, err := bot.New(cfg, bot.Deps{
		Engine:   eng,
		Admin:    admin.NewService(repo, resolver, trial),
		I18N:     catalogs,
		Payments: pay,
		Limiter:  limiter,
		Errors:   errHandler,
		Log:      log,
	})
	if err != nil {
		log.Error("failed to initialize bot", slog.Any("error", err))
		os.Exit(1)
	}

	go metrics.NewPlanCollector(eng, 30*time.Second).Run(ctx)
	go serveMetrics(ctx, cfg.Server.MetricsAddr, log)

	go b.Start()
	log.Info("bot started")

	<-ctx.Done()

	b.Stop()
	log.Info("lumi bot shut down")
}

// buildStore selects the persistence backend: Postgres when a DSN is
// configured (with fail-fast ping and migrations), the JSON document
// otherwise.
func buildStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, func(), error) {
	if cfg.Database.DSN == "" {
		log.Info("using file storage", slog.String("path", cfg.Storage.StateFile))
		return storage.NewFileStore(cfg.Storage.StateFile, log), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("failed to close database", slog.Any("error", cerr))
		}
	}

	if err := db.PingContext(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, cfg.Database.MigrationsDir); err != nil {
		cleanup()
		return nil, nil, err
	}

	log.Info("using postgres storage")
	return storage.NewPostgresStore(db, log), cleanup, nil
}

// buildLimiter assembles the adaptive Redis/in-memory limiter when rate
// limiting is enabled and Redis is configured.
func buildLimiter(cfg *config.Config, log *slog.Logger) (ratelimit.Limiter, *redis.Client) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	memory := ratelimit.NewMemoryLimiter(log)
	if cfg.Redis.Addr == "" {
		return memory, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(client, log), memory, log), client
}

func serveMetrics(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := graceful.NewServer(log, &http.Server{
		Addr:              addr,
		Handler:           logger.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}, 5*time.Second)

	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", slog.Any("error", err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

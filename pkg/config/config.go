package config

import "time"

// Config holds runtime configuration for the Lumi bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Trial     TrialConfig     `mapstructure:"trial"`
	Consent   ConsentConfig   `mapstructure:"consent"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" validate:"required"`
	CryptoPay CryptoPayConfig `mapstructure:"cryptopay"`
	Access    AccessConfig    `mapstructure:"access"`
	Language  LanguageConfig  `mapstructure:"language"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// DatabaseConfig selects the Postgres backend when DSN is non-empty.
type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// StorageConfig points at the JSON document used when Postgres is not configured.
type StorageConfig struct {
	StateFile string `mapstructure:"state_file"`
}

type TrialConfig struct {
	Messages int   `mapstructure:"messages"`
	RemindAt []int `mapstructure:"remind_at"`
}

type ConsentConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	ReminderCooldown time.Duration `mapstructure:"reminder_cooldown"`
}

type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	BaseURL         string        `mapstructure:"base_url"`
	TextModel       string        `mapstructure:"text_model"`
	VisionModel     string        `mapstructure:"vision_model"`
	TranscribeModel string        `mapstructure:"transcribe_model"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type CryptoPayConfig struct {
	Token        string            `mapstructure:"token"`
	BaseURL      string            `mapstructure:"base_url"`
	FallbackURLs map[string]string `mapstructure:"fallback_urls"`
}

// AccessConfig lists chat IDs with standing grants.
type AccessConfig struct {
	PermanentIDs []int64 `mapstructure:"permanent_ids"`
	AdminIDs     []int64 `mapstructure:"admin_ids"`
}

type LanguageConfig struct {
	Default    string `mapstructure:"default"`
	LocalesDir string `mapstructure:"locales_dir"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

func (c *Config) applyDefaults() {
	if c.Bot.PollTimeout <= 0 {
		c.Bot.PollTimeout = 10 * time.Second
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
	if c.Storage.StateFile == "" {
		c.Storage.StateFile = "lumi_users.json"
	}
	if c.Trial.Messages <= 0 {
		c.Trial.Messages = 75
	}
	if len(c.Trial.RemindAt) == 0 {
		c.Trial.RemindAt = []int{5, 3, 1}
	}
	if c.Consent.TTL <= 0 {
		c.Consent.TTL = 24 * time.Hour
	}
	if c.Consent.ReminderCooldown <= 0 {
		c.Consent.ReminderCooldown = 2 * time.Minute
	}
	if c.OpenAI.TextModel == "" {
		c.OpenAI.TextModel = "gpt-4o-mini"
	}
	if c.OpenAI.VisionModel == "" {
		c.OpenAI.VisionModel = "gpt-4o-mini"
	}
	if c.OpenAI.TranscribeModel == "" {
		c.OpenAI.TranscribeModel = "whisper-1"
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.Language.Default == "" {
		c.Language.Default = "ru"
	}
	if c.Language.LocalesDir == "" {
		c.Language.LocalesDir = "locales"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 20
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
}

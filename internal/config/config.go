package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the bot process.
// All values must come from env (or an env-file loaded before startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Telegram TelegramConfig
	Call     CallConfig
	DB       DBConfig
	Redis    RedisConfig
	Ops      OpsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type TelegramConfig struct {
	// BotToken is the Bot API token. A missing token aborts startup before
	// any update can be accepted.
	BotToken string

	// BaseURL is the public https base the webhook is registered under.
	BaseURL string

	// WebhookSecret, when set, must match the
	// X-Telegram-Bot-Api-Secret-Token header on every update.
	WebhookSecret string
}

type CallConfig struct {
	// RingTimeout bounds how long a call may stay ringing before it is
	// marked missed.
	RingTimeout time.Duration
}

// DBConfig enables the durable store when populated.
// Leaving the group empty runs the bot memory-only (no restart recovery).
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig enables webhook update deduplication when populated.
type RedisConfig struct {
	Host string
	Port int
}

// OpsConfig enables the read-only operator API when JWTSecret is set.
type OpsConfig struct {
	JWTSecret string
	User      string
	Password  string
	TokenTTL  time.Duration
}

const defaultRingTimeout = 60 * time.Second

func Load() (Config, error) {
	c := Config{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	c.App.Port = intOrDefault("APP_PORT", 3000)

	c.Telegram.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	c.Telegram.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	c.Telegram.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	c.Call.RingTimeout = defaultRingTimeout
	if v := strings.TrimSpace(os.Getenv("RING_TIMEOUT_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("RING_TIMEOUT_SECONDS must be a positive integer, got %q", v)
		}
		c.Call.RingTimeout = time.Duration(n) * time.Second
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = intOrDefault("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = intOrDefault("REDIS_PORT", 6379)

	c.Ops.JWTSecret = os.Getenv("OPS_JWT_SECRET")
	c.Ops.User = strings.TrimSpace(os.Getenv("OPS_USER"))
	c.Ops.Password = os.Getenv("OPS_PASSWORD")
	c.Ops.TokenTTL = durationOrDefault("OPS_TOKEN_TTL", time.Hour)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.Telegram.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	} else if !strings.HasPrefix(c.Telegram.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("BASE_URL must be https, got %q", c.Telegram.BaseURL))
	}

	if c.Call.RingTimeout <= 0 {
		c.Call.RingTimeout = defaultRingTimeout
	}

	// DB settings are all-or-nothing: a half-configured group is a
	// deployment mistake, not a request for memory-only mode.
	if c.DurableStoreEnabled() {
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			c.DB.SSLMode = "disable"
		} else if !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.OpsAPIEnabled() {
		if c.Ops.User == "" || c.Ops.Password == "" {
			errs = append(errs, errors.New("OPS_USER and OPS_PASSWORD are required when OPS_JWT_SECRET is set"))
		}
	}

	return joinErrors(errs)
}

// DurableStoreEnabled reports whether the Postgres-backed store (and with it
// restart recovery) should be used.
func (c Config) DurableStoreEnabled() bool { return c.DB.Host != "" }

// DedupEnabled reports whether webhook updates are deduplicated through Redis.
func (c Config) DedupEnabled() bool { return c.Redis.Host != "" }

// OpsAPIEnabled reports whether the operator read API is exposed.
func (c Config) OpsAPIEnabled() bool { return c.Ops.JWTSecret != "" }

func (c Config) IsProduction() bool { return c.App.Env == "production" }

func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.App.Port) }

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	sslmode := c.DB.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, sslmode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// WebhookPath is the local route updates are served under. The token in the
// path is what makes the route unguessable, matching Bot API practice.
func (c Config) WebhookPath() string {
	return "/webhook/" + c.Telegram.BotToken
}

// WebhookURL is the public URL registered with Telegram.
func (c Config) WebhookURL() string {
	return strings.TrimRight(c.Telegram.BaseURL, "/") + c.WebhookPath()
}

func intOrDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationOrDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}

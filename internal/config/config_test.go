package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:      AppConfig{Env: "local", Port: 3000},
		Telegram: TelegramConfig{BotToken: "123:abc", BaseURL: "https://bot.example.com"},
		Call:     CallConfig{RingTimeout: 60 * time.Second},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{App: AppConfig{Env: "local", Port: 3000}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_MinimalMemoryOnlyConfigIsValid(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DurableStoreEnabled() || c.DedupEnabled() || c.OpsAPIEnabled() {
		t.Fatalf("expected all optional subsystems disabled")
	}
}

func TestValidate_RejectsPlainHTTPBaseURL(t *testing.T) {
	c := validConfig()
	c.Telegram.BaseURL = "http://bot.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for non-https BASE_URL")
	}
}

func TestValidate_PartialDBGroupFails(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for DB_HOST without DB_USER/DB_NAME")
	}
}

func TestValidate_DBDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callbridge"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_OpsRequiresCredentials(t *testing.T) {
	c := validConfig()
	c.Ops = OpsConfig{JWTSecret: "secret"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for OPS_JWT_SECRET without credentials")
	}
}

func TestWebhookURL_JoinsBaseAndTokenPath(t *testing.T) {
	c := validConfig()
	c.Telegram.BaseURL = "https://bot.example.com/"
	got := c.WebhookURL()
	want := "https://bot.example.com/webhook/123:abc"
	if got != want {
		t.Fatalf("webhook url mismatch: got %q want %q", got, want)
	}
}

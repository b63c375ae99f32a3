package config

import (
	"strings"
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:      AppConfig{Env: "local", Port: 8080},
		Telegram: TelegramConfig{BotToken: "123:abc"},
		Gate:     GateConfig{Number: "+79876543210", CallerID: "+12345678900"},
		Providers: ProvidersConfig{
			Order:  []string{ProviderBearer},
			Bearer: BearerProviderConfig{BaseURL: "https://api.example.com", Token: "tok"},
		},
		Admin: AdminConfig{Password: "pw", JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_MinimalFileBackend(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Directory.Backend != DirectoryBackendFile {
		t.Fatalf("expected file backend default, got %q", c.Directory.Backend)
	}
	if c.Directory.FilePath != "users.json" {
		t.Fatalf("expected users.json default, got %q", c.Directory.FilePath)
	}
	if c.Sessions.Backend != SessionsBackendMemory {
		t.Fatalf("expected memory sessions default, got %q", c.Sessions.Backend)
	}
	if c.Sessions.TTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl default, got %v", c.Sessions.TTL)
	}
	if c.Gate.MaxDurationSeconds != 30 {
		t.Fatalf("expected max duration default 30, got %d", c.Gate.MaxDurationSeconds)
	}
}

func TestValidate_PostgresBackendRequiresDB(t *testing.T) {
	c := validBase()
	c.Directory.Backend = DirectoryBackendPostgres
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for postgres backend without DB config")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Admin.JWTIssuer = "gatebot"
	c.Admin.JWTAudience = "gatebot-admin"
	c.Directory.Backend = DirectoryBackendPostgres
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "gatebot", SSLMode: ""}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	c.Directory.Backend = DirectoryBackendPostgres
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "gatebot", SSLMode: ""}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_UnknownProviderRejected(t *testing.T) {
	c := validBase()
	c.Providers.Order = []string{"carrier-pigeon"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestValidate_DuplicateProviderRejected(t *testing.T) {
	c := validBase()
	c.Providers.Order = []string{ProviderBearer, ProviderBearer}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for duplicate provider")
	}
}

func TestLoad_ReportsMalformedDurationAndBool(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GATE_NUMBER", "+79876543210")
	t.Setenv("GATE_CALLER_ID", "+12345678900")
	t.Setenv("PROVIDERS_ORDER", "bearer")
	t.Setenv("BEARER_BASE_URL", "https://api.example.com")
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "secret")

	// A typo must surface as an error, not silently become the default.
	t.Setenv("SESSION_TTL", "24hr")
	t.Setenv("GATE_AUTO_ANSWER", "yep")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected parse errors for malformed values")
	}
	if !strings.Contains(err.Error(), "SESSION_TTL") {
		t.Fatalf("expected SESSION_TTL in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "GATE_AUTO_ANSWER") {
		t.Fatalf("expected GATE_AUTO_ANSWER in error, got %v", err)
	}
}

func TestLoad_MinimalEnvSucceeds(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GATE_NUMBER", "+79876543210")
	t.Setenv("GATE_CALLER_ID", "+12345678900")
	t.Setenv("PROVIDERS_ORDER", "bearer")
	t.Setenv("BEARER_BASE_URL", "https://api.example.com")
	t.Setenv("BEARER_TOKEN", "tok")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SESSION_TTL", "48h")

	c, err := Load()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if c.Sessions.TTL != 48*time.Hour {
		t.Fatalf("expected 48h session ttl, got %v", c.Sessions.TTL)
	}
}

func TestValidate_TrunkDefaultsSIPPort(t *testing.T) {
	c := validBase()
	c.Providers.Order = []string{ProviderTrunk}
	c.Providers.Trunk = TrunkProviderConfig{Host: "pbx.local", Extension: "100", Username: "gate", Password: "pw"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Providers.Trunk.SIPPort != 5060 {
		t.Fatalf("expected default sip port 5060, got %d", c.Providers.Trunk.SIPPort)
	}
}

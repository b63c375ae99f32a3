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
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Telegram  TelegramConfig
	Directory DirectoryConfig
	DB        DBConfig
	Sessions  SessionsConfig
	Redis     RedisConfig
	Gate      GateConfig
	Providers ProvidersConfig
	Admin     AdminConfig
	Content   ContentConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type TelegramConfig struct {
	BotToken string

	// WebhookURL switches the bot from long polling to webhook mode.
	// The path component of the URL is served by the HTTP server.
	WebhookURL string
}

// DirectoryBackend values accepted by DIRECTORY_BACKEND.
const (
	DirectoryBackendFile     = "file"
	DirectoryBackendPostgres = "postgres"
)

type DirectoryConfig struct {
	Backend  string
	FilePath string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// SessionsBackend values accepted by SESSIONS_BACKEND.
const (
	SessionsBackendMemory = "memory"
	SessionsBackendRedis  = "redis"
)

type SessionsConfig struct {
	Backend string

	// TTL applies to the redis backend only; the memory backend keeps
	// sessions until process exit.
	TTL time.Duration
}

type RedisConfig struct {
	Host string
	Port int
}

// GateConfig describes the single outbound call every gate-open dispatch makes.
// There is no per-user variation; the request is built from this config alone.
type GateConfig struct {
	Number             string
	CallerID           string
	MaxDurationSeconds int
	AutoAnswer         bool
}

type ProvidersConfig struct {
	// Order is the fixed fallback priority, e.g. "bearer,signed,trunk".
	// Only listed providers are configured and tried.
	Order []string

	Bearer BearerProviderConfig
	Signed SignedProviderConfig
	Trunk  TrunkProviderConfig
}

type BearerProviderConfig struct {
	BaseURL string
	Token   string
}

type SignedProviderConfig struct {
	URL    string
	APIKey string
	Secret string
}

type TrunkProviderConfig struct {
	Host      string
	Extension string
	Username  string
	Password  string

	// SIPEnabled selects the native trunk path. When false (or when
	// registration fails at startup) the adapter uses the HTTP fallback.
	SIPEnabled bool
	SIPPort    int
}

type AdminConfig struct {
	Password string

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type ContentConfig struct {
	NewsFile    string
	DebtorsFile string
	ChatLink    string
	PaymentLink string
	Requisites  string
}

// Provider names accepted in PROVIDERS_ORDER.
const (
	ProviderBearer = "bearer"
	ProviderSigned = "signed"
	ProviderTrunk  = "trunk"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Telegram.BotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.Telegram.WebhookURL = strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_URL"))

	c.Directory.Backend = strings.TrimSpace(os.Getenv("DIRECTORY_BACKEND"))
	c.Directory.FilePath = strings.TrimSpace(os.Getenv("DIRECTORY_FILE"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt("DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Sessions.Backend = strings.TrimSpace(os.Getenv("SESSIONS_BACKEND"))
	{
		d, err := optionalDuration("SESSION_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Sessions.TTL = d
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optionalInt("REDIS_PORT")

	c.Gate.Number = strings.TrimSpace(os.Getenv("GATE_NUMBER"))
	c.Gate.CallerID = strings.TrimSpace(os.Getenv("GATE_CALLER_ID"))
	c.Gate.MaxDurationSeconds = optionalInt("GATE_MAX_DURATION_SECONDS")
	{
		b, err := boolEnv("GATE_AUTO_ANSWER")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Gate.AutoAnswer = b
	}

	c.Providers.Order = splitList(os.Getenv("PROVIDERS_ORDER"))
	c.Providers.Bearer.BaseURL = strings.TrimSpace(os.Getenv("BEARER_BASE_URL"))
	c.Providers.Bearer.Token = os.Getenv("BEARER_TOKEN")
	c.Providers.Signed.URL = strings.TrimSpace(os.Getenv("SIGNED_URL"))
	c.Providers.Signed.APIKey = strings.TrimSpace(os.Getenv("SIGNED_API_KEY"))
	c.Providers.Signed.Secret = os.Getenv("SIGNED_API_SECRET")
	c.Providers.Trunk.Host = strings.TrimSpace(os.Getenv("TRUNK_HOST"))
	c.Providers.Trunk.Extension = strings.TrimSpace(os.Getenv("TRUNK_EXTENSION"))
	c.Providers.Trunk.Username = strings.TrimSpace(os.Getenv("TRUNK_USERNAME"))
	c.Providers.Trunk.Password = os.Getenv("TRUNK_PASSWORD")
	{
		b, err := boolEnv("TRUNK_SIP_ENABLED")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Providers.Trunk.SIPEnabled = b
	}
	c.Providers.Trunk.SIPPort = optionalInt("TRUNK_SIP_PORT")

	c.Admin.Password = os.Getenv("ADMIN_PASSWORD")
	c.Admin.JWTSecret = os.Getenv("JWT_SECRET")
	c.Admin.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Admin.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	{
		d, err := optionalDuration("JWT_ACCESS_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Admin.AccessTokenTTL = d
	}
	{
		d, err := optionalDuration("JWT_REFRESH_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Admin.RefreshTokenTTL = d
	}

	c.Content.NewsFile = strings.TrimSpace(os.Getenv("CONTENT_NEWS_FILE"))
	c.Content.DebtorsFile = strings.TrimSpace(os.Getenv("CONTENT_DEBTORS_FILE"))
	c.Content.ChatLink = strings.TrimSpace(os.Getenv("CONTENT_CHAT_LINK"))
	c.Content.PaymentLink = strings.TrimSpace(os.Getenv("CONTENT_PAYMENT_LINK"))
	c.Content.Requisites = os.Getenv("CONTENT_REQUISITES")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}

	switch c.Directory.Backend {
	case "":
		c.Directory.Backend = DirectoryBackendFile
		fallthrough
	case DirectoryBackendFile:
		if c.Directory.FilePath == "" {
			c.Directory.FilePath = "users.json"
		}
	case DirectoryBackendPostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required for the postgres directory backend"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required for the postgres directory backend"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required for the postgres directory backend"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("DIRECTORY_BACKEND must be one of file, postgres, got %q", c.Directory.Backend))
	}

	switch c.Sessions.Backend {
	case "":
		c.Sessions.Backend = SessionsBackendMemory
	case SessionsBackendMemory:
	case SessionsBackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis sessions backend"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSIONS_BACKEND must be one of memory, redis, got %q", c.Sessions.Backend))
	}
	if c.Sessions.TTL <= 0 {
		c.Sessions.TTL = 24 * time.Hour
	}

	if c.Gate.Number == "" {
		errs = append(errs, errors.New("GATE_NUMBER is required"))
	}
	if c.Gate.CallerID == "" {
		errs = append(errs, errors.New("GATE_CALLER_ID is required"))
	}
	if c.Gate.MaxDurationSeconds <= 0 {
		c.Gate.MaxDurationSeconds = 30
	}

	if len(c.Providers.Order) == 0 {
		errs = append(errs, errors.New("PROVIDERS_ORDER must list at least one provider"))
	}
	seen := map[string]bool{}
	for _, name := range c.Providers.Order {
		if seen[name] {
			errs = append(errs, fmt.Errorf("PROVIDERS_ORDER lists %q twice", name))
			continue
		}
		seen[name] = true
		switch name {
		case ProviderBearer:
			if c.Providers.Bearer.BaseURL == "" {
				errs = append(errs, errors.New("BEARER_BASE_URL is required when bearer is listed"))
			}
			if c.Providers.Bearer.Token == "" {
				errs = append(errs, errors.New("BEARER_TOKEN is required when bearer is listed"))
			}
		case ProviderSigned:
			if c.Providers.Signed.URL == "" {
				errs = append(errs, errors.New("SIGNED_URL is required when signed is listed"))
			}
			if c.Providers.Signed.APIKey == "" {
				errs = append(errs, errors.New("SIGNED_API_KEY is required when signed is listed"))
			}
			if c.Providers.Signed.Secret == "" {
				errs = append(errs, errors.New("SIGNED_API_SECRET is required when signed is listed"))
			}
		case ProviderTrunk:
			if c.Providers.Trunk.Host == "" {
				errs = append(errs, errors.New("TRUNK_HOST is required when trunk is listed"))
			}
			if c.Providers.Trunk.Extension == "" {
				errs = append(errs, errors.New("TRUNK_EXTENSION is required when trunk is listed"))
			}
			if c.Providers.Trunk.Username == "" {
				errs = append(errs, errors.New("TRUNK_USERNAME is required when trunk is listed"))
			}
			if c.Providers.Trunk.SIPPort <= 0 {
				c.Providers.Trunk.SIPPort = 5060
			}
		default:
			errs = append(errs, fmt.Errorf("PROVIDERS_ORDER contains unknown provider %q", name))
		}
	}

	if c.Admin.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Admin.Password == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required"))
	}
	if c.IsProduction() {
		if c.Admin.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Admin.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Admin.AccessTokenTTL <= 0 {
		c.Admin.AccessTokenTTL = 15 * time.Minute
	}
	if c.Admin.RefreshTokenTTL <= 0 {
		c.Admin.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Admin.RefreshTokenTTL <= c.Admin.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Content.NewsFile == "" {
		c.Content.NewsFile = "data/news.txt"
	}
	if c.Content.DebtorsFile == "" {
		c.Content.DebtorsFile = "data/debtors.txt"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 24h, got %q", key, v)
	}
	return d, nil
}

func boolEnv(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
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

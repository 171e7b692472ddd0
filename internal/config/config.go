package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed explicitly to every component.
// Nothing reads the environment after Load returns.
type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Database
	DatabaseURL string

	StaticDir          string
	CORSOrigins        []string
	RateLimitPerMinute int

	Auth   Auth
	Upload Upload
	Mail   Mail

	warnings []string
}

type Auth struct {
	JWTSecret   string
	TokenTTL    time.Duration
	RequireAuth bool
}

type Upload struct {
	MaxFiles   int
	MaxFileMB  int
	MaxTotalMB int
	AllowXLSM  bool

	EnforceWindow bool
	WindowFrom    int
	WindowTo      int
	ExemptRoles   []string
	TimeZone      string
}

type Mail struct {
	Provider         string // smtp, resend
	From             string
	To               []string
	DryRun           bool
	PGPPublicKeyPath string

	SMTP   SMTP
	Resend Resend
}

type SMTP struct {
	Host      string
	Port      int
	User      string
	Pass      string
	Secure    bool // implicit TLS
	IgnoreTLS bool // skip certificate verification

	ConnectionTimeout time.Duration
	GreetingTimeout   time.Duration
	SocketTimeout     time.Duration
}

type Resend struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads .env (if present), the process environment and command-line
// flags. Flags win over environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	flag.StringVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development, production)")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "SQLite DSN or PostgreSQL connection string")
	flag.BoolVar(&cfg.Mail.DryRun, "dry-run", cfg.Mail.DryRun, "Skip mail dispatch and return synthetic ids")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from lookup without touching flags or files.
func FromEnv(lookup LookupFunc) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{}

	cfg.Port = e.getString("PORT", "4000")
	cfg.Env = e.getString("ENV", "development")
	cfg.DatabaseURL = e.getString("DATABASE_URL", "file:radicacion.db?_pragma=busy_timeout(5000)")
	cfg.StaticDir = e.getString("STATIC_DIR", "./dist")
	cfg.CORSOrigins = splitList(e.getString("CORS_ORIGINS", ""))
	cfg.RateLimitPerMinute = e.getInt("RATE_LIMIT_PER_MINUTE", 30)

	cfg.Auth.JWTSecret = e.getString("JWT_SECRET", "")
	cfg.Auth.TokenTTL = time.Duration(e.getInt("JWT_TTL_HOURS", 12)) * time.Hour
	cfg.Auth.RequireAuth = e.getBool("REQUIRE_AUTH", false)
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
		e.warn("JWT_SECRET is not set; using a random secret, tokens will not survive a restart")
	} else if len(cfg.Auth.JWTSecret) < 16 {
		e.warn("JWT_SECRET is shorter than 16 characters")
	}

	cfg.Upload = Upload{
		MaxFiles:      e.getInt("MAX_FILES", 10),
		MaxFileMB:     e.getInt("MAX_FILE_MB", 15),
		MaxTotalMB:    e.getInt("MAX_TOTAL_MB", 20),
		AllowXLSM:     e.getBool("ALLOW_XLSM", true),
		EnforceWindow: e.getBool("ENFORCE_UPLOAD_WINDOW", false),
		WindowFrom:    e.getInt("UPLOAD_WINDOW_FROM", 1),
		WindowTo:      e.getInt("UPLOAD_WINDOW_TO", 10),
		ExemptRoles:   splitList(e.getString("UPLOAD_WINDOW_EXEMPT_ROLES", "")),
		TimeZone:      e.getString("UPLOAD_TZ", "America/Bogota"),
	}

	cfg.Mail = Mail{
		Provider:         strings.ToLower(strings.TrimSpace(e.getString("MAIL_PROVIDER", "smtp"))),
		From:             e.getString("MAIL_FROM", ""),
		To:               splitList(e.getString("MAIL_TO", "")),
		DryRun:           e.getBool("MAIL_DRY_RUN", false),
		PGPPublicKeyPath: e.getString("MAIL_PGP_PUBLIC_KEY_PATH", ""),
	}
	if cfg.Mail.From == "" {
		e.warn("MAIL_FROM is not set; mail will fail until it is defined")
	}
	if len(cfg.Mail.To) == 0 {
		e.warn("MAIL_TO is not set; mail will fail until it is defined")
	}

	secure := e.getBool("SMTP_SECURE", false)
	defaultPort := 587
	if secure {
		defaultPort = 465
	}
	port := e.getInt("SMTP_PORT", defaultPort)
	cfg.Mail.SMTP = SMTP{
		Host:              e.getString("SMTP_HOST", ""),
		Port:              port,
		User:              e.getString("SMTP_USER", ""),
		Pass:              e.getString("SMTP_PASS", ""),
		Secure:            secure || port == 465,
		IgnoreTLS:         e.getBool("SMTP_IGNORE_TLS", false),
		ConnectionTimeout: e.getMillis("SMTP_CONNECTION_TIMEOUT", 10000),
		GreetingTimeout:   e.getMillis("SMTP_GREETING_TIMEOUT", 10000),
		SocketTimeout:     e.getMillis("SMTP_SOCKET_TIMEOUT", 60000),
	}

	cfg.Mail.Resend = Resend{
		APIKey:  e.getString("RESEND_API_KEY", ""),
		BaseURL: e.getString("RESEND_BASE_URL", "https://api.resend.com/emails"),
		Timeout: e.getMillis("RESEND_TIMEOUT_MS", 30000),
	}

	cfg.warnings = e.warnings
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be development or production, got %q", c.Env)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u := c.Upload
	if u.MaxFiles < 1 || u.MaxFileMB < 1 || u.MaxTotalMB < 1 {
		return fmt.Errorf("MAX_FILES, MAX_FILE_MB and MAX_TOTAL_MB must be positive")
	}
	if u.WindowFrom < 1 || u.WindowTo > 31 || u.WindowFrom > u.WindowTo {
		return fmt.Errorf("upload window %d-%d is not a valid day range", u.WindowFrom, u.WindowTo)
	}
	if _, err := time.LoadLocation(u.TimeZone); err != nil {
		return fmt.Errorf("UPLOAD_TZ: %w", err)
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// Warnings lists configuration problems that degrade functionality without
// preventing startup.
func (c *Config) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location returns the business time zone. Validate guarantees it loads.
func (u Upload) Location() *time.Location {
	loc, err := time.LoadLocation(u.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type env struct {
	lookup   LookupFunc
	warnings []string
}

func (e *env) warn(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}

func (e *env) getString(key, fallback string) string {
	if value, ok := e.lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (e *env) getInt(key string, fallback int) int {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		e.warn("%s=%q is not a number, using %d", key, raw, fallback)
		return fallback
	}
	return i
}

func (e *env) getBool(key string, fallback bool) bool {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		e.warn("%s=%q is not a boolean, using %t", key, raw, fallback)
		return fallback
	}
	return b
}

func (e *env) getMillis(key string, fallback int) time.Duration {
	return time.Duration(e.getInt(key, fallback)) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/dashhub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionSecret = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for DashHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_secret, etc.
//   - Environment variables: DASHHUB_MONGO_URI, DASHHUB_SESSION_SECRET, etc.
//   - Command-line flags: --mongo_uri, --session_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "dashhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Session credentials
	{Name: "session_secret", Default: devSessionSecret, Desc: "Session token signing key (must be strong in production)"},
	{Name: "session_lifetime", Default: "1h", Desc: "Session token lifetime (e.g., 1h, 30m)"},
	{Name: "session_issuer", Default: "dashhub", Desc: "Issuer claim written to session tokens"},

	// Google identity
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID (audience of accepted ID tokens)"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret (enables /auth/google)"},
	{Name: "google_jwks_url", Default: "", Desc: "Provider JWKS URL (blank uses Google's)"},
	{Name: "identity_timeout", Default: "5s", Desc: "Timeout for one provider key set fetch"},
	{Name: "cookie_key", Default: devSessionSecret, Desc: "Key for the /auth/google flow cookie"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank disables welcome notices)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@dashhub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Dynamic Dashboard", Desc: "From display name"},
	{Name: "notify_queue_size", Default: 100, Desc: "Welcome notice queue capacity"},
	{Name: "site_name", Default: "Dynamic Dashboard", Desc: "Site name used in welcome notices"},

	// Base URL for links and the OAuth callback
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL"},

	{Name: "cors_allowed_origins", Default: "http://localhost:3000", Desc: "Comma-separated browser origins allowed by CORS"},

	// Login rate limiting
	{Name: "login_rate_limit", Default: 20, Desc: "Login requests per minute per client IP"},
	{Name: "login_rate_burst", Default: 10, Desc: "Login request burst per client IP"},

	{Name: "state_cleanup_interval", Default: "5m", Desc: "How often expired OAuth states are removed"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, DASHHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "DASHHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Session credentials
		SessionSecret:   appValues.String("session_secret"),
		SessionLifetime: appValues.Duration("session_lifetime", time.Hour),
		SessionIssuer:   appValues.String("session_issuer"),

		// Google identity
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),
		GoogleJWKSURL:      appValues.String("google_jwks_url"),
		IdentityTimeout:    appValues.Duration("identity_timeout", 5*time.Second),
		CookieKey:          appValues.String("cookie_key"),

		// Email/SMTP
		MailSMTPHost:    appValues.String("mail_smtp_host"),
		MailSMTPPort:    appValues.Int("mail_smtp_port"),
		MailSMTPUser:    appValues.String("mail_smtp_user"),
		MailSMTPPass:    appValues.String("mail_smtp_pass"),
		MailFrom:        appValues.String("mail_from"),
		MailFromName:    appValues.String("mail_from_name"),
		NotifyQueueSize: appValues.Int("notify_queue_size"),
		SiteName:        appValues.String("site_name"),

		BaseURL:            strings.TrimRight(appValues.String("base_url"), "/"),
		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),

		LoginRateLimit: appValues.Int("login_rate_limit"),
		LoginRateBurst: appValues.Int("login_rate_burst"),

		StateCleanupInterval: appValues.Duration("state_cleanup_interval", 5*time.Minute),

		// Audit logging
		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.GoogleClientID == "" {
		return fmt.Errorf("google_client_id is required")
	}
	if appCfg.SessionLifetime <= 0 {
		return fmt.Errorf("session_lifetime must be positive, got %s", appCfg.SessionLifetime)
	}
	if appCfg.LoginRateLimit <= 0 || appCfg.LoginRateBurst <= 0 {
		return fmt.Errorf("login_rate_limit and login_rate_burst must be positive")
	}
	for name, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_admin": appCfg.AuditLogAdmin} {
		switch v {
		case "", auditlog.ToAll, auditlog.ToDB, auditlog.ToLog, auditlog.Off:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", name, v)
		}
	}

	if coreCfg == nil || coreCfg.Env != "dev" {
		if len(appCfg.SessionSecret) < 32 || appCfg.SessionSecret == devSessionSecret {
			return fmt.Errorf("session_secret must be at least 32 characters and not the development default")
		}
		if appCfg.GoogleClientSecret != "" && (len(appCfg.CookieKey) < 32 || appCfg.CookieKey == devSessionSecret) {
			return fmt.Errorf("cookie_key must be at least 32 characters and not the development default")
		}
	}

	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

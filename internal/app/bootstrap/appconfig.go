// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging level). AppConfig is
// everything specific to the dashboard backend.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session credentials
	SessionSecret   string        // HMAC key for session tokens (at least 32 chars outside dev)
	SessionLifetime time.Duration // how long an issued credential stays valid
	SessionIssuer   string        // "iss" claim written to credentials

	// Google identity
	GoogleClientID     string        // audience of accepted ID tokens
	GoogleClientSecret string        // enables the server-side code flow when set
	GoogleJWKSURL      string        // provider key set; blank uses Google's
	IdentityTimeout    time.Duration // bound on one key set fetch

	// Google code flow cookie
	CookieKey string // signs and encrypts the /auth/google flow cookie

	// Email/SMTP configuration (welcome notices). A blank host disables mail.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	NotifyQueueSize int    // welcome notice queue capacity
	SiteName        string // shown in welcome notices

	// Base URL for links and the OAuth callback
	BaseURL string // e.g., "https://dashboard.example.com"

	// Browser origins allowed by CORS
	CORSAllowedOrigins []string

	// Login rate limiting, per client IP
	LoginRateLimit int // requests per minute
	LoginRateBurst int

	// OAuth state cleanup
	StateCleanupInterval time.Duration

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string
}

// MailEnabled reports whether an SMTP host is configured.
func (c AppConfig) MailEnabled() bool { return c.MailSMTPHost != "" }

// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/dashhub/internal/app/store/audit"
	"github.com/dalemusser/dashhub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/dashhub/internal/app/store/users"
	"github.com/dalemusser/dashhub/internal/app/system/auditlog"
	"github.com/dalemusser/dashhub/internal/app/system/auth"
	"github.com/dalemusser/dashhub/internal/app/system/directory"
	"github.com/dalemusser/dashhub/internal/app/system/identity"
	"github.com/dalemusser/dashhub/internal/app/system/mailer"
	"github.com/dalemusser/dashhub/internal/app/system/notify"
	"github.com/dalemusser/dashhub/internal/app/system/ratelimit"
	"github.com/dalemusser/dashhub/internal/app/system/session"
	"github.com/dalemusser/dashhub/internal/app/system/signin"
	"github.com/dalemusser/dashhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services are the long-lived collaborators built once in Startup and used
// by BuildHandler and Shutdown.
type services struct {
	started time.Time

	sessions  *session.Issuer
	directory *directory.Directory
	signin    *signin.Service
	guard     *auth.Guard
	audit     *auditlog.Logger
	events    *audit.Store
	users     *userstore.Store
	states    *oauthstate.Store
	limiter   *ratelimit.Limiter

	notices *notify.Queue // nil when mail is disabled
	cleanup *workers.StateCleanup
}

var svc *services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the identity verifier and the services behind every route, then starts the
// background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	verifier, err := identity.NewGoogleVerifier(identity.Config{
		ClientID: appCfg.GoogleClientID,
		JWKSURL:  appCfg.GoogleJWKSURL,
		Timeout:  appCfg.IdentityTimeout,
	}, logger)
	if err != nil {
		logger.Error("identity verifier init failed", zap.Error(err))
		return err
	}

	s, err := newServices(appCfg, deps, verifier, logger)
	if err != nil {
		return err
	}
	s.start()
	svc = s

	logger.Info("dashhub services started",
		zap.Bool("mail_enabled", appCfg.MailEnabled()),
		zap.Bool("google_code_flow", appCfg.GoogleClientSecret != ""))
	return nil
}

// newServices wires the services without starting any workers.
func newServices(appCfg AppConfig, deps DBDeps, verifier identity.Verifier, logger *zap.Logger) (*services, error) {
	if deps.MongoDatabase == nil {
		return nil, errors.New("bootstrap: mongo database is not connected")
	}
	db := deps.MongoDatabase

	issuer, err := session.NewIssuer(appCfg.SessionSecret,
		session.WithLifetime(appCfg.SessionLifetime),
		session.WithIssuer(appCfg.SessionIssuer))
	if err != nil {
		logger.Error("session issuer init failed", zap.Error(err))
		return nil, err
	}

	events := audit.New(db)
	s := &services{
		started:  time.Now(),
		sessions: issuer,
		audit: auditlog.New(events, logger, auditlog.Config{
			Auth:  appCfg.AuditLogAuth,
			Admin: appCfg.AuditLogAdmin,
		}),
		events:  events,
		users:   userstore.New(db),
		states:  oauthstate.New(db),
		limiter: ratelimit.New(appCfg.LoginRateLimit, appCfg.LoginRateBurst),
	}

	// A nil Notifier disables welcome notices; keep it untyped.
	var notifier directory.Notifier
	if appCfg.MailEnabled() {
		m := mailer.New(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
		s.notices = notify.NewQueue(m, notify.Config{
			SiteName: appCfg.SiteName,
			BaseURL:  appCfg.BaseURL,
			Size:     appCfg.NotifyQueueSize,
		}, logger)
		notifier = s.notices
	}

	s.directory = directory.New(s.users, notifier, logger)
	s.signin = signin.New(verifier, s.directory, issuer, logger)
	s.guard = auth.NewGuard(issuer, s.directory, logger)
	s.cleanup = workers.NewStateCleanup(s.states, logger, appCfg.StateCleanupInterval)
	return s, nil
}

func (s *services) start() {
	if s.notices != nil {
		s.notices.Start()
	}
	s.cleanup.Start()
}

// stop halts the workers. Queued notices are delivered before it returns.
func (s *services) stop() {
	s.cleanup.Stop()
	if s.notices != nil {
		s.notices.Stop()
	}
}

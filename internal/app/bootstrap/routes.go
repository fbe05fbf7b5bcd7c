// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/dashhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/dashhub/internal/app/features/authgoogle"
	errorsfeature "github.com/dalemusser/dashhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/dashhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/dashhub/internal/app/features/login"
	statusfeature "github.com/dalemusser/dashhub/internal/app/features/status"
	userinfofeature "github.com/dalemusser/dashhub/internal/app/features/userinfo"
	usersfeature "github.com/dalemusser/dashhub/internal/app/features/users"
	"github.com/dalemusser/dashhub/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. Every API route is mounted at the root
// and again under /api.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("bootstrap: services not started")
	}
	secure := coreCfg != nil && coreCfg.Env == "prod"
	return newRouter(appCfg, deps, svc, secure, logger), nil
}

func newRouter(appCfg AppConfig, deps DBDeps, s *services, secureCookies bool, logger *zap.Logger) http.Handler {
	errLog := errorsfeature.NewErrorLogger(logger)

	loginHandler := loginfeature.NewHandler(s.signin, errLog, s.audit, logger)
	googleHandler := authgooglefeature.NewHandler(authgooglefeature.Config{
		ClientID:     appCfg.GoogleClientID,
		ClientSecret: appCfg.GoogleClientSecret,
		BaseURL:      appCfg.BaseURL,
		CookieKey:    appCfg.CookieKey,
		SecureCookie: secureCookies,
	}, s.signin, s.states, errLog, s.audit, logger)
	meHandler := userinfofeature.NewHandler()
	usersHandler := usersfeature.NewHandler(s.directory, errLog, s.audit, logger)
	statusHandler := statusfeature.NewHandler(deps.MongoClient, deps.MongoDatabase, s.directory,
		s.started, appCfg.MailEnabled(), errLog, logger)
	auditHandler := auditlogfeature.NewHandler(s.events, s.users, errLog, logger)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)

	onLimited := func(r *http.Request) {
		s.audit.LoginFailedRateLimit(r.Context(), r)
	}

	api := func(r chi.Router) {
		r.Mount("/health", healthfeature.Routes(healthHandler))

		// Public authentication endpoints, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(onLimited))
			loginfeature.MountRoutes(r, loginHandler)
			r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
		})

		// Everything else requires a session credential.
		r.Group(func(r chi.Router) {
			r.Use(s.guard.Middleware)
			userinfofeature.MountRoutes(r, meHandler)
			r.Mount("/users", usersfeature.Routes(usersHandler))
			statusfeature.MountRoutes(r, statusHandler)
			auditlogfeature.MountRoutes(r, auditHandler)
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           int((5 * time.Minute) / time.Second),
	}))

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	r.Handle("/metrics", metrics.Handler())

	api(r)
	r.Route("/api", api)

	return r
}

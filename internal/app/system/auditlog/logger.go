// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/dalemusser/dashhub/internal/app/store/audit"
	"github.com/dalemusser/dashhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations accepted by Config fields.
const (
	ToAll = "all" // MongoDB + zap
	ToDB  = "db"  // MongoDB only
	ToLog = "log" // zap only
	Off   = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (external login outcomes).
	Auth string
	// Admin controls logging for user management events (create, update, delete).
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = ToAll
	}
	if setting == "" {
		setting = ToAll
	}

	if setting == Off {
		return
	}

	if setting == ToAll || setting == ToLog {
		l.logToZap(event)
	}

	if (setting == ToAll || setting == ToDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) base(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful external login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	if l == nil {
		return
	}
	e := l.base(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = &userID
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedInvalidAssertion logs a login whose provider assertion was rejected.
func (l *Logger) LoginFailedInvalidAssertion(ctx context.Context, r *http.Request, reason string) {
	if l == nil {
		return
	}
	e := l.base(r, audit.CategoryAuth, audit.EventLoginFailedInvalidAssertion, false)
	e.FailureReason = "invalid assertion"
	if reason != "" {
		e.Details = map[string]string{"reason": reason}
	}
	l.Log(ctx, e)
}

// LoginFailedUserInactive logs a login by a deactivated or removed account.
func (l *Logger) LoginFailedUserInactive(ctx context.Context, r *http.Request, email string) {
	if l == nil {
		return
	}
	e := l.base(r, audit.CategoryAuth, audit.EventLoginFailedUserInactive, false)
	e.FailureReason = "user inactive"
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedRateLimit logs a login rejected by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request) {
	if l == nil {
		return
	}
	e := l.base(r, audit.CategoryAuth, audit.EventLoginFailedRateLimit, false)
	e.FailureReason = "rate limit exceeded"
	l.Log(ctx, e)
}

// --- Admin Events ---

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType string, actorID, userID primitive.ObjectID, details map[string]string) {
	e := l.base(r, audit.CategoryAdmin, eventType, true)
	e.ActorID = &actorID
	e.UserID = &userID
	e.Details = details
	l.Log(ctx, e)
}

// UserCreated logs an administrator creating a user.
func (l *Logger) UserCreated(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, role string) {
	if l == nil {
		return
	}
	l.admin(ctx, r, audit.EventUserCreated, actorID, userID, map[string]string{"role": role})
}

// UserUpdated logs a profile change. fields names the attributes that were supplied.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, fields []string) {
	if l == nil {
		return
	}
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	l.admin(ctx, r, audit.EventUserUpdated, actorID, userID, map[string]string{"fields": strings.Join(sorted, ",")})
}

// UserDisabled logs a user being deactivated.
func (l *Logger) UserDisabled(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID) {
	if l == nil {
		return
	}
	l.admin(ctx, r, audit.EventUserDisabled, actorID, userID, nil)
}

// UserEnabled logs a user being reactivated.
func (l *Logger) UserEnabled(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID) {
	if l == nil {
		return
	}
	l.admin(ctx, r, audit.EventUserEnabled, actorID, userID, nil)
}

// UserDeleted logs a soft delete.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID) {
	if l == nil {
		return
	}
	l.admin(ctx, r, audit.EventUserDeleted, actorID, userID, nil)
}

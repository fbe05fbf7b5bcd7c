// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashhub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashhub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashhub_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	usersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashhub_users_created_total",
		Help: "Principals created, by source (login or admin)",
	}, []string{"source"})

	guardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashhub_guard_rejections_total",
		Help: "Requests rejected by the authorization guard, by error kind",
	}, []string{"kind"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashhub_welcome_notices_total",
		Help: "Welcome notices by result (sent, failed, dropped)",
	}, []string{"result"})

	notifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashhub_notify_queue_depth",
		Help: "Welcome notices waiting to be sent",
	})
)

// Login outcomes.
const (
	LoginSuccess  = "success"
	LoginRejected = "rejected"
	LoginInactive = "inactive"
	LoginError    = "error"
)

// User creation sources.
const (
	SourceLogin = "login"
	SourceAdmin = "admin"
)

// Notice results.
const (
	NoticeSent    = "sent"
	NoticeFailed  = "failed"
	NoticeDropped = "dropped"
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt.
func ObserveLogin(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUserCreated counts a new principal.
func ObserveUserCreated(source string) {
	usersCreated.WithLabelValues(source).Inc()
}

// ObserveGuardRejection counts a request the guard turned away.
func ObserveGuardRejection(kind string) {
	guardRejections.WithLabelValues(kind).Inc()
}

// ObserveNotice counts a welcome notice outcome.
func ObserveNotice(result string) {
	notifications.WithLabelValues(result).Inc()
}

// SetQueueDepth sets the notify queue gauge.
func SetQueueDepth(n int) {
	if n < 0 {
		n = 0
	}
	notifyQueueDepth.Set(float64(n))
}

// Middleware records request counts and durations labelled by the matched
// chi route pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ObserveHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

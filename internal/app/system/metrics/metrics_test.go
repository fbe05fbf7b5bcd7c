package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLogin(t *testing.T) {
	before := testutil.ToFloat64(loginsTotal.WithLabelValues(LoginInactive))
	ObserveLogin(LoginInactive)
	if got := testutil.ToFloat64(loginsTotal.WithLabelValues(LoginInactive)); got != before+1 {
		t.Errorf("logins{inactive} = %v, want %v", got, before+1)
	}
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	if got := testutil.ToFloat64(counter); got != before+2 {
		t.Errorf("requests{/users/{id},418} = %v, want %v", got, before+2)
	}
}

func TestSetQueueDepth_ClampsNegative(t *testing.T) {
	SetQueueDepth(-3)
	if got := testutil.ToFloat64(notifyQueueDepth); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

func TestHandler_Exposes(t *testing.T) {
	ObserveUserCreated(SourceAdmin)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "dashhub_users_created_total") {
		t.Error("exposition missing dashhub_users_created_total")
	}
}

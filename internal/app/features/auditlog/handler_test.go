package auditlog

import (
	"net/http"
	"testing"
	"time"

	uierrors "github.com/dalemusser/dashhub/internal/app/features/errors"
	"github.com/dalemusser/dashhub/internal/app/store/audit"
	userstore "github.com/dalemusser/dashhub/internal/app/store/users"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"github.com/dalemusser/dashhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fixture struct {
	h      *Handler
	admin  models.User
	target models.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	admin := fx.CreateUser(ctx, "Ada Admin", "ada@example.com", models.RoleAdmin)
	target := fx.CreateUser(ctx, "Vic Viewer", "vic@example.com", models.RoleViewer)

	store := audit.New(db)
	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{Timestamp: day, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &admin.ID, IP: "192.0.2.1", Success: true},
		{Timestamp: day.Add(time.Hour), Category: audit.CategoryAdmin, EventType: audit.EventUserCreated, ActorID: &admin.ID, UserID: &target.ID, IP: "192.0.2.1", Success: true, Details: map[string]string{"role": "viewer"}},
		{Timestamp: day.Add(48 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLoginFailedInvalidAssertion, IP: "198.51.100.7", FailureReason: "invalid assertion"},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	logger := zap.NewNop()
	return fixture{
		h:      NewHandler(store, userstore.New(db), uierrors.NewErrorLogger(logger), logger),
		admin:  admin,
		target: target,
	}
}

func list(t *testing.T, h *Handler, target string) (*testutil.ResponseRecorder, listResponse) {
	t.Helper()
	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, target, testutil.AdminUser()))
	var body listResponse
	if rec.Code == http.StatusOK {
		rec.DecodeJSON(t, &body)
	}
	return rec, body
}

func TestServeList_NewestFirstWithNames(t *testing.T) {
	f := setup(t)
	rec, body := list(t, f.h, "/audit-events")
	rec.AssertStatus(t, http.StatusOK)

	if body.Total != 3 || len(body.Items) != 3 || body.Page != 1 || body.TotalPages != 1 {
		t.Fatalf("body = %+v", body)
	}
	if body.Items[0].EventType != audit.EventLoginFailedInvalidAssertion {
		t.Errorf("first item = %s, want newest event", body.Items[0].EventType)
	}
	created := body.Items[1]
	if created.ActorName != "Ada Admin" || created.UserName != "Vic Viewer" {
		t.Errorf("names = %q / %q", created.ActorName, created.UserName)
	}
	if created.Details["role"] != "viewer" {
		t.Errorf("details = %v", created.Details)
	}
}

func TestServeList_Filters(t *testing.T) {
	f := setup(t)

	_, byCategory := list(t, f.h, "/audit-events?category=admin")
	if byCategory.Total != 1 || byCategory.Items[0].EventType != audit.EventUserCreated {
		t.Errorf("category filter = %+v", byCategory)
	}

	_, byType := list(t, f.h, "/audit-events?event_type=login_success")
	if byType.Total != 1 {
		t.Errorf("event_type filter total = %d", byType.Total)
	}

	_, byDate := list(t, f.h, "/audit-events?start_date=2024-03-15&end_date=2024-03-15")
	if byDate.Total != 2 {
		t.Errorf("date filter total = %d, want 2", byDate.Total)
	}
}

func TestServeList_InvalidParams(t *testing.T) {
	f := setup(t)
	for _, target := range []string{
		"/audit-events?category=billing",
		"/audit-events?event_type=password_reset",
		"/audit-events?start_date=15/03/2024",
		"/audit-events?end_date=yesterday",
	} {
		rec, _ := list(t, f.h, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestRoutes_AdminOnly(t *testing.T) {
	f := setup(t)
	r := chi.NewRouter()
	MountRoutes(r, f.h)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/audit-events", testutil.EditorUser()))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/audit-events", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
}

func TestValidEventType(t *testing.T) {
	if !validEventType(audit.EventUserDeleted) {
		t.Error("user_deleted should be valid")
	}
	if validEventType("login_failed_user_not_found") {
		t.Error("unknown type accepted")
	}
}

package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/dashhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// NewUser returns an active, non-deleted user that has not been stored.
func NewUser(name, email string, role models.Role) models.User {
	now := time.Now().UTC()
	return models.User{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Email:       email,
		ExternalID:  models.ManualExternalIDPrefix + primitive.NewObjectID().Hex(),
		Role:        role,
		Department:  models.DefaultDepartment,
		PhoneNumber: models.PlaceholderPhone,
		JoinDate:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateUser inserts an active user with the given name, email and role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, role models.Role) models.User {
	f.t.Helper()
	return f.InsertUser(ctx, NewUser(name, email, role))
}

// InsertUser inserts u as given.
func (f *Fixtures) InsertUser(ctx context.Context, u models.User) models.User {
	f.t.Helper()
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateDeletedUser inserts a soft-deleted user.
func (f *Fixtures) CreateDeletedUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	u := NewUser(name, email, models.RoleViewer)
	at := time.Now().UTC()
	u.IsDeleted = true
	u.DeletedAt = &at
	return f.InsertUser(ctx, u)
}

// CreateInactiveUser inserts a deactivated user.
func (f *Fixtures) CreateInactiveUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	u := NewUser(name, email, models.RoleViewer)
	u.IsActive = false
	return f.InsertUser(ctx, u)
}

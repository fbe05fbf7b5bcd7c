package indexes_test

import (
	"testing"

	"github.com/dalemusser/dashhub/internal/app/system/indexes"
	"github.com/dalemusser/dashhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// First call
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}

	// Second call should also succeed (idempotent)
	err = indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expected := map[string][]string{
		"users": {
			"uniq_users_external_id",
			"uniq_users_email_active",
			"idx_users_deleted_active",
			"idx_users_deleted_nameci_id",
		},
		"oauth_states": {
			"uniq_oauth_state",
			"idx_oauth_expires_ttl",
		},
		"audit_events": {
			"idx_audit_timestamp",
			"idx_audit_user_timestamp",
			"idx_audit_category_type_timestamp",
		},
	}

	for coll, want := range expected {
		got := indexNames(t, db, coll)
		for _, name := range want {
			if !got[name] {
				t.Errorf("expected index %q to exist on %s collection", name, coll)
			}
		}
	}
}

func TestEnsureAll_ReplacesGlobalEmailIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// An older deployment enforced email uniqueness across every user.
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := indexNames(t, db, "users")
	if names["uniq_users_email"] {
		t.Error("legacy global email index should have been replaced")
	}
	if !names["uniq_users_email_active"] {
		t.Error("expected partial email index")
	}
}

func TestEnsureAll_EmailUniqueAmongLiveUsersOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	users := db.Collection("users")

	_, err := users.InsertOne(ctx, bson.M{"email": "x@example.com", "external_id": "a", "is_deleted": true})
	if err != nil {
		t.Fatalf("insert deleted: %v", err)
	}
	_, err = users.InsertOne(ctx, bson.M{"email": "x@example.com", "external_id": "b", "is_deleted": false})
	if err != nil {
		t.Fatalf("insert live with recycled email: %v", err)
	}
	_, err = users.InsertOne(ctx, bson.M{"email": "x@example.com", "external_id": "c", "is_deleted": false})
	if err == nil {
		t.Error("expected duplicate key error for second live user with same email")
	}
	_, err = users.InsertOne(ctx, bson.M{"email": "y@example.com", "external_id": "a", "is_deleted": false})
	if err == nil {
		t.Error("expected duplicate key error for reused external_id")
	}
}

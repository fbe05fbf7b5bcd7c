package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/dashhub/internal/app/system/normalize"
	"github.com/dalemusser/dashhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the users collection.
const Collection = "users"

var (
	// ErrNotFound is returned when no (non-deleted) user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when a write collides with the email of
	// another non-deleted user.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrDuplicateExternalID is returned when a write collides with another
	// user's external ID.
	ErrDuplicateExternalID = errors.New("a user with this external id already exists")
)

// live matches users that have not been soft-deleted.
func live(filter bson.M) bson.M {
	filter["is_deleted"] = false
	return filter
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter, opts...).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ObjectID, including soft-deleted users.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetLiveByID loads a non-deleted user by ObjectID.
func (s *Store) GetLiveByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, live(bson.M{"_id": id}))
}

// FindLiveByExternalID looks up a non-deleted user by provider subject.
func (s *Store) FindLiveByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.findOne(ctx, live(bson.M{"external_id": externalID}))
}

// FindLiveByEmail looks up a non-deleted user by case-insensitive email.
func (s *Store) FindLiveByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, live(bson.M{"email": normalize.Email(email)}))
}

// Insert assigns an ID, folds the name and stamps the timestamps, then
// inserts u. Unique-index violations map to ErrDuplicateEmail or
// ErrDuplicateExternalID.
func (s *Store) Insert(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		return models.User{}, mapDup(err)
	}
	return u, nil
}

// Patch holds the fields an update may change. Nil fields are left alone.
type Patch struct {
	Name        *string
	Email       *string
	Role        *models.Role
	Department  *models.Department
	PhoneNumber *string
	JoinDate    *time.Time
	IsActive    *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.Department == nil &&
		p.PhoneNumber == nil && p.JoinDate == nil && p.IsActive == nil
}

func (p Patch) set(now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if p.Name != nil {
		set["name"] = *p.Name
		set["name_ci"] = text.Fold(*p.Name)
	}
	if p.Email != nil {
		set["email"] = normalize.Email(*p.Email)
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.Department != nil {
		set["department"] = *p.Department
	}
	if p.PhoneNumber != nil {
		set["phone_number"] = *p.PhoneNumber
	}
	if p.JoinDate != nil {
		set["join_date"] = *p.JoinDate
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}
	return set
}

// Update applies p to the non-deleted user id and returns the updated record.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (*models.User, error) {
	return s.findOneAndSet(ctx, id, p.set(time.Now().UTC()))
}

// RecordLogin stamps last_login on a non-deleted user. When externalID is
// non-empty it is written too, backfilling accounts first matched by email.
func (s *Store) RecordLogin(ctx context.Context, id primitive.ObjectID, at time.Time, externalID string) (*models.User, error) {
	set := bson.M{"last_login": at, "updated_at": at}
	if externalID != "" {
		set["external_id"] = externalID
	}
	return s.findOneAndSet(ctx, id, set)
}

func (s *Store) findOneAndSet(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, live(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, mapDup(err)
	}
	return &u, nil
}

// SoftDelete marks a non-deleted user as deleted. A user that is already
// deleted, or absent, yields ErrNotFound.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.c.UpdateOne(ctx, live(bson.M{"_id": id}), bson.M{"$set": bson.M{
		"is_deleted": true,
		"deleted_at": at,
		"updated_at": at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLive returns every non-deleted user sorted by folded name. The
// external_id field is not read.
func (s *Store) ListLive(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetProjection(bson.M{"external_id": 0}).
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.c.Find(ctx, live(bson.M{}), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDs returns the users with the given IDs, deleted ones included.
// Only the id and name are read.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	out := make([]models.User, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1, "name": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Counts returns the number of non-deleted users and how many of them are
// active.
func (s *Store) Counts(ctx context.Context) (total, active int64, err error) {
	total, err = s.c.CountDocuments(ctx, live(bson.M{}))
	if err != nil {
		return 0, 0, err
	}
	active, err = s.c.CountDocuments(ctx, live(bson.M{"is_active": true}))
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// EmailTakenByOther reports whether a non-deleted user other than exclude
// holds email. Pass primitive.NilObjectID to check against everyone.
func (s *Store) EmailTakenByOther(ctx context.Context, email string, exclude primitive.ObjectID) (bool, error) {
	filter := live(bson.M{"email": normalize.Email(email)})
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	err := s.c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// mapDup turns a duplicate-key error into the matching sentinel based on
// the violated index.
func mapDup(err error) error {
	if !wafflemongo.IsDup(err) {
		return err
	}
	if strings.Contains(err.Error(), "external_id") {
		return ErrDuplicateExternalID
	}
	return ErrDuplicateEmail
}

// Package directory owns the principal records: login upsert, listing,
// creation, update, soft delete and counts.
//
// It holds the business rules (matching order, email uniqueness among
// live principals, defaults for accounts created on first login, the
// welcome notice side effect) and leaves persistence to a Repository.
// Every error it returns to callers is an apperr kind; storage errors it
// does not recognise pass through unclassified and surface as internal.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	userstore "github.com/dalemusser/dashhub/internal/app/store/users"
	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/identity"
	"github.com/dalemusser/dashhub/internal/app/system/inputval"
	"github.com/dalemusser/dashhub/internal/app/system/metrics"
	"github.com/dalemusser/dashhub/internal/app/system/normalize"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Repository is the persistence the directory needs. *userstore.Store
// satisfies it.
type Repository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetLiveByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindLiveByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindLiveByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, u models.User) (models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, p userstore.Patch) (*models.User, error)
	RecordLogin(ctx context.Context, id primitive.ObjectID, at time.Time, externalID string) (*models.User, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	ListLive(ctx context.Context) ([]models.User, error)
	Counts(ctx context.Context) (total, active int64, err error)
	EmailTakenByOther(ctx context.Context, email string, exclude primitive.ObjectID) (bool, error)
}

// Notifier accepts welcome notices for newly created principals. It must
// not block on delivery.
type Notifier interface {
	EnqueueWelcome(u models.User) error
}

// Messages.
const (
	msgInactive    = "Account is inactive. Please contact administrator."
	msgRemoved     = "Account has been removed. Please contact administrator."
	msgUserMissing = "User not found"
)

// Directory implements the principal directory.
type Directory struct {
	repo          Repository
	notify        Notifier
	log           *zap.Logger
	now           func() time.Time
	newExternalID func() string
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// WithExternalIDs replaces the generator of synthesized external IDs.
func WithExternalIDs(gen func() string) Option {
	return func(d *Directory) {
		if gen != nil {
			d.newExternalID = gen
		}
	}
}

// New builds a Directory. notify may be nil, in which case no welcome
// notices are sent.
func New(repo Repository, notify Notifier, logger *zap.Logger, opts ...Option) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Directory{
		repo:   repo,
		notify: notify,
		log:    logger,
		now:    time.Now,
		newExternalID: func() string {
			return models.ManualExternalIDPrefix + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

/*─────────────────────────────────────────────────────────────────────────────*
| Login                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// UpsertOnLogin resolves verified identity claims to a principal.
//
// A live principal is matched by external ID, then by email. With no match
// a viewer is created with the default department and placeholder phone.
// A principal matched only by email gets the external ID backfilled when it
// has none from the provider yet. A deactivated principal fails with
// AccountInactive before anything is written. Every success stamps
// lastLogin.
func (d *Directory) UpsertOnLogin(ctx context.Context, c identity.Claims) (*models.User, error) {
	if strings.TrimSpace(c.ExternalID) == "" {
		return nil, apperr.New(apperr.InvalidAssertion, "assertion has no subject")
	}
	email := normalize.Email(c.Email)

	u, byEmail, err := d.match(ctx, c.ExternalID, email)
	if err != nil {
		return nil, err
	}

	if u == nil {
		created, err := d.createFromLogin(ctx, c, email)
		switch {
		case err == nil:
			u = created
		case errors.Is(err, userstore.ErrDuplicateEmail) || errors.Is(err, userstore.ErrDuplicateExternalID):
			// A concurrent first login may have won; look once more.
			u, byEmail, err = d.match(ctx, c.ExternalID, email)
			if err != nil {
				return nil, err
			}
			if u == nil {
				// The subject belongs to a soft-deleted principal.
				return nil, apperr.Inactive(msgRemoved)
			}
		default:
			return nil, err
		}
	}

	if !u.IsActive {
		return nil, apperr.Inactive(msgInactive)
	}

	backfill := ""
	if byEmail && u.ExternalID != c.ExternalID {
		if u.ExternalID == "" || strings.HasPrefix(u.ExternalID, models.ManualExternalIDPrefix) {
			backfill = c.ExternalID
		} else {
			d.log.Warn("login matched by email but principal has another provider subject",
				zap.String("user_id", u.ID.Hex()))
		}
	}

	updated, err := d.repo.RecordLogin(ctx, u.ID, d.now().UTC(), backfill)
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrNotFound):
			// Deleted between match and stamp.
			return nil, apperr.Wrap(apperr.Unauthenticated, msgUserMissing, err)
		case errors.Is(err, userstore.ErrDuplicateExternalID):
			return nil, apperr.Inactive(msgRemoved)
		}
		return nil, err
	}
	return updated, nil
}

// match finds a live principal by external ID, then by email. byEmail is
// true when only the email matched.
func (d *Directory) match(ctx context.Context, externalID, email string) (u *models.User, byEmail bool, err error) {
	u, err = d.repo.FindLiveByExternalID(ctx, externalID)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return nil, false, err
	}
	if email == "" {
		return nil, false, nil
	}
	u, err = d.repo.FindLiveByEmail(ctx, email)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return nil, false, err
	}
	return nil, false, nil
}

func (d *Directory) createFromLogin(ctx context.Context, c identity.Claims, email string) (*models.User, error) {
	name := normalize.Name(c.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if name == "" {
		name = "User"
	}
	now := d.now().UTC()
	u, err := d.repo.Insert(ctx, models.User{
		Name:        name,
		Email:       email,
		ExternalID:  c.ExternalID,
		Role:        models.RoleViewer,
		Department:  models.DefaultDepartment,
		PhoneNumber: models.PlaceholderPhone,
		JoinDate:    normalize.Today(now),
		IsActive:    true,
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveUserCreated(metrics.SourceLogin)
	d.log.Info("principal created on first login", zap.String("user_id", u.ID.Hex()))
	return &u, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Reads                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// List returns every live principal sorted by name. External IDs are not
// included.
func (d *Directory) List(ctx context.Context) ([]models.User, error) {
	return d.repo.ListLive(ctx)
}

// Load returns a live principal by ID, active or not. Unknown, malformed
// or deleted IDs fail with NotFound.
func (d *Directory) Load(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	u, err := d.repo.GetLiveByID(ctx, oid)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetForAudit returns a principal by ID including soft-deleted ones.
func (d *Directory) GetForAudit(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	u, err := d.repo.GetByID(ctx, oid)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// Summary holds directory counts. Deleted principals are not counted.
type Summary struct {
	Total    int64 `json:"totalUsers"`
	Active   int64 `json:"activeUsers"`
	Inactive int64 `json:"inactiveUsers"`
}

// Summary counts live principals.
func (d *Directory) Summary(ctx context.Context) (Summary, error) {
	total, active, err := d.repo.Counts(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Total: total, Active: active, Inactive: total - active}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Writes                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// NewUser is the input to Create.
type NewUser struct {
	Name        string `json:"name" validate:"required,max=100" label:"Name"`
	Email       string `json:"email" validate:"required,email" label:"Email"`
	Role        string `json:"role" validate:"required,role" label:"Role"`
	Department  string `json:"department" validate:"required,department" label:"Department"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=40" label:"Phone number"`
	JoinDate    string `json:"joinDate"`
	IsActive    *bool  `json:"isActive"`
}

func (in *NewUser) normalize() {
	in.Name = normalize.Name(in.Name)
	in.Email = normalize.Email(in.Email)
	in.Role = string(normalize.Role(in.Role))
	if in.Role == "" {
		in.Role = string(models.RoleViewer)
	}
	in.Department = string(normalize.Department(in.Department))
	in.PhoneNumber = normalize.Phone(in.PhoneNumber)
}

// Create adds a principal directly. The email must not belong to another
// live principal. A welcome notice is queued afterwards; failing to queue
// it is logged and does not fail the call.
func (d *Directory) Create(ctx context.Context, in NewUser) (*models.User, error) {
	in.normalize()
	if err := validate(&in); err != nil {
		return nil, err
	}

	now := d.now().UTC()
	joined, err := normalize.JoinDate(in.JoinDate, now)
	if err != nil {
		return nil, apperr.Invalid("joinDate", "Join date must be YYYY-MM-DD or DD-MM-YYYY.")
	}

	taken, err := d.repo.EmailTakenByOther(ctx, in.Email, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict()
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	u, err := d.repo.Insert(ctx, models.User{
		Name:        in.Name,
		Email:       in.Email,
		ExternalID:  d.newExternalID(),
		Role:        models.Role(in.Role),
		Department:  models.Department(in.Department),
		PhoneNumber: in.PhoneNumber,
		JoinDate:    joined,
		IsActive:    active,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return nil, apperr.Conflict()
		}
		return nil, err
	}
	metrics.ObserveUserCreated(metrics.SourceAdmin)

	if d.notify != nil {
		if err := d.notify.EnqueueWelcome(u); err != nil {
			d.log.Warn("welcome notice not queued",
				zap.String("user_id", u.ID.Hex()),
				zap.Error(err))
		}
	}
	return &u, nil
}

// UserPatch is the input to Update. Nil fields are left unchanged; an empty
// joinDate is ignored.
type UserPatch struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100" label:"Name"`
	Email       *string `json:"email" validate:"omitnil,email" label:"Email"`
	Role        *string `json:"role" validate:"omitnil,role" label:"Role"`
	Department  *string `json:"department" validate:"omitnil,department" label:"Department"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitnil,min=1,max=40" label:"Phone number"`
	JoinDate    *string `json:"joinDate"`
	IsActive    *bool   `json:"isActive"`
}

func (p *UserPatch) normalize() {
	if p.Name != nil {
		*p.Name = normalize.Name(*p.Name)
	}
	if p.Email != nil {
		*p.Email = normalize.Email(*p.Email)
	}
	if p.Role != nil {
		*p.Role = string(normalize.Role(*p.Role))
	}
	if p.Department != nil {
		*p.Department = string(normalize.Department(*p.Department))
	}
	if p.PhoneNumber != nil {
		*p.PhoneNumber = normalize.Phone(*p.PhoneNumber)
	}
	if p.JoinDate != nil && strings.TrimSpace(*p.JoinDate) == "" {
		p.JoinDate = nil
	}
}

// Update merges p into the live principal id. A changed email is checked
// against every other live principal.
func (d *Directory) Update(ctx context.Context, id string, p UserPatch) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p.normalize()
	if err := validate(&p); err != nil {
		return nil, err
	}

	sp := userstore.Patch{
		Name:        p.Name,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		IsActive:    p.IsActive,
	}
	if p.Role != nil {
		r := models.Role(*p.Role)
		sp.Role = &r
	}
	if p.Department != nil {
		dept := models.Department(*p.Department)
		sp.Department = &dept
	}
	if p.JoinDate != nil {
		jd, err := normalize.JoinDate(*p.JoinDate, d.now().UTC())
		if err != nil {
			return nil, apperr.Invalid("joinDate", "Join date must be YYYY-MM-DD or DD-MM-YYYY.")
		}
		sp.JoinDate = &jd
	}

	if sp.Empty() {
		u, err := d.repo.GetLiveByID(ctx, oid)
		if err != nil {
			return nil, notFound(err)
		}
		return u, nil
	}

	if sp.Email != nil {
		taken, err := d.repo.EmailTakenByOther(ctx, *sp.Email, oid)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict()
		}
	}

	u, err := d.repo.Update(ctx, oid, sp)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return nil, apperr.Conflict()
		}
		return nil, notFound(err)
	}
	return u, nil
}

// SoftDelete marks a live principal as deleted. Deleting an absent or
// already deleted principal fails with NotFound.
func (d *Directory) SoftDelete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := d.repo.SoftDelete(ctx, oid, d.now().UTC()); err != nil {
		return notFound(err)
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.NotFound, msgUserMissing)
	}
	return oid, nil
}

// notFound maps the store's ErrNotFound to an apperr NotFound and passes
// anything else through.
func notFound(err error) error {
	if errors.Is(err, userstore.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, msgUserMissing, err)
	}
	return err
}

func validate(s any) error {
	if res := inputval.Validate(s); res.HasErrors() {
		return apperr.Invalid(res.FirstField(), res.First())
	}
	return nil
}

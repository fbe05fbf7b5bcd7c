// internal/app/features/users/handler.go
package users

import (
	"context"

	uierrors "github.com/dalemusser/dashhub/internal/app/features/errors"
	"github.com/dalemusser/dashhub/internal/app/system/auditlog"
	"github.com/dalemusser/dashhub/internal/app/system/directory"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.uber.org/zap"
)

// Directory is the user directory as seen by the handlers.
// *directory.Directory satisfies it.
type Directory interface {
	List(ctx context.Context) ([]models.User, error)
	Load(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, in directory.NewUser) (*models.User, error)
	Update(ctx context.Context, id string, p directory.UserPatch) (*models.User, error)
	SoftDelete(ctx context.Context, id string) error
	Summary(ctx context.Context) (directory.Summary, error)
}

// Handler serves the /users endpoints.
type Handler struct {
	Dir      Directory
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

// NewHandler constructs a users Handler.
func NewHandler(dir Directory, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Dir:      dir,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

// Directory resolves users for commands running inside a unit of work.
type Directory struct {
	repo *Repository
}

func NewDirectory(repo *Repository) (*Directory, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &Directory{repo: repo}, nil
}

// ByUsername returns NOT_FOUND for unknown usernames.
func (d *Directory) ByUsername(ctx context.Context, unit *uow.Unit, username string) (*models.User, error) {
	if NormalizeUsername(username) == "" {
		return nil, pkgerrors.Validationf("username is required")
	}
	user, err := d.repo.WithTx(unit.Tx()).FindByUsername(ctx, username)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("user %q not found", NormalizeUsername(username))
		}
		return nil, pkgerrors.Internal(err, "load user")
	}
	return user, nil
}

func (d *Directory) ByID(ctx context.Context, unit *uow.Unit, id uuid.UUID) (*models.User, error) {
	user, err := d.repo.WithTx(unit.Tx()).FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("user not found")
		}
		return nil, pkgerrors.Internal(err, "load user")
	}
	return user, nil
}

// Public returns id and username for each of ids.
func (d *Directory) Public(ctx context.Context, unit *uow.Unit, ids []uuid.UUID) ([]PublicUserDTO, error) {
	rows, err := d.repo.WithTx(unit.Tx()).FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load users")
	}
	return PublicFromModels(rows), nil
}

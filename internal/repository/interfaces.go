package repository

import (
	"context"
	"errors"

	"github.com/workshop/vehicleapi/internal/db"
)

// ErrDuplicateRegistration is returned by Save when another vehicle already
// holds the registration.
var ErrDuplicateRegistration = errors.New("registration already exists")

// ErrNotFound is returned by Save when the vehicle to replace no longer exists.
var ErrNotFound = errors.New("vehicle does not exist")

// VehicleRepository stores vehicles keyed by id and by registration.
// The optional finders return (nil, nil) when nothing matches.
type VehicleRepository interface {
	FindByID(ctx context.Context, id int64) (*db.Vehicle, error)
	FindByRegistration(ctx context.Context, registration string) (*db.Vehicle, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	// Save inserts when ID is zero and replaces the whole record otherwise.
	// Replacing a missing record fails with ErrNotFound.
	Save(ctx context.Context, v *db.Vehicle) (*db.Vehicle, error)
	Delete(ctx context.Context, v *db.Vehicle) error
	FindAll(ctx context.Context) ([]*db.Vehicle, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workshop/vehicleapi/internal/db"
	"github.com/workshop/vehicleapi/internal/repository"
)

const (
	uniqueViolation        = "23505"
	registrationConstraint = "vehicles_registration_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
	id            BIGSERIAL PRIMARY KEY,
	registration  TEXT NOT NULL CONSTRAINT vehicles_registration_key UNIQUE,
	make          TEXT NOT NULL,
	model         TEXT NOT NULL,
	colour        TEXT,
	colour_code   TEXT,
	is_drivable   BOOLEAN NOT NULL DEFAULT FALSE,
	vin           TEXT,
	engine_size   TEXT,
	fuel_type     TEXT,
	transmission  TEXT,
	body_type     TEXT,
	year          TEXT,
	mileage       TEXT
)`

const columns = `id, registration, make, model, colour, colour_code, is_drivable, vin,
	engine_size, fuel_type, transmission, body_type, year, mileage`

type vehicleDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	DB vehicleDB
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{DB: pool}
}

// Connect opens a pool and pings it, retrying while the database starts up.
func Connect(ctx context.Context, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	var lastErr error
	for i := 0; i <= retries; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			lastErr = err
			time.Sleep(delay)
			continue
		}
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = pool.Ping(ctxPing)
		cancel()
		if err == nil {
			return pool, nil
		}
		lastErr = err
		pool.Close()
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("db ping retries exhausted: %w", lastErr)
}

// Migrate creates the vehicles table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, schema)
	return err
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*db.Vehicle, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+columns+` FROM vehicles WHERE id=$1`, id)
	return scanOptional(row)
}

func (r *Repository) FindByRegistration(ctx context.Context, registration string) (*db.Vehicle, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+columns+` FROM vehicles WHERE registration=$1`, registration)
	return scanOptional(row)
}

func (r *Repository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vehicles WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) Save(ctx context.Context, v *db.Vehicle) (*db.Vehicle, error) {
	args := []any{v.Registration, v.Make, v.Model, v.Colour, v.ColourCode, v.IsDrivable, v.VIN,
		v.EngineSize, v.FuelType, v.Transmission, v.BodyType, v.Year, v.Mileage}

	var row pgx.Row
	if v.ID == 0 {
		row = r.DB.QueryRow(ctx, `
			INSERT INTO vehicles (registration, make, model, colour, colour_code, is_drivable, vin,
				engine_size, fuel_type, transmission, body_type, year, mileage)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			RETURNING `+columns, args...)
	} else {
		row = r.DB.QueryRow(ctx, `
			UPDATE vehicles SET
				registration=$1, make=$2, model=$3, colour=$4, colour_code=$5, is_drivable=$6,
				vin=$7, engine_size=$8, fuel_type=$9, transmission=$10, body_type=$11, year=$12,
				mileage=$13
			WHERE id=$14
			RETURNING `+columns, append(args, v.ID)...)
	}

	saved, err := scan(row)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == registrationConstraint:
			return nil, repository.ErrDuplicateRegistration
		case v.ID != 0 && errors.Is(err, pgx.ErrNoRows):
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return saved, nil
}

func (r *Repository) Delete(ctx context.Context, v *db.Vehicle) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM vehicles WHERE id=$1`, v.ID)
	return err
}

func (r *Repository) FindAll(ctx context.Context) ([]*db.Vehicle, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+columns+` FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*db.Vehicle
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func scan(row pgx.Row) (*db.Vehicle, error) {
	var v db.Vehicle
	err := row.Scan(&v.ID, &v.Registration, &v.Make, &v.Model, &v.Colour, &v.ColourCode, &v.IsDrivable,
		&v.VIN, &v.EngineSize, &v.FuelType, &v.Transmission, &v.BodyType, &v.Year, &v.Mileage)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanOptional(row pgx.Row) (*db.Vehicle, error) {
	v, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

var _ repository.VehicleRepository = (*Repository)(nil)

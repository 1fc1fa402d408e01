package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/db"
	"github.com/workshop/vehicleapi/internal/events"
	"github.com/workshop/vehicleapi/internal/logger"
	"github.com/workshop/vehicleapi/internal/patch"
	"github.com/workshop/vehicleapi/internal/repository"
	"github.com/workshop/vehicleapi/internal/vehicle"
)

// VehicleService is the vehicle directory. Registrations are unique and a
// record is only ever replaced as a whole.
type VehicleService struct {
	repo      repository.VehicleRepository
	validator *vehicle.Validator
	events    events.Publisher
}

func NewVehicleService(repo repository.VehicleRepository, validator *vehicle.Validator, publisher events.Publisher) *VehicleService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &VehicleService{repo: repo, validator: validator, events: publisher}
}

// DecodeVehicle turns a create request body into a vehicle. Any id in the
// body is ignored.
func (s *VehicleService) DecodeVehicle(body []byte) (*db.Vehicle, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: request body must be a JSON object", ErrMalformedRequest)
	}
	delete(doc, "id")
	if err := s.validator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	clean, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var v db.Vehicle
	if err := json.Unmarshal(clean, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return &v, nil
}

func (s *VehicleService) Create(ctx context.Context, v *db.Vehicle) (*db.Vehicle, error) {
	if v == nil || v.Registration == "" || v.Make == "" || v.Model == "" {
		return nil, fmt.Errorf("%w: registration, make and model are required", ErrMalformedRequest)
	}
	existing, err := s.repo.FindByRegistration(ctx, v.Registration)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicate(v.Registration)
	}

	nv := v.Clone()
	nv.ID = 0
	saved, err := s.repo.Save(ctx, nv)
	if errors.Is(err, repository.ErrDuplicateRegistration) {
		return nil, duplicate(v.Registration)
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.VehicleCreated, saved)
	return saved, nil
}

// Update applies doc to the vehicle with the given id and stores the result.
// Nothing is stored unless every operation succeeds.
func (s *VehicleService) Update(ctx context.Context, id int64, doc patch.Document) (*db.Vehicle, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	patched, err := patch.ApplyTo(doc, *current, s.checkPatched(current.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPatchApplication, err)
	}

	if patched.Registration != current.Registration {
		other, err := s.repo.FindByRegistration(ctx, patched.Registration)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, duplicate(patched.Registration)
		}
	}

	saved, err := s.repo.Save(ctx, &patched)
	switch {
	case errors.Is(err, repository.ErrDuplicateRegistration):
		return nil, duplicate(patched.Registration)
	case errors.Is(err, repository.ErrNotFound):
		// deleted while the patch was applied
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.VehicleUpdated, saved)
	return saved, nil
}

// checkPatched keeps the id fixed and the document in vehicle shape.
func (s *VehicleService) checkPatched(id int64) func(*patch.Value) error {
	wantID := patch.Number(json.Number(strconv.FormatInt(id, 10)))
	return func(tree *patch.Value) error {
		if got, ok := tree.Get("id"); !ok || !got.Equal(wantID) {
			return errors.New("id is immutable")
		}
		data, err := tree.MarshalJSON()
		if err != nil {
			return err
		}
		return s.validator.ValidateJSON(data)
	}
}

func (s *VehicleService) Search(ctx context.Context, l Lookup) (*db.Vehicle, error) {
	var (
		v   *db.Vehicle
		err error
	)
	if l.byID {
		v, err = s.repo.FindByID(ctx, l.ID)
	} else {
		if l.Registration == "" {
			return nil, fmt.Errorf("%w: registration must not be empty", ErrMalformedRequest)
		}
		v, err = s.repo.FindByRegistration(ctx, l.Registration)
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, l)
	}
	return v, nil
}

// Delete removes the matched vehicle and returns it.
func (s *VehicleService) Delete(ctx context.Context, l Lookup) (*db.Vehicle, error) {
	v, err := s.Search(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, v); err != nil {
		return nil, err
	}
	s.publish(ctx, events.VehicleDeleted, v)
	return v, nil
}

// ListAll returns every vehicle. An empty directory is reported as
// ErrNoVehicles rather than an empty list.
func (s *VehicleService) ListAll(ctx context.Context) ([]*db.Vehicle, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoVehicles
	}
	return all, nil
}

func (s *VehicleService) publish(ctx context.Context, eventType string, v *db.Vehicle) {
	e := events.Event{
		Type:       eventType,
		VehicleID:  v.ID,
		OccurredAt: time.Now().UTC(),
		Vehicle:    v,
	}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		e.Actor = p.Username
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("event", eventType).Warn("vehicle event not published")
	}
}

func duplicate(registration string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateRegistration, registration)
}

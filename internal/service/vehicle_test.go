package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/db"
	"github.com/workshop/vehicleapi/internal/events"
	"github.com/workshop/vehicleapi/internal/patch"
	"github.com/workshop/vehicleapi/internal/repository/memory"
	"github.com/workshop/vehicleapi/internal/vehicle"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T) (*VehicleService, *recordingPublisher) {
	t.Helper()
	validator, err := vehicle.NewValidator()
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewVehicleService(memory.New(), validator, pub), pub
}

func focus() *db.Vehicle {
	return &db.Vehicle{Registration: "AB12CDE", Make: "Ford", Model: "Focus"}
}

func mustDoc(t *testing.T, s string) patch.Document {
	t.Helper()
	doc, err := patch.DecodeDocument([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestCreateThenDuplicate(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, focus())
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	_, err = svc.Create(ctx, focus())
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.True(t, IsDomainError(err))

	assert.Equal(t, []string{events.VehicleCreated}, pub.types())
}

func TestCreateIgnoresSuppliedID(t *testing.T) {
	svc, _ := newTestService(t)
	v := focus()
	v.ID = 99

	created, err := svc.Create(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
}

func TestCreateRequiresFields(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), &db.Vehicle{Registration: "X"})
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestDecodeVehicle(t *testing.T) {
	svc, _ := newTestService(t)

	v, err := svc.DecodeVehicle([]byte(`{"id":"ignored","registration":"AB12CDE","make":"Ford","model":"Focus","isDrivable":true,"colour":"Blue"}`))
	require.NoError(t, err)
	assert.Zero(t, v.ID)
	assert.True(t, v.IsDrivable)
	require.NotNil(t, v.Colour)
	assert.Equal(t, "Blue", *v.Colour)

	for _, body := range []string{``, `null`, `[]`, `{"registration":"AB12CDE"}`, `{"registration":"A","make":"B","model":"C","wheels":4}`} {
		_, err := svc.DecodeVehicle([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedRequest, body)
	}
}

func TestRoundTripSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	colour := "Red"
	in := focus()
	in.Colour = &colour

	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	byID, err := svc.Search(ctx, ByID(created.ID))
	require.NoError(t, err)
	byReg, err := svc.Search(ctx, ByRegistration("AB12CDE"))
	require.NoError(t, err)

	want := in.Clone()
	want.ID = created.ID
	assert.Equal(t, want, byID)
	assert.Equal(t, want, byReg)

	_, err = svc.Search(ctx, ByID(42))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Search(ctx, ByRegistration(""))
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestUpdateReplacesColourOnly(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, focus())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, mustDoc(t, `[{"op":"replace","path":"/colour","value":"Red"}]`))
	require.NoError(t, err)
	require.NotNil(t, updated.Colour)
	assert.Equal(t, "Red", *updated.Colour)

	want := created.Clone()
	want.Colour = updated.Colour
	assert.Equal(t, want, updated)

	stored, err := svc.Search(ctx, ByID(created.ID))
	require.NoError(t, err)
	assert.Equal(t, updated, stored)

	assert.Equal(t, []string{events.VehicleCreated, events.VehicleUpdated}, pub.types())
}

func TestUpdateFailuresLeaveRecordUntouched(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"unknown path", `[{"op":"replace","path":"/wheels","value":4}]`, ErrPatchApplication},
		{"failed test", `[{"op":"replace","path":"/make","value":"Kia"},{"op":"test","path":"/model","value":"Rio"}]`, ErrPatchApplication},
		{"id change", `[{"op":"replace","path":"/id","value":7}]`, ErrPatchApplication},
		{"id removal", `[{"op":"remove","path":"/id"}]`, ErrPatchApplication},
		{"required field removed", `[{"op":"remove","path":"/make"}]`, ErrPatchApplication},
		{"wrong type", `[{"op":"replace","path":"/isDrivable","value":"yes"}]`, ErrPatchApplication},
		{"unknown field added", `[{"op":"add","path":"/wheels","value":4}]`, ErrPatchApplication},
		{"registration taken", `[{"op":"replace","path":"/registration","value":"ZZ99ZZZ"}]`, ErrDuplicateRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			created, err := svc.Create(ctx, focus())
			require.NoError(t, err)
			_, err = svc.Create(ctx, &db.Vehicle{Registration: "ZZ99ZZZ", Make: "Kia", Model: "Rio"})
			require.NoError(t, err)

			_, err = svc.Update(ctx, created.ID, mustDoc(t, tt.doc))
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := svc.Search(ctx, ByID(created.ID))
			require.NoError(t, err)
			assert.Equal(t, created, stored)
		})
	}
}

func TestUpdatePatchErrorCarriesIndex(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, focus())
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, mustDoc(t, `[{"op":"replace","path":"/colour","value":"Red"},{"op":"remove","path":"/nope"}]`))
	var perr *patch.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Index)
	assert.Equal(t, "/nope", perr.Path)
}

func TestUpdateMissingVehicle(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Update(context.Background(), 5, mustDoc(t, `[]`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCanMoveRegistrationToFreeValue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, focus())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, mustDoc(t, `[{"op":"replace","path":"/registration","value":"NEW1"}]`))
	require.NoError(t, err)
	assert.Equal(t, "NEW1", updated.Registration)

	_, err = svc.Search(ctx, ByRegistration("AB12CDE"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteThenSearch(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := auth.WithState(context.Background(), auth.State{Principal: auth.NewPrincipal("alice")})
	_, err := svc.Create(ctx, focus())
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, ByRegistration("AB12CDE"))
	require.NoError(t, err)
	assert.Equal(t, "AB12CDE", deleted.Registration)

	_, err = svc.Search(ctx, ByRegistration("AB12CDE"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Delete(ctx, ByRegistration("AB12CDE"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{events.VehicleCreated, events.VehicleDeleted}, pub.types())
	assert.Equal(t, "alice", pub.events[1].Actor)
}

func TestListAll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListAll(ctx)
	assert.ErrorIs(t, err, ErrNoVehicles)

	_, err = svc.Create(ctx, focus())
	require.NoError(t, err)
	_, err = svc.Create(ctx, &db.Vehicle{Registration: "ZZ99ZZZ", Make: "Kia", Model: "Rio"})
	require.NoError(t, err)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), focus())
	assert.NoError(t, err)
}

// failingRepo fails every call, for checking that store errors are not
// reported as domain errors.
type failingRepo struct {
	memory.MemoryRepository
	calls int
}

var errStore = errors.New("store down")

func (r *failingRepo) FindByRegistration(ctx context.Context, registration string) (*db.Vehicle, error) {
	r.calls++
	return nil, errStore
}

func (r *failingRepo) FindAll(ctx context.Context) ([]*db.Vehicle, error) {
	r.calls++
	return nil, errStore
}

func TestStoreErrorsAreNotDomainErrors(t *testing.T) {
	validator, err := vehicle.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	repo := &failingRepo{}
	svc := NewVehicleService(repo, validator, nil)

	_, err = svc.Create(context.Background(), focus())
	if !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if IsDomainError(err) {
		t.Errorf("store error must not be a domain error")
	}

	_, err = svc.ListAll(context.Background())
	if !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if repo.calls != 2 {
		t.Errorf("expected 2 repository calls, got %d", repo.calls)
	}
}

// deletingRepo deletes the vehicle between the read and the write of an
// update, as a concurrent DELETE would.
type deletingRepo struct {
	*memory.MemoryRepository
}

func (r *deletingRepo) FindByID(ctx context.Context, id int64) (*db.Vehicle, error) {
	v, err := r.MemoryRepository.FindByID(ctx, id)
	if err != nil || v == nil {
		return v, err
	}
	if err := r.MemoryRepository.Delete(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func TestUpdateDoesNotResurrectDeletedVehicle(t *testing.T) {
	validator, err := vehicle.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	store := memory.New()
	pub := &recordingPublisher{}
	created, err := NewVehicleService(store, validator, pub).Create(context.Background(), focus())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	svc := NewVehicleService(&deletingRepo{store}, validator, pub)
	_, err = svc.Update(context.Background(), created.ID, mustDoc(t, `[{"op":"replace","path":"/colour","value":"Red"}]`))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	all, err := store.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("deleted vehicle came back: %+v", all[0])
	}
	if got := pub.types(); len(got) != 1 || got[0] != events.VehicleCreated {
		t.Errorf("expected only the create event, got %v", got)
	}
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/workshop/vehicleapi/internal/db"
	"github.com/workshop/vehicleapi/internal/repository"
)

type MemoryRepository struct {
	vehicles       map[int64]*db.Vehicle
	byRegistration map[string]int64
	nextID         int64
	mu             sync.RWMutex
}

func New() *MemoryRepository {
	return &MemoryRepository{
		vehicles:       make(map[int64]*db.Vehicle),
		byRegistration: make(map[string]int64),
	}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (*db.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.vehicles[id]; ok {
		return v.Clone(), nil
	}
	return nil, nil
}

func (r *MemoryRepository) FindByRegistration(ctx context.Context, registration string) (*db.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byRegistration[registration]; ok {
		return r.vehicles[id].Clone(), nil
	}
	return nil, nil
}

func (r *MemoryRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.vehicles[id]
	return ok, nil
}

// Save keeps the registration index consistent with the stored records; the
// uniqueness check and the write happen under one lock.
func (r *MemoryRepository) Save(ctx context.Context, v *db.Vehicle) (*db.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byRegistration[v.Registration]; ok && owner != v.ID {
		return nil, repository.ErrDuplicateRegistration
	}

	stored := v.Clone()
	if stored.ID == 0 {
		r.nextID++
		stored.ID = r.nextID
	} else {
		old, ok := r.vehicles[stored.ID]
		if !ok {
			return nil, repository.ErrNotFound
		}
		delete(r.byRegistration, old.Registration)
	}

	r.vehicles[stored.ID] = stored
	r.byRegistration[stored.Registration] = stored.ID
	return stored.Clone(), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, v *db.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.vehicles[v.ID]; ok {
		delete(r.byRegistration, old.Registration)
		delete(r.vehicles, v.ID)
	}
	return nil
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]*db.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*db.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		list = append(list, v.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Interface check
var _ repository.VehicleRepository = (*MemoryRepository)(nil)

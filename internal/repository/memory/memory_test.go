package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workshop/vehicleapi/internal/db"
	"github.com/workshop/vehicleapi/internal/repository"
)

func TestMemoryRepository_SaveAssignsIDs(t *testing.T) {
	repo := New()
	ctx := context.Background()

	a, err := repo.Save(ctx, &db.Vehicle{Registration: "AB12CDE", Make: "Ford", Model: "Focus"})
	require.NoError(t, err)
	b, err := repo.Save(ctx, &db.Vehicle{Registration: "XY34ZZZ", Make: "Audi", Model: "A3"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	exists, err := repo.ExistsByID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryRepository_RegistrationIndex(t *testing.T) {
	repo := New()
	ctx := context.Background()

	v, err := repo.Save(ctx, &db.Vehicle{Registration: "AB12CDE", Make: "Ford", Model: "Focus"})
	require.NoError(t, err)

	_, err = repo.Save(ctx, &db.Vehicle{Registration: "AB12CDE", Make: "Kia", Model: "Rio"})
	assert.ErrorIs(t, err, repository.ErrDuplicateRegistration)

	v.Registration = "NEW1"
	_, err = repo.Save(ctx, v)
	require.NoError(t, err)

	old, err := repo.FindByRegistration(ctx, "AB12CDE")
	require.NoError(t, err)
	assert.Nil(t, old)

	found, err := repo.FindByRegistration(ctx, "NEW1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, v.ID, found.ID)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := New()
	ctx := context.Background()
	colour := "Blue"

	v, err := repo.Save(ctx, &db.Vehicle{Registration: "AB12CDE", Make: "Ford", Model: "Focus", Colour: &colour})
	require.NoError(t, err)
	*v.Colour = "Green"

	again, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue", *again.Colour)
}

func TestMemoryRepository_DeleteAndFindAll(t *testing.T) {
	repo := New()
	ctx := context.Background()

	a, _ := repo.Save(ctx, &db.Vehicle{Registration: "A", Make: "m", Model: "m"})
	_, _ = repo.Save(ctx, &db.Vehicle{Registration: "B", Make: "m", Model: "m"})

	require.NoError(t, repo.Delete(ctx, a))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "B", all[0].Registration)

	gone, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryRepository_SaveAfterDeleteFails(t *testing.T) {
	repo := New()
	ctx := context.Background()

	v, err := repo.Save(ctx, &db.Vehicle{Registration: "A", Make: "m", Model: "m"})
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, v))

	_, err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	gone, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

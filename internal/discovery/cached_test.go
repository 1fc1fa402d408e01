package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls     int
	instances []Instance
	err       error
}

func (r *countingResolver) Instances(ctx context.Context, service string) ([]Instance, error) {
	r.calls++
	return r.instances, r.err
}

func TestCached_ReusesNonEmptyLists(t *testing.T) {
	next := &countingResolver{instances: []Instance{{ID: "a", BaseURL: "http://a"}}}
	c := NewCached(next, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := c.Instances(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, next.instances, got)
	}
	assert.Equal(t, 1, next.calls)

	_, err := c.Instances(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCached_SkipsEmptyAndErrors(t *testing.T) {
	next := &countingResolver{}
	c := NewCached(next, time.Minute)

	got, err := c.Instances(context.Background(), "users")
	require.NoError(t, err)
	assert.Empty(t, got)

	next.err = errors.New("redis down")
	_, err = c.Instances(context.Background(), "users")
	assert.Error(t, err)

	next.err = nil
	next.instances = []Instance{{ID: "a", BaseURL: "http://a"}}
	got, err = c.Instances(context.Background(), "users")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, next.calls)
}

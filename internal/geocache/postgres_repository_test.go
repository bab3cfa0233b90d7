//go:build integration

package geocache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmosguard/atmosguard/internal/database/dbtest"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/geocache"
)

func TestPostgresRepository(t *testing.T) {
	repo := geocache.NewPostgresRepository(dbtest.Postgres(t))
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "Patna")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, "Patna", geo.Coordinate{Lat: 1, Lon: 2}))
	require.NoError(t, repo.Put(ctx, " patna ", patna))

	got, ok, err := repo.Get(ctx, "PATNA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, patna, got)

	n, err := repo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

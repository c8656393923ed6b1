package dataset_test

import (
	"context"
	"os"
	"testing"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/migrate"
	"place-boundaries/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable database; set PG_TEST_DSN to run.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	db, err := utils.OpenPostgres(dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrate.EnsureSchema(db))

	ctx := context.Background()
	s := dataset.AttachPostgres(db)
	ds := &dataset.Dataset{Name: "pg_roundtrip_test", SRID: 3310, Features: []dataset.Feature{
		{ID: 7, LegalPlaceName: "Example County", PlaceType: "County", Category: dataset.Str("ocean"),
			Attrs: map[string]any{"GEOID": "06001"}},
	}}
	require.NoError(t, s.Save(ctx, ds))
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM _pb_datasets WHERE name=$1`, ds.Name) })

	got, err := s.Load(ctx, ds.Name)
	require.NoError(t, err)
	require.Len(t, got.Features, 1)
	assert.Equal(t, "ocean", got.Features[0].CategoryValue())
	assert.Equal(t, "06001", got.Features[0].Attrs["GEOID"])

	f := got.Features[0]
	f.Category = nil
	require.NoError(t, s.Update(ctx, ds.Name, []dataset.Feature{f}))
	got, err = s.Load(ctx, ds.Name)
	require.NoError(t, err)
	assert.Nil(t, got.Features[0].Category)

	assert.Error(t, s.Update(ctx, ds.Name, []dataset.Feature{{ID: 99}}))
}

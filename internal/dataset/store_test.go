package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}}
}

func sample() *Dataset {
	return &Dataset{Name: "cities_cut", SRID: 3310, Features: []Feature{
		{ID: 1, LegalPlaceName: "Example City", PlaceType: "city", Geometry: square(0, 0, 10), Attrs: map[string]any{"GEOID": "0600001"}},
		{ID: 2, LegalPlaceName: "Example City", PlaceType: "city", Category: Str("ocean"), Geometry: square(10, 0, 10)},
	}}
}

// storeContract exercises behaviour every Store implementation must share.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	ok, err := s.Exists(ctx, "cities_cut")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Load(ctx, "cities_cut")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Save(ctx, sample()))
	ok, err = s.Exists(ctx, "cities_cut")
	require.NoError(t, err)
	assert.True(t, ok)

	ds, err := s.Load(ctx, "cities_cut")
	require.NoError(t, err)
	require.Len(t, ds.Features, 2)
	assert.Equal(t, 3310, ds.SRID)
	assert.Nil(t, ds.Features[0].Category)
	assert.Equal(t, "ocean", ds.Features[1].CategoryValue())
	assert.Equal(t, "0600001", ds.Features[0].Attrs["GEOID"])

	f := ds.Features[0]
	f.Geometry = square(0, 0, 20)
	require.NoError(t, s.Update(ctx, "cities_cut", []Feature{f}))
	ds, err = s.Load(ctx, "cities_cut")
	require.NoError(t, err)
	assert.Equal(t, square(0, 0, 20), ds.Features[0].Geometry)

	bad := ds.Features[1]
	bad.Geometry = square(50, 50, 1)
	err = s.Update(ctx, "cities_cut", []Feature{bad, {ID: 99}})
	assert.True(t, errors.Is(err, ErrUnknownFeature))
	ds, err = s.Load(ctx, "cities_cut")
	require.NoError(t, err)
	assert.Equal(t, square(10, 0, 10), ds.Features[1].Geometry, "failed update must not be partially applied")

	dup := sample()
	dup.Features[1].ID = 1
	assert.True(t, errors.Is(s.Save(ctx, dup), ErrDuplicateID))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreLoadDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, sample()))
	ds, err := s.Load(ctx, "cities_cut")
	require.NoError(t, err)
	ds.Features[0].Geometry[0][0][0] = orb.Point{-1, -1}
	again, err := s.Load(ctx, "cities_cut")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{0, 0}, again.Features[0].Geometry[0][0][0])
}

func TestGeoJSONStore(t *testing.T) {
	s, err := NewGeoJSONStore(t.TempDir())
	require.NoError(t, err)
	storeContract(t, s)
}

func TestFromGeoJSON(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[
      {"type":"Feature","properties":{"COASTAL":"ocean","NAME":"Pacific"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
      {"type":"Feature","properties":{"COASTAL":null},"geometry":{"type":"MultiPolygon","coordinates":[[[[2,0],[3,0],[3,1],[2,1],[2,0]]]]}},
      {"type":"Feature","properties":{"COASTAL":"bay"},"geometry":{"type":"Point","coordinates":[5,5]}}
    ]}`
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	require.NoError(t, err)

	ds, skipped := FromGeoJSON("coastal_full", 3310, fc.Features, "COASTAL")
	assert.Equal(t, 1, skipped)
	require.Len(t, ds.Features, 2)
	assert.Equal(t, int64(1), ds.Features[0].ID)
	assert.Equal(t, int64(2), ds.Features[1].ID)
	assert.Equal(t, "ocean", ds.Features[0].CategoryValue())
	assert.Equal(t, "Pacific", ds.Features[0].Attrs["NAME"])
	assert.Nil(t, ds.Features[1].Category)
	assert.Equal(t, []string{"ocean"}, ds.Categories())
}

func TestToGeoJSONWritesNullCategory(t *testing.T) {
	feats := ToGeoJSON(sample())
	b, err := json.Marshal(feats[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"COASTAL":null`)
	assert.Equal(t, "ocean", feats[1].Properties[FieldCategory])
}

func TestFeatureHasIdentity(t *testing.T) {
	assert.False(t, Feature{}.HasIdentity())
	assert.True(t, Feature{LegalPlaceName: "  "}.HasIdentity(), "whitespace is still a value")
	assert.True(t, Feature{PlaceName: "Example"}.HasIdentity())
}

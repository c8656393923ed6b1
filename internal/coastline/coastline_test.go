package coastline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/geom"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(id int, x float64, coastal string) string {
	cat := "null"
	if coastal != "-" {
		cat = fmt.Sprintf("%q", coastal)
	}
	return fmt.Sprintf(`{"type":"Feature","id":%d,"geometry":{"type":"Polygon","coordinates":[[[%g,0],[%g,0],[%g,10],[%g,10],[%g,0]]]},"properties":{"COASTAL":%s,"NAME":"f%d"}}`,
		id, x, x+10, x+10, x, x, cat, id)
}

const point = `{"type":"Feature","id":99,"geometry":{"type":"Point","coordinates":[1,1]},"properties":{"COASTAL":"ocean"}}`

// arcgis serves three polygons and one point in pages of two.
func arcgis(t *testing.T, hits *int32) *httptest.Server {
	pages := map[string]string{
		"0": `{"type":"FeatureCollection","features":[` + square(1, 0, "ocean") + `,` + square(2, 20, "bay") + `],"properties":{"exceededTransferLimit":true}}`,
		"2": `{"type":"FeatureCollection","features":[` + square(3, 40, "-") + `,` + point + `],"properties":{"exceededTransferLimit":true}}`,
		"4": `{"type":"FeatureCollection","features":[` + square(4, 60, "") + `]}`,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		q := r.URL.Query()
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "geojson", q.Get("f"))
		assert.Equal(t, "3310", q.Get("outSR"))
		assert.Equal(t, "1=1", q.Get("where"))
		assert.Equal(t, "2", q.Get("resultRecordCount"))
		body, ok := pages[q.Get("resultOffset")]
		if !ok {
			body = `{"type":"FeatureCollection","features":[]}`
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(body))
	}))
}

func fetcher(url string) *Fetcher {
	return &Fetcher{URL: url, SRID: 3310, CategoryField: "COASTAL", PageSize: 2, MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestFetchPagesUntilShortPage(t *testing.T) {
	var hits int32
	srv := arcgis(t, &hits)
	defer srv.Close()

	ds, err := fetcher(srv.URL).Fetch(context.Background(), "coastal_full")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, 3310, ds.SRID)
	require.Len(t, ds.Features, 4, "point skipped")

	idx := ds.ByID()
	assert.Equal(t, "ocean", ds.Features[idx[1]].CategoryValue())
	assert.Equal(t, "bay", ds.Features[idx[2]].CategoryValue())
	assert.Nil(t, ds.Features[idx[3]].Category)
	assert.Nil(t, ds.Features[idx[4]].Category, "empty category treated as land")
	assert.Equal(t, "f1", ds.Features[idx[1]].Attrs["NAME"])
	assert.InDelta(t, 100, geom.MultiArea(ds.Features[idx[1]].Geometry), 1e-9)
	assert.Equal(t, []string{"bay", "ocean"}, ds.Categories())
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[` + square(1, 0, "ocean") + `]}`))
		}
	}))
	defer srv.Close()

	ds, err := fetcher(srv.URL).Fetch(context.Background(), "coastal_full")
	require.NoError(t, err)
	assert.Len(t, ds.Features, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fetcher(srv.URL).Fetch(context.Background(), "coastal_full")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := fetcher(srv.URL).Fetch(context.Background(), "coastal_full")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchReportsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid or missing input parameters."}}`))
	}))
	defer srv.Close()

	_, err := fetcher(srv.URL).Fetch(context.Background(), "coastal_full")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid or missing input parameters."))
}

func TestFetchRequiresURL(t *testing.T) {
	_, err := fetcher("").Fetch(context.Background(), "coastal_full")
	assert.True(t, errors.Is(err, ErrNoSource))
}

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) Fetch(_ context.Context, name string) (*dataset.Dataset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &dataset.Dataset{Name: name, SRID: 3310, Features: []dataset.Feature{
		{ID: 1, Category: dataset.Str("ocean"), Geometry: orb.MultiPolygon{geom.Rect(0, 0, 10, 10)}},
	}}, nil
}

func TestEnsureFetchesOnce(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{}
	c := &Cache{Store: dataset.NewMemoryStore(), Name: "coastal_full", SRID: 3310, Source: src}

	first, err := c.Ensure(ctx)
	require.NoError(t, err)
	second, err := c.Ensure(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	ok, _ := c.Store.Exists(ctx, "coastal_full")
	assert.True(t, ok)
}

func TestEnsureUsesExistingStoreCopy(t *testing.T) {
	ctx := context.Background()
	st := dataset.NewMemoryStore()
	require.NoError(t, st.Save(ctx, &dataset.Dataset{Name: "coastal_full", SRID: 3310}))
	src := &countingSource{err: errors.New("network down")}

	_, err := (&Cache{Store: st, Name: "coastal_full", Source: src}).Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, src.calls)
}

func TestEnsurePropagatesFetchError(t *testing.T) {
	ctx := context.Background()
	st := dataset.NewMemoryStore()
	src := &countingSource{err: errors.New("network down")}

	_, err := (&Cache{Store: st, Name: "coastal_full", Source: src}).Ensure(ctx)
	require.Error(t, err)
	ok, _ := st.Exists(ctx, "coastal_full")
	assert.False(t, ok)
}

func TestEnsureSharesThroughRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	warm := &Cache{Store: dataset.NewMemoryStore(), Name: "coastal_full", SRID: 3310, Source: &countingSource{}, Redis: rc, TTL: time.Hour}
	_, err := warm.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(warm.RedisKey()))

	src := &countingSource{err: errors.New("must not be called")}
	cold := &Cache{Store: dataset.NewMemoryStore(), Name: "coastal_full", SRID: 3310, Source: src, Redis: rc}
	ds, err := cold.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, src.calls)
	require.Len(t, ds.Features, 1)
	assert.Equal(t, "ocean", ds.Features[0].CategoryValue())

	ok, _ := cold.Store.Exists(ctx, "coastal_full")
	assert.True(t, ok, "redis copy persisted into the working store")
}

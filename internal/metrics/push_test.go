package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSendsGroupedMetrics(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	RunsTotal.WithLabelValues("run", "cities", "ok").Inc()
	require.NoError(t, Push(context.Background(), srv.URL, "coastal_cut", "run-1"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/coastal_cut/run_id/run-1", path)
}

func TestPushWithoutGatewayIsNoop(t *testing.T) {
	assert.NoError(t, Push(context.Background(), "", "coastal_cut", "run-1"))
}

func TestHandlerExposesRunMetrics(t *testing.T) {
	SliverRelocatedTotal.Add(0)
	CoastlineLoadsTotal.WithLabelValues("store").Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "boundaries_sliver_relocated_total")
	assert.Contains(t, body, `boundaries_coastline_loads_total{source="store"}`)
}

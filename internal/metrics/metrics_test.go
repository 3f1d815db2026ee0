package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest("GET", "/api/test", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTeapot, rr.Code)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/test", "418")), 1.0)
	assert.NotZero(t, testutil.CollectAndCount(httpRequestDuration))
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(searchesTotal.WithLabelValues("vector"))
	ObserveSearch("vector", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(searchesTotal.WithLabelValues("vector")))

	ObserveSearch("", time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(searchesTotal.WithLabelValues("none")), 1.0)

	before = testutil.ToFloat64(mergeFiles.WithLabelValues("applied"))
	ObserveMerge("ok", 3, 1)
	assert.Equal(t, before+3, testutil.ToFloat64(mergeFiles.WithLabelValues("applied")))

	before = testutil.ToFloat64(sprtDecisions.WithLabelValues("Accept"))
	ObserveSPRT("Accept")
	assert.Equal(t, before+1, testutil.ToFloat64(sprtDecisions.WithLabelValues("Accept")))
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	Register()
	Register()
	TraceRecorded()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "skillroute_traces_recorded_total"))
}

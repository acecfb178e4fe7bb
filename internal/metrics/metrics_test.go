package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveSearch("ok", time.Second, 2)
		m.RegionFailed("embed")
		m.CacheLookup(true)
		m.IndexSwapped(10)
		m.ObserveBuild("ok", time.Second)
		m.ProductEmbedded("ok")
	})
}

func TestMetricsRecorded(t *testing.T) {
	m := New("test")

	m.IndexSwapped(42)
	m.RegionFailed("embed")
	m.RegionFailed("embed")
	m.CacheLookup(false)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.indexSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexSwaps))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.regionFailures.WithLabelValues("embed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New("test")
	m.IndexSwapped(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `visual_search_index_size{service="test"} 3`)
}

// Package metrics — метрики Prometheus поиска, сборки индекса и кэша.
// Все методы безопасны для nil-получателя: компоненты работают и без метрик.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visual_search"

type Metrics struct {
	Registry *prometheus.Registry

	searchDuration *prometheus.HistogramVec
	searchRegions  prometheus.Histogram
	regionFailures *prometheus.CounterVec
	cacheRequests  *prometheus.CounterVec
	indexSize      prometheus.Gauge
	indexSwaps     prometheus.Counter
	buildDuration  *prometheus.HistogramVec
	embeddedItems  *prometheus.CounterVec
}

// New регистрирует метрики в собственном реестре с меткой service.
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, registry)

	m := &Metrics{
		Registry: registry,
		searchDuration: createHistogramVec("search_duration_seconds", "Search request latency.",
			[]string{"status"}, prometheus.DefBuckets),
		searchRegions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_regions",
			Help:      "Regions detected per search request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		regionFailures: createCounterVec("region_failures_total", "Regions dropped during search.", []string{"reason"}),
		cacheRequests:  createCounterVec("cache_requests_total", "Search cache lookups.", []string{"result"}),
		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_size",
			Help:      "Vectors in the serving index.",
		}),
		indexSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_swaps_total",
			Help:      "Index snapshots swapped in.",
		}),
		buildDuration: createHistogramVec("index_build_duration_seconds", "Index build latency.",
			[]string{"status"}, prometheus.ExponentialBuckets(1, 2, 12)),
		embeddedItems: createCounterVec("catalog_embedded_total", "Catalog products embedded.", []string{"status"}),
	}

	wrapped.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searchDuration,
		m.searchRegions,
		m.regionFailures,
		m.cacheRequests,
		m.indexSize,
		m.indexSwaps,
		m.buildDuration,
		m.embeddedItems,
	)

	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSearch(status string, d time.Duration, regions int) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(status).Observe(d.Seconds())
	m.searchRegions.Observe(float64(regions))
}

func (m *Metrics) RegionFailed(reason string) {
	if m == nil {
		return
	}
	m.regionFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) IndexSwapped(size int) {
	if m == nil {
		return
	}
	m.indexSize.Set(float64(size))
	m.indexSwaps.Inc()
}

func (m *Metrics) ObserveBuild(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ProductEmbedded(status string) {
	if m == nil {
		return
	}
	m.embeddedItems.WithLabelValues(status).Inc()
}

func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

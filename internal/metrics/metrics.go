package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Upstream fetch metrics
	MarketFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinboard_market_fetches_total",
			Help: "Total successful market data fetches by currency",
		},
		[]string{"currency"},
	)

	MarketFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinboard_market_fetch_failures_total",
			Help: "Total failed market data fetches by currency",
		},
		[]string{"currency"},
	)

	MarketFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinboard_market_fetch_latency_ms",
			Help:    "Upstream market data fetch latency in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"currency"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinboard_cache_hits_total",
			Help: "Total cache hits by tier",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinboard_cache_misses_total",
			Help: "Total cache misses by tier",
		},
		[]string{"tier"},
	)

	CacheHitRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coinboard_cache_hit_ratio",
			Help: "Cache hit ratio by tier (0-1)",
		},
		[]string{"tier"},
	)

	// UI metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coinboard_active_sessions",
			Help: "Number of mounted page sessions",
		},
	)

	PageRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinboard_page_renders_total",
			Help: "Total server-side renders by view",
		},
		[]string{"view"}, // page, api
	)

	UIEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinboard_ui_events_total",
			Help: "Total UI events handled by the page controller",
		},
		[]string{"event"},
	)

	// Publishing metrics
	PublishSuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinboard_publish_success_total",
			Help: "Total successful Redis snapshot publishes",
		},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinboard_publish_failures_total",
			Help: "Total failed Redis snapshot publishes",
		},
	)
)

// TrackFetch records a successful upstream fetch
func TrackFetch(currency string) {
	MarketFetches.WithLabelValues(currency).Inc()
}

// TrackFetchFailure records a failed upstream fetch
func TrackFetchFailure(currency string) {
	MarketFetchFailures.WithLabelValues(currency).Inc()
}

// TrackEvent records a handled UI event
func TrackEvent(event string) {
	UIEvents.WithLabelValues(event).Inc()
}

// TrackRender records a server-side render
func TrackRender(view string) {
	PageRenders.WithLabelValues(view).Inc()
}

// RecordCacheAccess records a cache hit or miss
func RecordCacheAccess(tier string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(tier).Inc()
	} else {
		CacheMisses.WithLabelValues(tier).Inc()
	}
	updateCacheHitRatio(tier)
}

// updateCacheHitRatio reads the counters back through dto to keep the ratio gauge current
func updateCacheHitRatio(tier string) {
	hits, _ := CacheHits.GetMetricWithLabelValues(tier)
	misses, _ := CacheMisses.GetMetricWithLabelValues(tier)

	if hits != nil && misses != nil {
		hitsMetric := &dto.Metric{}
		missesMetric := &dto.Metric{}

		if hits.Write(hitsMetric) == nil && misses.Write(missesMetric) == nil {
			hitsVal := hitsMetric.Counter.GetValue()
			missesVal := missesMetric.Counter.GetValue()

			total := hitsVal + missesVal
			if total > 0 {
				CacheHitRatio.WithLabelValues(tier).Set(hitsVal / total)
			}
		}
	}
}

// TrackLatency is a helper to measure and record latency
func TrackLatency(start time.Time, histogram prometheus.Observer) {
	duration := time.Since(start).Milliseconds()
	histogram.Observe(float64(duration))
}

package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spothunter"

// Metrics holds the Prometheus collectors for the aggregation engine. All
// helper methods are no-ops on a nil receiver so components can run without
// instrumentation.
type Metrics struct {
	FetchTotal     *prometheus.CounterVec   // labels: source, outcome={ok,error,rejected,skipped}
	FetchDuration  *prometheus.HistogramVec // labels: source
	SpotsStored    *prometheus.GaugeVec     // labels: source
	RecordsDropped *prometheus.CounterVec   // labels: source

	GeoLookups    *prometheus.CounterVec // labels: result={lru,store,remote,miss}
	RegionFetches *prometheus.CounterVec // labels: outcome={ok,error}

	Recomputes     prometheus.Counter
	DisplayedSpots prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Feed fetch cycles by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Feed fetch and parse duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		SpotsStored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spots_stored",
			Help:      "Spots held in the latest batch per source.",
		}, []string{"source"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_records_dropped_total",
			Help:      "Feed records rejected during parsing.",
		}, []string{"source"}),
		GeoLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_lookups_total",
			Help:      "Location code lookups by where they were answered.",
		}, []string{"result"}),
		RegionFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_region_fetches_total",
			Help:      "Remote region lookups by outcome.",
		}, []string{"outcome"}),
		Recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_recomputes_total",
			Help:      "Completed aggregate rebuilds.",
		}),
		DisplayedSpots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregate_spots",
			Help:      "Spots in the most recent aggregate.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FetchTotal,
			m.FetchDuration,
			m.SpotsStored,
			m.RecordsDropped,
			m.GeoLookups,
			m.RegionFetches,
			m.Recomputes,
			m.DisplayedSpots,
		)
	}
	return m
}

// ObserveFetch records a fetch cycle outcome and its duration.
func (m *Metrics) ObserveFetch(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(source, outcome).Inc()
	if outcome != "skipped" {
		m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

// SetStored sets the latest batch size for a source.
func (m *Metrics) SetStored(source string, n int) {
	if m == nil {
		return
	}
	m.SpotsStored.WithLabelValues(source).Set(float64(n))
}

// AddDropped counts rejected records.
func (m *Metrics) AddDropped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsDropped.WithLabelValues(source).Add(float64(n))
}

// GeoLookup counts where a location lookup was answered.
func (m *Metrics) GeoLookup(result string) {
	if m == nil {
		return
	}
	m.GeoLookups.WithLabelValues(result).Inc()
}

// RegionFetch counts a remote region request.
func (m *Metrics) RegionFetch(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RegionFetches.WithLabelValues(outcome).Inc()
}

// Recompute records a completed aggregate rebuild of n spots.
func (m *Metrics) Recompute(n int) {
	if m == nil {
		return
	}
	m.Recomputes.Inc()
	m.DisplayedSpots.Set(float64(n))
}

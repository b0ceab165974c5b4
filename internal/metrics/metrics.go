// Package metrics records Prometheus counters for sync, instance expansion
// and extraction. All Recorder methods are safe on a nil receiver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pocketcal"

// Recorder owns the collectors registered for one process.
type Recorder struct {
	syncRuns      *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	syncEntities  *prometheus.CounterVec
	syncConflicts prometheus.Counter
	cacheLookups  *prometheus.CounterVec
	extractions   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// NewRecorder registers the collectors with reg. A nil reg creates
// unregistered collectors, which is convenient in tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync passes by result.",
		}, []string{"result"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of completed sync passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		syncEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_entities_total",
			Help:      "Entities moved by sync, by direction and kind.",
		}, []string{"direction", "kind"}),
		syncConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_conflicts_total",
			Help:      "Remote records older than a synced local copy.",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_cache_total",
			Help:      "Instance cache lookups by result.",
		}, []string{"result"}),
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction requests by result.",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Local API requests by method and status class.",
		}, []string{"method", "status"}),
	}
}

// SyncCompleted records the outcome of one sync pass.
func (r *Recorder) SyncCompleted(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.syncRuns.WithLabelValues(result).Inc()
	r.syncDuration.Observe(elapsed.Seconds())
}

// EntitiesSynced adds n entities of kind moved in direction (push, pull, delete).
func (r *Recorder) EntitiesSynced(direction, kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.syncEntities.WithLabelValues(direction, kind).Add(float64(n))
}

// ConflictKept counts a remote record rejected in favour of the local copy.
func (r *Recorder) ConflictKept() {
	if r == nil {
		return
	}
	r.syncConflicts.Inc()
}

// CacheLookup counts an instance cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ExtractionCompleted counts an extraction request by result.
func (r *Recorder) ExtractionCompleted(result string) {
	if r == nil {
		return
	}
	r.extractions.WithLabelValues(result).Inc()
}

// HTTPRequest counts a served request by method and status class ("2xx", "4xx", ...).
func (r *Recorder) HTTPRequest(method string, status int) {
	if r == nil {
		return
	}
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	r.httpRequests.WithLabelValues(method, class).Inc()
}

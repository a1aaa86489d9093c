package observability

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prok_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prok_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// CacheHits counts cache hits by key.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prok_cache_hits_total",
		Help: "Total number of cache hits by key",
	}, []string{"key"})

	// CacheMisses counts cache misses by key.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prok_cache_misses_total",
		Help: "Total number of cache misses by key",
	}, []string{"key"})

	// MediaUploads counts stored media objects by kind (image or video).
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prok_media_uploads_total",
		Help: "Total number of media uploads by kind",
	}, []string{"kind"})

	// ProfileCommitRetries counts retried profile save attempts.
	ProfileCommitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prok_profile_commit_retries_total",
		Help: "Total number of retried profile save attempts",
	})
)

// ObserveQuery records the latency of a database query. The operation label
// is the leading SQL keyword (select, insert, ...), lowercased.
func ObserveQuery(sql string, elapsed time.Duration) {
	op := "other"
	if fields := strings.Fields(sql); len(fields) > 0 {
		switch kw := strings.ToLower(fields[0]); kw {
		case "select", "insert", "update", "delete":
			op = kw
		}
	}
	DatabaseQueryLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

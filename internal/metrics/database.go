package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBQueryDuration observes the latency of instrumented repository calls.
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of instrumented database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Failed database operations by cause",
		},
		[]string{"operation", "error_type"},
	)
)

// PoolSnapshot is one reading of the connection pool.
type PoolSnapshot struct {
	Total         int32
	Acquired      int32
	Idle          int32
	Max           int32
	EmptyAcquires int64
}

// SnapshotPool reads pool's current statistics.
func SnapshotPool(pool *pgxpool.Pool) PoolSnapshot {
	s := pool.Stat()
	return PoolSnapshot{
		Total:         s.TotalConns(),
		Acquired:      s.AcquiredConns(),
		Idle:          s.IdleConns(),
		Max:           s.MaxConns(),
		EmptyAcquires: s.EmptyAcquireCount(),
	}
}

// poolCollector reads pool statistics at scrape time, so the gauges are
// never stale and no background goroutine is needed.
type poolCollector struct {
	read func() PoolSnapshot

	total    *prometheus.Desc
	acquired *prometheus.Desc
	idle     *prometheus.Desc
	max      *prometheus.Desc
	waits    *prometheus.Desc
}

// NewPoolCollector describes the connection pool gauges. A nil read
// collects nothing.
func NewPoolCollector(read func() PoolSnapshot) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", name), help, nil, nil)
	}
	return &poolCollector{
		read:     read,
		total:    desc("connections_open", "Open connections in the pool"),
		acquired: desc("connections_in_use", "Connections currently acquired"),
		idle:     desc("connections_idle", "Idle connections"),
		max:      desc("connections_max_open", "Pool size limit"),
		waits:    desc("connection_waits_total", "Acquires that had to wait for a free connection"),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.acquired
	ch <- c.idle
	ch <- c.max
	ch <- c.waits
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.read == nil {
		return
	}
	s := c.read()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.Total))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.EmptyAcquires))
}

// RegisterPool exposes pool statistics on Registry. The returned function
// unregisters them; call it before the pool is closed.
func RegisterPool(pool *pgxpool.Pool) (func(), error) {
	collector := NewPoolCollector(func() PoolSnapshot { return SnapshotPool(pool) })
	if err := Registry.Register(collector); err != nil {
		return nil, err
	}
	return func() { Registry.Unregister(collector) }, nil
}

// RecordQuery observes an operation that started at start and counts err.
//
//	start := time.Now()
//	defer func() { metrics.RecordQuery("mutate_event", start, err) }()
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	cause := "query_error"
	if errors.Is(err, context.Canceled) {
		cause = "canceled"
	} else if errors.Is(err, context.DeadlineExceeded) {
		cause = "timeout"
	}
	DBErrors.WithLabelValues(operation, cause).Inc()
}

package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

const namespace = "cdg"

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	cycles       *prometheus.CounterVec
	cycleLatency *prometheus.HistogramVec
	lockWait     prometheus.Histogram
	ops          *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	stageEdits   *prometheus.CounterVec
	lambda       prometheus.Histogram
	rootCap      prometheus.Histogram
	graphSize    *prometheus.GaugeVec
	invariants   *prometheus.CounterVec
	projection   *prometheus.CounterVec

	dbStats *prometheus.GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide metrics, or nil before Init.
func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics once. Every method on a nil *Metrics
// is a no-op, so callers never need to check enablement.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics initialized", "namespace", namespace)
		}
	})
	return instance
}

// New returns metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency in seconds by method/route/status.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_inflight_requests",
			Help:      "In-flight API requests.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patch_cycles_total",
			Help:      "Patch cycles by outcome (changed, unchanged, conflict, error).",
		}, []string{"status"}),
		cycleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "patch_cycle_duration_seconds",
			Help:      "End-to-end patch cycle latency in seconds by outcome.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"status"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_lock_wait_seconds",
			Help:      "Time spent acquiring the per-graph writer lock.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patch_ops_applied_total",
			Help:      "Applied patch operations by op kind.",
		}, []string{"op"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patch_ops_dropped_total",
			Help:      "Dropped patch operations by reason.",
		}, []string{"reason"}),
		stageEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebalance_edits_total",
			Help:      "Structural edits made by each rebalance stage.",
		}, []string{"stage"}),
		lambda: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebalance_lambda",
			Help:      "Adaptive pruning pressure chosen per rebalance.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
		rootCap: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebalance_root_in_degree_cap",
			Help:      "Root in-degree cap chosen per rebalance.",
			Buckets:   prometheus.LinearBuckets(4, 1, 7),
		}),
		graphSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_last_committed_size",
			Help:      "Node and edge counts of the most recently committed graph.",
		}, []string{"kind"}),
		invariants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_failures_total",
			Help:      "Post-rebalance invariant check failures by check name.",
		}, []string{"check"}),
		projection: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_projection_total",
			Help:      "Neo4j projections by status.",
		}, []string{"status"}),
		dbStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_stats",
			Help:      "database/sql pool stats by metric.",
		}, []string{"metric"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.cycles, m.cycleLatency, m.lockWait,
		m.ops, m.dropped, m.stageEdits,
		m.lambda, m.rootCap, m.graphSize,
		m.invariants, m.projection, m.dbStats,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveCycle(status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.cycles.WithLabelValues(status).Inc()
	m.cycleLatency.WithLabelValues(status).Observe(dur.Seconds())
}

func (m *Metrics) ObserveLockWait(dur time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(dur.Seconds())
}

func (m *Metrics) IncApplied(op string) {
	if m == nil || op == "" {
		return
	}
	m.ops.WithLabelValues(op).Inc()
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// AddStageEdits records how many edits a rebalance stage made; zero counts
// still create the series so dashboards see every stage.
func (m *Metrics) AddStageEdits(stage string, n int) {
	if m == nil || stage == "" || n < 0 {
		return
	}
	m.stageEdits.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) ObserveParams(lambda float64, rootCap int) {
	if m == nil {
		return
	}
	m.lambda.Observe(lambda)
	m.rootCap.Observe(float64(rootCap))
}

func (m *Metrics) SetGraphSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.graphSize.WithLabelValues("nodes").Set(float64(nodes))
	m.graphSize.WithLabelValues("edges").Set(float64(edges))
}

func (m *Metrics) IncInvariantFailure(check string) {
	if m == nil || check == "" {
		return
	}
	m.invariants.WithLabelValues(check).Inc()
}

func (m *Metrics) ObserveProjection(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.projection.WithLabelValues(status).Inc()
}

// StartDBCollector samples the sql pool until ctx is done.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.recordDBStats(stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount, stats.WaitDuration)
			}
		}
	}()
}

func (m *Metrics) recordDBStats(open, inUse, idle int, waitCount int64, wait time.Duration) {
	m.dbStats.WithLabelValues("open_connections").Set(float64(open))
	m.dbStats.WithLabelValues("in_use").Set(float64(inUse))
	m.dbStats.WithLabelValues("idle").Set(float64(idle))
	m.dbStats.WithLabelValues("wait_count").Set(float64(waitCount))
	m.dbStats.WithLabelValues("wait_duration_seconds").Set(wait.Seconds())
}

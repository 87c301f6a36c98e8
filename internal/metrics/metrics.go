// Package metrics exposes Prometheus instruments on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cafemarche"

// Metrics owns every instrument the server records.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	TableMutations  *prometheus.CounterVec
	ChangePlanItems *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	FilesPurged     prometheus.Counter
}

// New registers all instruments, plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		TableMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_mutations_total",
			Help:      "Row writes by table and operation.",
		}, []string{"table", "op"}),
		ChangePlanItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "change_plan_items",
			Help:      "Association rows touched per change plan, by kind.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Option cache lookups by result.",
		}, []string{"result"}),
		FilesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_purged_total",
			Help:      "Soft-deleted files whose content and rows were removed.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.TableMutations,
		m.ChangePlanItems,
		m.CacheLookups,
		m.FilesPurged,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Mutation records a row write.
func (m *Metrics) Mutation(table, op string) {
	if m == nil {
		return
	}
	m.TableMutations.WithLabelValues(table, op).Inc()
}

// ChangePlan records the size of an applied association plan.
func (m *Metrics) ChangePlan(created, updated, deleted int) {
	if m == nil {
		return
	}
	m.ChangePlanItems.WithLabelValues("create").Observe(float64(created))
	m.ChangePlanItems.WithLabelValues("update").Observe(float64(updated))
	m.ChangePlanItems.WithLabelValues("delete").Observe(float64(deleted))
}

// CacheLookup records a hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Purged records removed files.
func (m *Metrics) Purged(n int) {
	if m == nil {
		return
	}
	m.FilesPurged.Add(float64(n))
}

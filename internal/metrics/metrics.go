// Package metrics exposes Prometheus instrumentation for imports and ERP calls.
// Every recorder is a no-op until Init has run.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "stocktransfer_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	erpCalls   *prometheus.CounterVec
	erpLatency *prometheus.HistogramVec

	filesTotal *prometheus.CounterVec
	itemsTotal *prometheus.CounterVec

	pickingsTotal *prometheus.CounterVec
	movesTotal    *prometheus.CounterVec

	runsTotal   *prometheus.CounterVec
	runLatency  *prometheus.HistogramVec
	runsRunning prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		erpCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "erp_calls_total",
				Help: "Total ERP remote calls by model method and result",
			},
			[]string{"method", "result"},
		)
		erpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "erp_call_latency_seconds",
				Help:    "ERP remote call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "result"},
		)

		filesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "files_total",
				Help: "Total files seen by outcome (valid, invalid, ignored)",
			},
			[]string{"outcome"},
		)
		itemsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "items_validated_total",
				Help: "Total rows validated by result",
			},
			[]string{"result"},
		)

		pickingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pickings_total",
				Help: "Total transfer headers by result",
			},
			[]string{"result"},
		)
		movesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "moves_total",
				Help: "Total transfer lines by result",
			},
			[]string{"result"},
		)

		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total import runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Import run duration in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		)
		runsRunning = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "runs_running",
				Help: "Import runs currently holding a slot",
			},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by route and status class",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		prometheus.MustRegister(
			erpCalls,
			erpLatency,
			filesTotal,
			itemsTotal,
			pickingsTotal,
			movesTotal,
			runsTotal,
			runLatency,
			runsRunning,
			httpRequests,
			httpLatency,
		)
	})
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveERPCall records an ERP call. method is "model.method" or "common.login".
func ObserveERPCall(method string, err error, duration time.Duration) {
	result := resultOf(err)
	if erpCalls != nil {
		erpCalls.WithLabelValues(method, result).Inc()
	}
	if erpLatency != nil {
		erpLatency.WithLabelValues(method, result).Observe(duration.Seconds())
	}
}

// IncFile counts a file by outcome.
func IncFile(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if filesTotal != nil {
		filesTotal.WithLabelValues(outcome).Inc()
	}
}

// AddItems counts validated rows.
func AddItems(valid, invalid int) {
	if itemsTotal == nil {
		return
	}
	if valid > 0 {
		itemsTotal.WithLabelValues("valid").Add(float64(valid))
	}
	if invalid > 0 {
		itemsTotal.WithLabelValues("invalid").Add(float64(invalid))
	}
}

// IncPicking counts a transfer header creation attempt.
func IncPicking(err error) {
	if pickingsTotal != nil {
		pickingsTotal.WithLabelValues(resultOf(err)).Inc()
	}
}

// IncMove counts a transfer line creation attempt.
func IncMove(err error) {
	if movesTotal != nil {
		movesTotal.WithLabelValues(resultOf(err)).Inc()
	}
}

// ObserveRun records a finished run.
func ObserveRun(ok bool, duration time.Duration) {
	result := resultSuccess
	if !ok {
		result = resultError
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// RunStarted and RunFinished track runs holding a limiter slot.
func RunStarted() {
	if runsRunning != nil {
		runsRunning.Inc()
	}
}

func RunFinished() {
	if runsRunning != nil {
		runsRunning.Dec()
	}
}

// ObserveHTTP records a served request. route is the matched route pattern,
// not the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/GigaElk/schedfleet/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Execution engine metrics

	ExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schedfleet",
		Name:      "execution_duration_seconds",
		Help:      "Duration of scheduler executions.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedfleet",
		Name:      "executions_total",
		Help:      "Total scheduler executions, by scheduler and outcome.",
	}, []string{"scheduler", "outcome"})

	ExecutionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "schedfleet",
		Name:      "executions_in_flight",
		Help:      "Number of scheduler executions currently running.",
	})

	OverlapsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedfleet",
		Name:      "overlaps_skipped_total",
		Help:      "Trigger fires skipped because the previous run was still active.",
	}, []string{"scheduler"})

	// Health monitor metrics

	HealthStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "schedfleet",
		Name:      "scheduler_health_status",
		Help:      "Scheduler status: 0=stopped 1=starting 2=healthy 3=degraded 4=unhealthy 5=stopping.",
	}, []string{"scheduler"})

	HealthCheckDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schedfleet",
		Name:      "health_check_duration_seconds",
		Help:      "Time taken for one health monitor sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// Recovery engine metrics

	RecoveryActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedfleet",
		Name:      "recovery_actions_total",
		Help:      "Recovery actions attempted, by type and outcome.",
	}, []string{"action", "outcome"})

	RestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedfleet",
		Name:      "restarts_total",
		Help:      "Scheduler restarts, manual and automatic.",
	}, []string{"scheduler"})

	// Fleet lifecycle

	FleetStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "schedfleet",
		Name:      "fleet_start_time_seconds",
		Help:      "Unix timestamp when the fleet started.",
	})

	ShutdownPhasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedfleet",
		Name:      "shutdown_phases_total",
		Help:      "Process shutdown phases executed, by outcome.",
	}, []string{"outcome"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schedfleet",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedfleet",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ExecutionDuration,
		ExecutionsTotal,
		ExecutionsInFlight,
		OverlapsSkippedTotal,
		HealthStatus,
		HealthCheckDuration,
		RecoveryActionsTotal,
		RestartsTotal,
		FleetStartTime,
		ShutdownPhasesTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}

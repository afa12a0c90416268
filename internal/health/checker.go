package health

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// FleetView is satisfied by *fleet.Fleet.
type FleetView interface {
	UnhealthySchedulers() []string
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that the scheduler fleet is in a servable state.
type Checker struct {
	fleet  FleetView
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates a health checker and registers its Prometheus gauge.
func NewChecker(fleet FleetView, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "schedfleet",
		Name:      "health_check_up",
		Help:      "Whether a dependency is healthy. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		fleet:  fleet,
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness inspects the fleet and reports per-check status. The fleet
// counts as down when any registered scheduler is unhealthy.
func (c *Checker) Readiness(_ context.Context) HealthResult {
	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult),
	}

	if unhealthy := c.fleet.UnhealthySchedulers(); len(unhealthy) > 0 {
		c.logger.Warn("fleet health check failed", "unhealthy", unhealthy)
		result.Status = "down"
		result.Checks["fleet"] = CheckResult{
			Status: "down",
			Error:  "unhealthy schedulers: " + strings.Join(unhealthy, ", "),
		}
		c.gauge.WithLabelValues("fleet").Set(0)
	} else {
		result.Checks["fleet"] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues("fleet").Set(1)
	}

	return result
}

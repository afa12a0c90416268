package health_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/GigaElk/schedfleet/internal/health"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeFleet struct {
	unhealthy []string
}

func (f *fakeFleet) UnhealthySchedulers() []string { return f.unhealthy }

func newTestChecker(f health.FleetView) (*health.Checker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	logger := slog.Default()
	return health.NewChecker(f, logger, reg), reg
}

func TestLiveness_AlwaysUp(t *testing.T) {
	c, _ := newTestChecker(&fakeFleet{unhealthy: []string{"reports"}})

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks != nil {
		t.Fatalf("expected no checks, got %v", result.Checks)
	}
}

func TestReadiness_FleetUp(t *testing.T) {
	c, reg := newTestChecker(&fakeFleet{})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	fl, ok := result.Checks["fleet"]
	if !ok {
		t.Fatal("missing fleet check")
	}
	if fl.Status != "up" {
		t.Fatalf("expected fleet up, got %s", fl.Status)
	}

	if gauge := testGauge(t, reg, "schedfleet_health_check_up", "fleet"); gauge != 1 {
		t.Fatalf("expected gauge 1, got %f", gauge)
	}
}

func TestReadiness_UnhealthySchedulers(t *testing.T) {
	c, reg := newTestChecker(&fakeFleet{unhealthy: []string{"reports", "cleanup"}})

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	fl := result.Checks["fleet"]
	if fl.Status != "down" {
		t.Fatalf("expected fleet down, got %s", fl.Status)
	}
	if !strings.Contains(fl.Error, "reports") || !strings.Contains(fl.Error, "cleanup") {
		t.Fatalf("expected unhealthy names in error, got %q", fl.Error)
	}

	if gauge := testGauge(t, reg, "schedfleet_health_check_up", "fleet"); gauge != 0 {
		t.Fatalf("expected gauge 0, got %f", gauge)
	}
}

func testGauge(t *testing.T, reg *prometheus.Registry, name, depLabel string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dependency" && lp.GetValue() == depLabel {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{dependency=%q} not found", name, depLabel)
	return 0
}

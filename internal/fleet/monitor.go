package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/metrics"
)

const healthCheckTimeout = 10 * time.Second

// Monitor periodically samples every enabled running scheduler and
// reclassifies its health. It is the only health-check-outcome writer.
// Nothing a check does is allowed to escape this loop: failures are
// recorded, never propagated.
type Monitor struct {
	reg     *Registry
	engine  *Engine
	profile config.Profile
	logger  *slog.Logger
	journal *journal
	sampler Sampler
}

func newMonitor(reg *Registry, engine *Engine, profile config.Profile, logger *slog.Logger, j *journal, sampler Sampler) *Monitor {
	return &Monitor{
		reg:     reg,
		engine:  engine,
		profile: profile,
		logger:  logger.With("component", "monitor"),
		journal: j,
		sampler: sampler,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.profile.MonitorInterval)
	defer ticker.Stop()

	m.logger.Info("health monitor started", "interval", m.profile.MonitorInterval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor shut down")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	start := time.Now()
	for _, name := range m.reg.Names() {
		m.checkOne(ctx, name)
	}
	metrics.HealthCheckDuration.Observe(time.Since(start).Seconds())
}

func (m *Monitor) checkOne(ctx context.Context, name string) {
	ent, err := m.reg.get(name)
	if err != nil {
		return
	}

	ent.mu.Lock()
	cfg := ent.config
	running := ent.health.Status.Running()
	ent.mu.Unlock()

	if !cfg.Enabled || !running {
		return
	}

	checkStart := time.Now()
	checkErr := m.runCheck(ctx, ent)
	duration := time.Since(checkStart)
	mem, cpu := m.sampler.Sample()

	ent.mu.Lock()
	h := &ent.health
	h.LastHealthCheck = time.Now()
	h.MemoryUsage = mem
	h.CPUUsage = cpu

	if checkErr != nil {
		h.ConsecutiveFailures++
		if h.Status == domain.StatusHealthy {
			m.engine.setStatus(ent, domain.StatusDegraded)
		}
	}
	if h.ConsecutiveFailures >= cfg.ErrorThreshold {
		m.engine.setStatus(ent, domain.StatusUnhealthy)
	} else if mem > cfg.MemoryThreshold && h.Status == domain.StatusHealthy {
		m.engine.setStatus(ent, domain.StatusDegraded)
	}
	status := h.Status
	ent.mu.Unlock()

	ev := domain.Event{
		Type:      domain.EventHealthCheck,
		Scheduler: name,
		Status:    status,
		Duration:  duration,
	}
	if checkErr != nil {
		ev.Message = checkErr.Error()
		m.logger.Warn("health check failed", "scheduler", name, "status", status, "error", checkErr)
	}
	m.journal.event(ev)
}

// runCheck invokes the executor's health-check hook. Panics are
// converted to errors so a misbehaving check cannot kill the loop.
func (m *Monitor) runCheck(ctx context.Context, ent *entry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("health check panicked: %v", p)
		}
	}()
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return ent.executor.HealthCheck(checkCtx)
}

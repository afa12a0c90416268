package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/alert"
	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/metrics"
)

// Recovery inspects degraded and unhealthy schedulers on its own
// interval and applies bounded remedial actions. Actions swallow their
// own errors; anything attempted lands in the action history either way.
type Recovery struct {
	reg     *Registry
	engine  *Engine
	profile config.Profile
	logger  *slog.Logger
	journal *journal

	alerts  alert.Sender // nil disables fail-stop alerting
	alertTo string

	mu      sync.Mutex
	alerted map[string]bool // schedulers already fail-stop alerted
}

func newRecovery(reg *Registry, engine *Engine, profile config.Profile, logger *slog.Logger, j *journal, alerts alert.Sender, alertTo string) *Recovery {
	return &Recovery{
		reg:     reg,
		engine:  engine,
		profile: profile,
		logger:  logger.With("component", "recovery"),
		journal: j,
		alerts:  alerts,
		alertTo: alertTo,
		alerted: make(map[string]bool),
	}
}

func (r *Recovery) Start(ctx context.Context) {
	ticker := time.NewTicker(r.profile.RecoveryInterval)
	defer ticker.Stop()

	r.logger.Info("recovery engine started", "interval", r.profile.RecoveryInterval, "default_max_restarts", r.profile.MaxRestarts)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("recovery engine shut down")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Recovery) sweep(ctx context.Context) {
	for _, name := range r.reg.Names() {
		h, err := r.reg.Health(name)
		if err != nil {
			continue
		}
		if h.Status != domain.StatusDegraded && h.Status != domain.StatusUnhealthy {
			continue
		}
		r.RecoverOne(ctx, name)
	}
}

// RecoverOne applies the remedial-action ladder to one scheduler. Also
// the entry point for manual recovery triggered over the admin surface.
func (r *Recovery) RecoverOne(ctx context.Context, name string) {
	ent, err := r.reg.get(name)
	if err != nil {
		return
	}

	ent.mu.Lock()
	cfg := ent.config
	h := ent.health
	ent.mu.Unlock()

	if h.RestartCount >= cfg.MaxRetries {
		r.failStop(ctx, name, h.RestartCount, cfg.MaxRetries)
		return
	}

	// 1. Memory pressure: cleanup hook plus a GC hint.
	if h.MemoryUsage > cfg.MemoryThreshold {
		r.runAction(domain.RecoveryMemoryCleanup, name,
			fmt.Sprintf("memory usage %d exceeds threshold %d", h.MemoryUsage, cfg.MemoryThreshold),
			func() error {
				if err := ent.executor.Cleanup(ctx); err != nil {
					return err
				}
				debug.FreeOSMemory()
				return nil
			})
	}

	// 2. Failures accumulating but below threshold: clear the counter.
	if h.ConsecutiveFailures > 0 && h.ConsecutiveFailures < cfg.ErrorThreshold {
		r.runAction(domain.RecoveryResetErrors, name,
			fmt.Sprintf("clearing %d consecutive failures", h.ConsecutiveFailures),
			func() error {
				ent.mu.Lock()
				ent.health.ConsecutiveFailures = 0
				if ent.health.Status == domain.StatusDegraded {
					r.engine.setStatus(ent, domain.StatusHealthy)
				}
				ent.mu.Unlock()
				return nil
			})
	}

	// 3. Unhealthy with restart budget remaining: full restart.
	if h.Status == domain.StatusUnhealthy {
		start := time.Now()
		err := r.engine.Restart(ctx, name, "automatic recovery")
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.RecoveryActionsTotal.WithLabelValues(string(domain.RecoveryRestart), outcome).Inc()
		r.logger.Info("recovery restart attempted", "scheduler", name, "outcome", outcome, "duration", time.Since(start))
	}

	// 4. Re-verify dependencies so a still-unmet dependency is surfaced.
	if len(cfg.Dependencies) > 0 {
		r.runAction(domain.RecoveryDependencyCheck, name,
			"re-verifying dependency health",
			func() error { return r.engine.checkDependencies(cfg) })
	}
}

// runAction executes one remedial step, swallows its error, and appends
// the outcome to the action history.
func (r *Recovery) runAction(t domain.RecoveryActionType, name, reason string, fn func() error) {
	start := time.Now()
	err := fn()

	action := domain.RecoveryAction{
		Type:      t,
		Scheduler: name,
		Reason:    reason,
		Success:   err == nil,
		Duration:  time.Since(start),
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		action.Details = err.Error()
		r.logger.Warn("recovery action failed", "scheduler", name, "action", t, "error", err)
	} else {
		r.logger.Info("recovery action applied", "scheduler", name, "action", t, "reason", reason)
	}
	r.journal.action(action)
	metrics.RecoveryActionsTotal.WithLabelValues(string(t), outcome).Inc()
}

// failStop marks the end of automatic recovery for a scheduler: the
// restart budget is spent, so it stays unhealthy pending manual
// intervention. Alerted once per scheduler to avoid a mail storm.
func (r *Recovery) failStop(ctx context.Context, name string, restarts, budget int) {
	r.mu.Lock()
	already := r.alerted[name]
	r.alerted[name] = true
	r.mu.Unlock()
	if already {
		return
	}

	r.logger.Error("scheduler exceeded restart budget, auto-recovery disabled",
		"scheduler", name, "restarts", restarts, "max_restarts", budget)

	if r.alerts == nil || r.alertTo == "" {
		return
	}
	subject := fmt.Sprintf("schedfleet: scheduler %q needs manual intervention", name)
	body := fmt.Sprintf("Scheduler <b>%s</b> was restarted %d times without recovering and is now fail-stopped. It will stay unhealthy until an operator restarts it.", name, restarts)
	if err := r.alerts.Send(ctx, r.alertTo, subject, body); err != nil {
		r.logger.Error("fail-stop alert", "scheduler", name, "error", err)
	}
}

// ClearFailStop re-arms alerting after a manual restart.
func (r *Recovery) ClearFailStop(name string) {
	r.mu.Lock()
	delete(r.alerted, name)
	r.mu.Unlock()
}

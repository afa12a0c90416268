package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/correlation"
	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/metrics"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Engine installs triggers, runs job bodies with a timeout, and is the
// single writer of execution outcomes into health and metrics.
type Engine struct {
	reg     *Registry
	profile config.Profile
	logger  *slog.Logger
	journal *journal
	sampler Sampler

	// root bounds the lifetime of trigger goroutines and executions; it
	// is the fleet's context, never a caller's request context.
	root context.Context
}

func newEngine(root context.Context, reg *Registry, profile config.Profile, logger *slog.Logger, j *journal, sampler Sampler) *Engine {
	return &Engine{
		reg:     reg,
		profile: profile,
		logger:  logger.With("component", "engine"),
		journal: j,
		sampler: sampler,
		root:    root,
	}
}

// Start transitions a scheduler from stopped to healthy: dependency
// check, OnStart hook, trigger installation. Starting an already
// starting/healthy scheduler is a logged no-op.
func (e *Engine) Start(ctx context.Context, name string) error {
	ent, err := e.reg.get(name)
	if err != nil {
		return err
	}

	ent.mu.Lock()
	switch ent.health.Status {
	case domain.StatusStarting, domain.StatusHealthy:
		ent.mu.Unlock()
		e.logger.WarnContext(ctx, "start ignored, scheduler already running", "scheduler", name, "status", ent.health.Status)
		return nil
	case domain.StatusStopping:
		ent.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSchedulerStopping, name)
	}
	e.setStatus(ent, domain.StatusStarting)
	cfg := ent.config
	ent.mu.Unlock()

	if err := e.checkDependencies(cfg); err != nil {
		ent.mu.Lock()
		if ent.health.Status == domain.StatusStarting {
			e.setStatus(ent, domain.StatusUnhealthy)
		}
		ent.mu.Unlock()
		e.journal.event(domain.Event{
			Type:      domain.EventDependencyWait,
			Scheduler: name,
			Status:    domain.StatusUnhealthy,
			Message:   err.Error(),
		})
		e.logger.WarnContext(ctx, "start failed, dependency not healthy", "scheduler", name, "error", err)
		return err
	}

	if err := ent.executor.OnStart(ctx); err != nil {
		ent.mu.Lock()
		if ent.health.Status == domain.StatusStarting {
			e.setStatus(ent, domain.StatusUnhealthy)
		}
		ent.mu.Unlock()
		e.journal.event(domain.Event{
			Type:      domain.EventError,
			Scheduler: name,
			Status:    domain.StatusUnhealthy,
			Message:   "on_start hook: " + err.Error(),
		})
		return fmt.Errorf("scheduler %s on_start hook: %w", name, err)
	}

	trigCtx, cancel := context.WithCancel(e.root)

	ent.mu.Lock()
	// A stop that ran while the hook was outside the lock wins: install
	// nothing and leave the status it wrote in place.
	if ent.health.Status != domain.StatusStarting {
		status := ent.health.Status
		ent.mu.Unlock()
		cancel()
		e.logger.WarnContext(ctx, "start aborted, scheduler stopped while starting", "scheduler", name, "status", status)
		return nil
	}
	ent.stopTrigger = cancel
	ent.health.StartedAt = time.Now()
	ent.health.Uptime = 0
	e.setStatus(ent, domain.StatusHealthy)
	ent.mu.Unlock()

	go e.runTrigger(trigCtx, name, cfg.Schedule)

	e.journal.event(domain.Event{Type: domain.EventStart, Scheduler: name, Status: domain.StatusHealthy})
	e.logger.InfoContext(ctx, "scheduler started", "scheduler", name, "schedule", cfg.Schedule.String(), "priority", cfg.Priority)
	return nil
}

func (e *Engine) checkDependencies(cfg domain.SchedulerConfig) error {
	var unmet []string
	for _, dep := range cfg.Dependencies {
		h, err := e.reg.Health(dep)
		if err != nil || h.Status != domain.StatusHealthy {
			unmet = append(unmet, dep)
		}
	}
	if len(unmet) > 0 {
		return fmt.Errorf("%w: %s requires [%s]", domain.ErrDependencyNotHealthy, cfg.Name, strings.Join(unmet, ", "))
	}
	return nil
}

// timeNow is the cron dispatch clock, replaceable in tests.
var timeNow = time.Now

// runTrigger fires the schedule until its context is canceled. Each fire
// launches on its own goroutine so a slow run never delays the next
// trigger decision (overlaps are skipped in executeOnce instead).
func (e *Engine) runTrigger(ctx context.Context, name string, schedule domain.Schedule) {
	if schedule.IsInterval() {
		ticker := time.NewTicker(schedule.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				go e.executeOnce(name)
			}
		}
	}

	spec, err := cron.ParseStandard(schedule.Expr())
	if err != nil {
		// Expression was validated at registration; this should never happen.
		e.logger.Error("invalid cron expression in installed trigger", "scheduler", name, "expr", schedule.Expr(), "error", err)
		return
	}
	for {
		now := timeNow()
		timer := time.NewTimer(spec.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			go e.executeOnce(name)
		}
	}
}

// executeOnce runs one trigger fire end to end: overlap guard, execution
// context bookkeeping, the timeout race, and the health/metrics update.
func (e *Engine) executeOnce(name string) {
	ent, err := e.reg.get(name)
	if err != nil {
		return // deregistered between fire and run
	}

	ent.mu.Lock()
	if ent.inFlight {
		ent.mu.Unlock()
		metrics.OverlapsSkippedTotal.WithLabelValues(name).Inc()
		e.journal.event(domain.Event{
			Type:      domain.EventSkippedOverlap,
			Scheduler: name,
			Message:   "previous run still active",
		})
		e.logger.Warn("trigger fired while previous run still active, skipping", "scheduler", name)
		return
	}
	cfg := ent.config
	ent.inFlight = true

	runCtx, cancel := context.WithTimeout(e.root, cfg.Timeout)
	corrID := correlation.New()
	runCtx = correlation.WithID(runCtx, corrID)
	exec := domain.NewExecutionContext(uuid.NewString(), name, corrID, cfg.Timeout, cancel)
	ent.active[exec.ID] = exec
	ent.mu.Unlock()

	metrics.ExecutionsInFlight.Inc()
	defer metrics.ExecutionsInFlight.Dec()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("executor panicked: %v", p)
			}
		}()
		done <- ent.executor.Execute(runCtx)
	}()

	var runErr error
	timedOut := false
	select {
	case runErr = <-done:
	case <-runCtx.Done():
		// Timeout or fleet shutdown. Signal the body and stop waiting;
		// cancellation is cooperative, the goroutine may linger.
		exec.Abort()
		timedOut = runCtx.Err() == context.DeadlineExceeded
		if timedOut {
			runErr = fmt.Errorf("%w: %s after %s", domain.ErrExecutionTimeout, name, cfg.Timeout)
		} else {
			runErr = fmt.Errorf("execution aborted: %w", runCtx.Err())
		}
	}
	cancel()
	duration := time.Since(start)

	e.recordOutcome(ent, exec, cfg, duration, runErr, timedOut)
}

// recordOutcome removes the execution context and folds one run result
// into health and metrics. This is the only execution-outcome writer.
func (e *Engine) recordOutcome(ent *entry, exec *domain.ExecutionContext, cfg domain.SchedulerConfig, duration time.Duration, runErr error, timedOut bool) {
	mem, cpu := e.sampler.Sample()
	success := runErr == nil
	now := time.Now()

	ent.mu.Lock()
	delete(ent.active, exec.ID)
	ent.inFlight = false

	m := &ent.metrics
	m.TotalExecutions++
	if success {
		m.TotalSuccesses++
	} else {
		m.TotalFailures++
	}
	if duration < m.MinDuration {
		m.MinDuration = duration
	}
	if duration > m.MaxDuration {
		m.MaxDuration = duration
	}
	m.AvgDuration += (duration - m.AvgDuration) / time.Duration(m.TotalExecutions)
	if mem > m.PeakMemory {
		m.PeakMemory = mem
	}

	h := &ent.health
	rec := domain.ExecutionRecord{Timestamp: now, Duration: duration, Success: success}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	h.LastExecution = &rec
	h.AverageExecutionTime = m.AvgDuration
	h.MemoryUsage = mem
	h.CPUUsage = cpu
	h.ErrorRate = float64(m.TotalFailures) / float64(m.TotalExecutions)
	if success {
		h.ConsecutiveFailures = 0
	} else {
		h.ConsecutiveFailures++
	}

	// Reclassify only while the trigger is installed: a run finishing
	// mid-stop must not flip the scheduler back to healthy.
	if h.Status.Running() {
		switch {
		case h.ConsecutiveFailures >= cfg.ErrorThreshold:
			e.setStatus(ent, domain.StatusUnhealthy)
		case mem > cfg.MemoryThreshold || h.ConsecutiveFailures > 0:
			e.setStatus(ent, domain.StatusDegraded)
		default:
			e.setStatus(ent, domain.StatusHealthy)
		}
	}
	status := h.Status
	ent.mu.Unlock()

	outcome := "success"
	if timedOut {
		outcome = "timeout"
	} else if !success {
		outcome = "failure"
	}
	metrics.ExecutionsTotal.WithLabelValues(cfg.Name, outcome).Inc()
	metrics.ExecutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	ev := domain.Event{
		Type:          domain.EventExecute,
		Scheduler:     cfg.Name,
		CorrelationID: exec.CorrelationID,
		Status:        status,
		Duration:      duration,
	}
	if runErr != nil {
		ev.Type = domain.EventError
		ev.Message = runErr.Error()
		e.logger.Warn("execution failed", "scheduler", cfg.Name, "outcome", outcome, "duration", duration, "error", runErr)
	} else {
		e.logger.Debug("execution completed", "scheduler", cfg.Name, "duration", duration)
	}
	e.journal.event(ev)
}

// Stop removes the trigger, drains in-flight executions bounded by the
// profile's drain timeout, and marks the scheduler stopped. Stopping an
// already stopped/stopping scheduler is a logged no-op.
func (e *Engine) Stop(ctx context.Context, name string) error {
	ent, err := e.reg.get(name)
	if err != nil {
		return err
	}

	ent.mu.Lock()
	switch ent.health.Status {
	case domain.StatusStopped, domain.StatusStopping:
		ent.mu.Unlock()
		e.logger.WarnContext(ctx, "stop ignored, scheduler not running", "scheduler", name, "status", ent.health.Status)
		return nil
	}
	e.setStatus(ent, domain.StatusStopping)
	cancel := ent.stopTrigger
	ent.stopTrigger = nil
	ent.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	deadline := time.Now().Add(e.profile.DrainTimeout)
drain:
	for e.reg.ActiveExecutions(name) > 0 {
		if time.Now().After(deadline) {
			e.logger.WarnContext(ctx, "drain timeout elapsed with executions still in flight",
				"scheduler", name, "in_flight", e.reg.ActiveExecutions(name), "timeout", e.profile.DrainTimeout)
			break
		}
		select {
		case <-ctx.Done():
			e.logger.WarnContext(ctx, "drain interrupted", "scheduler", name, "error", ctx.Err())
			break drain
		case <-time.After(e.profile.DrainPoll):
		}
	}

	ent.mu.Lock()
	if ent.health.Status != domain.StatusStopping {
		// Force-stopped while we were draining; nothing left to do.
		ent.mu.Unlock()
		return nil
	}
	ent.mu.Unlock()

	if err := ent.executor.OnStop(ctx); err != nil {
		e.logger.ErrorContext(ctx, "on_stop hook failed", "scheduler", name, "error", err)
	}

	ent.mu.Lock()
	if !ent.health.StartedAt.IsZero() {
		ent.health.Uptime = time.Since(ent.health.StartedAt)
	}
	e.setStatus(ent, domain.StatusStopped)
	ent.mu.Unlock()

	e.journal.event(domain.Event{Type: domain.EventStop, Scheduler: name, Status: domain.StatusStopped})
	e.logger.InfoContext(ctx, "scheduler stopped", "scheduler", name)
	return nil
}

// ForceStop unschedules the trigger, aborts every in-flight execution,
// and marks the scheduler stopped regardless of drain outcome. The
// underlying job bodies may keep running; cancellation is cooperative.
func (e *Engine) ForceStop(name string) error {
	ent, err := e.reg.get(name)
	if err != nil {
		return err
	}

	ent.mu.Lock()
	if ent.stopTrigger != nil {
		ent.stopTrigger()
		ent.stopTrigger = nil
	}
	aborted := len(ent.active)
	for id, exec := range ent.active {
		exec.Abort()
		delete(ent.active, id)
	}
	ent.inFlight = false
	if !ent.health.StartedAt.IsZero() {
		ent.health.Uptime = time.Since(ent.health.StartedAt)
	}
	e.setStatus(ent, domain.StatusStopped)
	ent.mu.Unlock()

	e.journal.event(domain.Event{
		Type:      domain.EventStop,
		Scheduler: name,
		Status:    domain.StatusStopped,
		Message:   fmt.Sprintf("forced, %d executions aborted", aborted),
	})
	e.logger.Warn("scheduler force-stopped", "scheduler", name, "aborted_executions", aborted)
	return nil
}

// Restart stops the scheduler, waits its restart delay, and starts it
// again. Restart counters move in both health and metrics, and the
// attempt lands in the recovery-action history.
func (e *Engine) Restart(ctx context.Context, name, reason string) error {
	start := time.Now()

	err := e.Stop(ctx, name)
	if err == nil {
		cfg, cfgErr := e.reg.Config(name)
		if cfgErr != nil {
			err = cfgErr
		} else {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(cfg.RestartDelay):
				err = e.Start(ctx, name)
			}
		}
	}

	if ent, getErr := e.reg.get(name); getErr == nil {
		now := time.Now()
		ent.mu.Lock()
		ent.health.RestartCount++
		ent.metrics.RestartCount++
		ent.metrics.LastRestartAt = &now
		ent.mu.Unlock()
	}

	action := domain.RecoveryAction{
		Type:      domain.RecoveryRestart,
		Scheduler: name,
		Reason:    reason,
		Success:   err == nil,
		Duration:  time.Since(start),
	}
	if err != nil {
		action.Details = err.Error()
	}
	e.journal.action(action)
	e.journal.event(domain.Event{Type: domain.EventRestart, Scheduler: name, Message: reason})
	metrics.RestartsTotal.WithLabelValues(name).Inc()

	if err != nil {
		e.logger.WarnContext(ctx, "restart failed", "scheduler", name, "reason", reason, "error", err)
	} else {
		e.logger.InfoContext(ctx, "scheduler restarted", "scheduler", name, "reason", reason)
	}
	return err
}

var statusCodes = map[domain.Status]float64{
	domain.StatusStopped:   0,
	domain.StatusStarting:  1,
	domain.StatusHealthy:   2,
	domain.StatusDegraded:  3,
	domain.StatusUnhealthy: 4,
	domain.StatusStopping:  5,
}

// setStatus writes the status and mirrors it to the gauge. Caller holds
// the entry lock.
func (e *Engine) setStatus(ent *entry, s domain.Status) {
	ent.health.Status = s
	metrics.HealthStatus.WithLabelValues(ent.config.Name).Set(statusCodes[s])
}

// Package fleet keeps a set of independently-defined background
// schedulers running inside one process: registration, trigger
// execution, health classification, automated recovery, and ordered
// startup/shutdown.
package fleet

import (
	"context"
	"log/slog"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/alert"
	"github.com/GigaElk/schedfleet/internal/domain"
)

// Fleet is the explicit context object holding the registry and all
// engines. Collaborators receive it (or a narrowed view of it) instead
// of reaching for package-level state, so tests get isolated instances.
type Fleet struct {
	profile config.Profile
	logger  *slog.Logger

	reg     *Registry
	journal *journal

	engine   *Engine
	monitor  *Monitor
	recovery *Recovery

	cancel context.CancelFunc
}

type Options struct {
	Profile config.Profile
	Logger  *slog.Logger

	// Alerts delivers fail-stop notifications to AlertTo. Both optional.
	Alerts  alert.Sender
	AlertTo string

	// Sampler overrides the default heap sampler.
	Sampler Sampler
}

func New(opts Options) *Fleet {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = runtimeSampler{}
	}

	root, cancel := context.WithCancel(context.Background())

	reg := NewRegistry(opts.Profile)
	j := newJournal(opts.Profile.EventLogSize, opts.Profile.RecoveryHistorySize)
	engine := newEngine(root, reg, opts.Profile, logger, j, sampler)

	return &Fleet{
		profile:  opts.Profile,
		logger:   logger.With("component", "fleet"),
		reg:      reg,
		journal:  j,
		engine:   engine,
		monitor:  newMonitor(reg, engine, opts.Profile, logger, j, sampler),
		recovery: newRecovery(reg, engine, opts.Profile, logger, j, opts.Alerts, opts.AlertTo),
		cancel:   cancel,
	}
}

// Close cancels every trigger goroutine and in-flight execution. The
// fleet is unusable afterward.
func (f *Fleet) Close() { f.cancel() }

// Monitor returns the health monitor loop for the caller to run.
func (f *Fleet) Monitor() *Monitor { return f.monitor }

// RecoveryLoop returns the recovery engine loop, or nil when the profile
// disables automated recovery.
func (f *Fleet) RecoveryLoop() *Recovery {
	if !f.profile.RecoveryEnabled {
		return nil
	}
	return f.recovery
}

func (f *Fleet) Profile() config.Profile { return f.profile }

// Register adds a scheduler definition. The scheduler stays stopped
// until started explicitly or via StartAll.
func (f *Fleet) Register(cfg domain.SchedulerConfig, executor Executor) error {
	return f.reg.Register(cfg, executor)
}

// Deregister stops a scheduler if needed and removes all its state.
func (f *Fleet) Deregister(ctx context.Context, name string) error {
	h, err := f.reg.Health(name)
	if err != nil {
		return err
	}
	if h.Status != domain.StatusStopped {
		if err := f.engine.Stop(ctx, name); err != nil {
			return err
		}
	}
	return f.reg.Deregister(name)
}

func (f *Fleet) StartScheduler(ctx context.Context, name string) error {
	return f.engine.Start(ctx, name)
}

func (f *Fleet) StopScheduler(ctx context.Context, name string) error {
	return f.engine.Stop(ctx, name)
}

// RestartScheduler restarts by name and re-arms fail-stop alerting: a
// manual restart is the intervention the alert asked for.
func (f *Fleet) RestartScheduler(ctx context.Context, name string) error {
	err := f.engine.Restart(ctx, name, "manual restart")
	if err == nil {
		f.recovery.ClearFailStop(name)
	}
	return err
}

// Recover runs the recovery-action ladder for one scheduler on demand,
// regardless of whether the periodic loop is enabled.
func (f *Fleet) Recover(ctx context.Context, name string) error {
	if _, err := f.reg.Health(name); err != nil {
		return err
	}
	f.recovery.RecoverOne(ctx, name)
	return nil
}

func (f *Fleet) Health(name string) (domain.SchedulerHealth, error) { return f.reg.Health(name) }
func (f *Fleet) AllHealth() []domain.SchedulerHealth                { return f.reg.AllHealth() }
func (f *Fleet) Metrics(name string) (domain.SchedulerMetrics, error) {
	return f.reg.Metrics(name)
}
func (f *Fleet) AllMetrics() []domain.SchedulerMetrics { return f.reg.AllMetrics() }

func (f *Fleet) Config(name string) (domain.SchedulerConfig, error) { return f.reg.Config(name) }

// UnhealthySchedulers lists names currently classified unhealthy. Feeds
// the readiness checker.
func (f *Fleet) UnhealthySchedulers() []string {
	var out []string
	for _, h := range f.reg.AllHealth() {
		if h.Status == domain.StatusUnhealthy {
			out = append(out, h.Name)
		}
	}
	return out
}

// Events returns up to n recent lifecycle events, oldest first.
func (f *Fleet) Events(n int) []domain.Event { return f.journal.events.Tail(n) }

// RecoveryHistory returns up to n recent recovery actions, oldest first.
func (f *Fleet) RecoveryHistory(n int) []domain.RecoveryAction { return f.journal.actions.Tail(n) }

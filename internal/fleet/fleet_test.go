package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/domain"
)

// ---- shared test fixtures ----

// testProfile trims every interval so suites finish quickly.
func testProfile() config.Profile {
	p := config.LocalProfile()
	p.MonitorInterval = 50 * time.Millisecond
	p.RecoveryEnabled = true
	p.RecoveryInterval = 50 * time.Millisecond
	p.MaxRestarts = 3
	p.DefaultErrorThreshold = 3
	p.DefaultRestartDelay = 10 * time.Millisecond
	p.StartupMode = config.StartupStaggered
	p.StaggerDelay = 150 * time.Millisecond
	p.StartPhaseTimeout = 2 * time.Second
	p.StopPhaseTimeout = 300 * time.Millisecond
	p.DrainTimeout = 5 * time.Second
	p.DrainPoll = 20 * time.Millisecond
	return p
}

func newTestFleet(profile config.Profile) *Fleet {
	return New(Options{
		Profile: profile,
		Logger:  slog.Default(),
	})
}

// fakeExecutor is a configurable Executor whose hooks record calls.
type fakeExecutor struct {
	mu sync.Mutex

	execute     func(ctx context.Context) error
	onStart     func(ctx context.Context) error
	healthCheck func(ctx context.Context) error
	cleanup     func(ctx context.Context) error

	executions  int
	startTimes  []time.Time
	stopCalls   int
	cleanupRuns int
}

func (f *fakeExecutor) Execute(ctx context.Context) error {
	f.mu.Lock()
	f.executions++
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(ctx)
	}
	return nil
}

func (f *fakeExecutor) OnStart(ctx context.Context) error {
	f.mu.Lock()
	f.startTimes = append(f.startTimes, time.Now())
	f.mu.Unlock()
	if f.onStart != nil {
		return f.onStart(ctx)
	}
	return nil
}

func (f *fakeExecutor) OnStop(context.Context) error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeExecutor) HealthCheck(ctx context.Context) error {
	if f.healthCheck != nil {
		return f.healthCheck(ctx)
	}
	return nil
}

func (f *fakeExecutor) Cleanup(ctx context.Context) error {
	f.mu.Lock()
	f.cleanupRuns++
	f.mu.Unlock()
	if f.cleanup != nil {
		return f.cleanup(ctx)
	}
	return nil
}

func (f *fakeExecutor) executionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executions
}

func (f *fakeExecutor) firstStart() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.startTimes) == 0 {
		return time.Time{}, false
	}
	return f.startTimes[0], true
}

// fakeSampler returns a fixed memory reading.
type fakeSampler struct {
	memory uint64
	cpu    float64
}

func (s fakeSampler) Sample() (uint64, float64) { return s.memory, s.cpu }

// failingExecutor always fails its body.
func failingExecutor() *fakeExecutor {
	return &fakeExecutor{execute: func(context.Context) error { return errors.New("boom") }}
}

// blockingExecutor never returns from Execute.
func blockingExecutor() *fakeExecutor {
	return &fakeExecutor{execute: func(context.Context) error {
		select {} // deliberately ignores cancellation
	}}
}

func intervalConfig(name string, every time.Duration) domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Name:     name,
		Schedule: domain.Every(every),
		Enabled:  true,
		Timeout:  time.Second,
		Priority: 1,
	}
}

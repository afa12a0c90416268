package fleet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GigaElk/schedfleet/config"
)

// StartAll brings every enabled scheduler up. Parallel mode fires all
// starts at once; staggered mode groups them by priority descending and
// waits the profile's stagger delay between phases. Individual start
// failures are logged and never abort the rest of the fleet.
func (f *Fleet) StartAll(ctx context.Context) {
	enabled := f.enabledNames()
	if len(enabled) == 0 {
		f.logger.Info("no enabled schedulers to start")
		return
	}

	if f.profile.StartupMode == config.StartupParallel {
		f.logger.Info("starting all schedulers in parallel", "count", len(enabled))
		f.startPhase(ctx, enabled, f.profile.StartPhaseTimeout)
		return
	}

	phases := f.groupByPriority(enabled, false)
	f.logger.Info("starting schedulers in staggered phases",
		"phases", len(phases), "stagger_delay", f.profile.StaggerDelay)

	for i, phase := range phases {
		f.logger.Info("startup phase", "phase", i+1, "priority", phase.priority, "schedulers", phase.names)
		f.startPhase(ctx, phase.names, f.profile.StartPhaseTimeout)

		if i < len(phases)-1 {
			select {
			case <-ctx.Done():
				f.logger.Warn("staggered startup interrupted", "error", ctx.Err())
				return
			case <-time.After(f.profile.StaggerDelay):
			}
		}
	}
}

// startPhase starts the phase members concurrently, bounded by the phase
// timeout. A phase that does not finish in time is logged and abandoned;
// staggered startup is best-effort, never fatal.
func (f *Fleet) startPhase(ctx context.Context, names []string, timeout time.Duration) {
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := f.engine.Start(ctx, name); err != nil {
				f.logger.Warn("scheduler failed to start", "scheduler", name, "error", err)
			}
		}(name)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		f.logger.Warn("startup phase timed out, proceeding", "schedulers", names, "timeout", timeout)
	}
}

type phase struct {
	priority int
	names    []string
}

// groupByPriority buckets names into ordered phases. Startup runs
// descending (high priority first); shutdown mirrors it ascending, so
// background work stops before the schedulers it feeds.
func (f *Fleet) groupByPriority(names []string, ascending bool) []phase {
	byPriority := make(map[int][]string)
	for _, name := range names {
		cfg, err := f.reg.Config(name)
		if err != nil {
			continue
		}
		byPriority[cfg.Priority] = append(byPriority[cfg.Priority], name)
	}

	priorities := make([]int, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)
	if !ascending {
		for i, j := 0, len(priorities)-1; i < j; i, j = i+1, j-1 {
			priorities[i], priorities[j] = priorities[j], priorities[i]
		}
	}

	phases := make([]phase, 0, len(priorities))
	for _, p := range priorities {
		members := byPriority[p]
		sort.Strings(members)
		phases = append(phases, phase{priority: p, names: members})
	}
	return phases
}

func (f *Fleet) enabledNames() []string {
	var out []string
	for _, name := range f.reg.Names() {
		cfg, err := f.reg.Config(name)
		if err == nil && cfg.Enabled {
			out = append(out, name)
		}
	}
	return out
}

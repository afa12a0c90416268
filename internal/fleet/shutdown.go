package fleet

import (
	"context"
	"sync"

	"github.com/GigaElk/schedfleet/internal/domain"
)

// StopAll tears the fleet down in priority-ordered phases, ascending —
// the mirror of staggered startup, so low-priority background schedulers
// stop first and the critical ones they feed stop last. Every phase
// races each member's cooperative stop against the phase timeout and
// force-kills stragglers, so StopAll always converges to a fully stopped
// fleet.
func (f *Fleet) StopAll(ctx context.Context) {
	var running []string
	for _, h := range f.reg.AllHealth() {
		if h.Status.Running() || h.Status == domain.StatusStarting {
			running = append(running, h.Name)
		}
	}
	if len(running) == 0 {
		f.logger.Info("no running schedulers to stop")
		return
	}

	phases := f.groupByPriority(running, true)
	f.logger.Info("stopping schedulers in phases", "phases", len(phases), "count", len(running))

	for i, ph := range phases {
		f.logger.Info("shutdown phase", "phase", i+1, "priority", ph.priority, "schedulers", ph.names)
		f.stopPhase(ctx, ph.names)
	}
}

// stopPhase stops the members concurrently. A member whose stop does not
// resolve within the phase timeout is force-stopped: trigger removed,
// in-flight executions aborted, status stopped regardless of drain.
func (f *Fleet) stopPhase(ctx context.Context, names []string) {
	phaseCtx, cancel := context.WithTimeout(ctx, f.profile.StopPhaseTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			result := make(chan error, 1)
			go func() { result <- f.engine.Stop(ctx, name) }()

			select {
			case err := <-result:
				if err == nil {
					return
				}
				f.logger.Warn("cooperative stop failed, forcing", "scheduler", name, "error", err)
			case <-phaseCtx.Done():
				f.journal.event(domain.Event{
					Type:      domain.EventError,
					Scheduler: name,
					Message:   domain.ErrPhaseTimeout.Error(),
				})
				f.logger.Warn("stop phase timeout, forcing", "scheduler", name, "timeout", f.profile.StopPhaseTimeout)
			}
			if err := f.engine.ForceStop(name); err != nil {
				f.logger.Error("force stop", "scheduler", name, "error", err)
			}
		}(name)
	}
	wg.Wait()
}

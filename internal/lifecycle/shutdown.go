// Package lifecycle sequences process-wide graceful shutdown: named,
// ordered phases with independent timeouts, where a required phase's
// failure aborts the graceful attempt so the caller can force-terminate.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/metrics"
)

// Phase is one step of the shutdown sequence.
type Phase struct {
	Name     string
	Timeout  time.Duration
	Required bool
	Run      func(ctx context.Context) error
}

// Sequencer runs shutdown phases in the order they were added.
type Sequencer struct {
	logger *slog.Logger
	phases []Phase
}

func NewSequencer(logger *slog.Logger) *Sequencer {
	return &Sequencer{logger: logger.With("component", "shutdown")}
}

func (s *Sequencer) Add(p Phase) *Sequencer {
	s.phases = append(s.phases, p)
	return s
}

// Run executes the phases in order. An optional phase's failure or
// timeout is logged and skipped; a required phase's failure stops the
// sequence and returns the error — the caller is expected to force
// process termination at that point.
func (s *Sequencer) Run(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("graceful shutdown starting", "phases", len(s.phases))

	for i, p := range s.phases {
		phaseStart := time.Now()
		err := s.runPhase(ctx, p)
		duration := time.Since(phaseStart)

		if err == nil {
			metrics.ShutdownPhasesTotal.WithLabelValues("success").Inc()
			s.logger.Info("shutdown phase completed", "phase", p.Name, "index", i+1, "duration", duration)
			continue
		}

		if p.Required {
			metrics.ShutdownPhasesTotal.WithLabelValues("failure").Inc()
			s.logger.Error("required shutdown phase failed, aborting graceful shutdown",
				"phase", p.Name, "duration", duration, "error", err)
			return fmt.Errorf("required phase %s: %w", p.Name, err)
		}

		metrics.ShutdownPhasesTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn("optional shutdown phase failed, skipping", "phase", p.Name, "duration", duration, "error", err)
	}

	s.logger.Info("graceful shutdown complete", "duration", time.Since(start))
	return nil
}

// runPhase races the phase body against its timeout. A timeout is an
// explicit failure, never silently ignored.
func (s *Sequencer) runPhase(ctx context.Context, p Phase) error {
	phaseCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("phase panicked: %v", r)
			}
		}()
		done <- p.Run(phaseCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-phaseCtx.Done():
		return fmt.Errorf("%w: %s after %s", domain.ErrPhaseTimeout, p.Name, p.Timeout)
	}
}

package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrConfigInvalid        = errors.New("scheduler config is invalid")
	ErrDuplicateScheduler   = errors.New("scheduler with this name already registered")
	ErrSchedulerNotFound    = errors.New("scheduler not found")
	ErrSchedulerStopping    = errors.New("scheduler is stopping")
	ErrDependencyNotHealthy = errors.New("scheduler dependency is not healthy")
	ErrExecutionTimeout     = errors.New("execution timed out")
	ErrPhaseTimeout         = errors.New("phase timed out")
)

type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarting  Status = "starting"
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusStopping  Status = "stopping"
)

// Running reports whether the scheduler has an installed trigger.
func (s Status) Running() bool {
	switch s {
	case StatusHealthy, StatusDegraded, StatusUnhealthy:
		return true
	}
	return false
}

const MinInterval = time.Second

type scheduleKind int

const (
	scheduleNone scheduleKind = iota
	scheduleCron
	scheduleInterval
)

// Schedule is a tagged variant: either a cron expression or a fixed
// interval, never both. The zero value is invalid and rejected at
// registration, so a config cannot carry conflicting schedule kinds.
type Schedule struct {
	kind     scheduleKind
	expr     string
	interval time.Duration
}

// Cron builds a cron-expression schedule (standard 5-field syntax).
func Cron(expr string) Schedule {
	return Schedule{kind: scheduleCron, expr: expr}
}

// Every builds a fixed-interval schedule.
func Every(interval time.Duration) Schedule {
	return Schedule{kind: scheduleInterval, interval: interval}
}

func (s Schedule) IsCron() bool            { return s.kind == scheduleCron }
func (s Schedule) IsInterval() bool        { return s.kind == scheduleInterval }
func (s Schedule) Expr() string            { return s.expr }
func (s Schedule) Interval() time.Duration { return s.interval }

func (s Schedule) String() string {
	switch s.kind {
	case scheduleCron:
		return fmt.Sprintf("cron(%s)", s.expr)
	case scheduleInterval:
		return fmt.Sprintf("every(%s)", s.interval)
	default:
		return "none"
	}
}

func (s Schedule) validate() error {
	switch s.kind {
	case scheduleCron:
		if _, err := cron.ParseStandard(s.expr); err != nil {
			return fmt.Errorf("%w: cron expression %q: %v", ErrConfigInvalid, s.expr, err)
		}
	case scheduleInterval:
		if s.interval < MinInterval {
			return fmt.Errorf("%w: interval %s below minimum %s", ErrConfigInvalid, s.interval, MinInterval)
		}
	default:
		return fmt.Errorf("%w: schedule is required", ErrConfigInvalid)
	}
	return nil
}

// SchedulerConfig describes one named background scheduler: when it
// fires, how long a run may take, and how failures are policed.
type SchedulerConfig struct {
	Name            string
	Schedule        Schedule
	Enabled         bool
	MaxRetries      int           // recovery restart budget before fail-stop; 0 means profile default
	Timeout         time.Duration // per-run execution timeout
	Priority        int           // higher starts earlier; lower stops earlier
	RestartDelay    time.Duration
	MemoryThreshold uint64 // bytes; 0 means profile default
	ErrorThreshold  int    // consecutive failures before unhealthy; 0 means profile default
	Dependencies    []string
}

func (c *SchedulerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrConfigInvalid)
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	if c.Timeout < MinInterval {
		return fmt.Errorf("%w: timeout %s below minimum %s", ErrConfigInvalid, c.Timeout, MinInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0", ErrConfigInvalid)
	}
	if c.ErrorThreshold < 0 {
		return fmt.Errorf("%w: error threshold must be >= 0", ErrConfigInvalid)
	}
	for _, dep := range c.Dependencies {
		if dep == c.Name {
			return fmt.Errorf("%w: scheduler cannot depend on itself", ErrConfigInvalid)
		}
	}
	return nil
}

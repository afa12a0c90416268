package domain

import (
	"context"
	"math"
	"time"
)

// ExecutionRecord captures the outcome of the most recent run.
type ExecutionRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// SchedulerHealth is the current operational classification of one
// scheduler. Written only by the execution engine and the health
// monitor; everyone else reads.
type SchedulerHealth struct {
	Name                 string           `json:"name"`
	Status               Status           `json:"status"`
	LastHealthCheck      time.Time        `json:"last_health_check"`
	ConsecutiveFailures  int              `json:"consecutive_failures"`
	MemoryUsage          uint64           `json:"memory_usage"`
	CPUUsage             float64          `json:"cpu_usage"`
	ErrorRate            float64          `json:"error_rate"`
	AverageExecutionTime time.Duration    `json:"average_execution_time"`
	LastExecution        *ExecutionRecord `json:"last_execution,omitempty"`
	StartedAt            time.Time        `json:"started_at"`
	Uptime               time.Duration    `json:"uptime"`
	RestartCount         int              `json:"restart_count"`
}

// MinDurationUnset is the sentinel for "no execution recorded yet".
const MinDurationUnset = time.Duration(math.MaxInt64)

// SchedulerMetrics holds cumulative totals for one scheduler. Monotonic
// within a registration lifetime; discarded on deregistration.
type SchedulerMetrics struct {
	Name            string        `json:"name"`
	TotalExecutions uint64        `json:"total_executions"`
	TotalSuccesses  uint64        `json:"total_successes"`
	TotalFailures   uint64        `json:"total_failures"`
	MinDuration     time.Duration `json:"min_duration"`
	AvgDuration     time.Duration `json:"avg_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	PeakMemory      uint64        `json:"peak_memory"`
	RestartCount    int           `json:"restart_count"`
	LastRestartAt   *time.Time    `json:"last_restart_at,omitempty"`
}

// ExecutionContext is the ephemeral record of one in-flight run. It is
// inserted into the active-executions map when a trigger fires and must
// be removed on every exit path.
type ExecutionContext struct {
	ID            string
	Scheduler     string
	CorrelationID string
	StartedAt     time.Time
	Timeout       time.Duration
	Attempt       int

	cancel context.CancelFunc
}

func NewExecutionContext(id, scheduler, correlationID string, timeout time.Duration, cancel context.CancelFunc) *ExecutionContext {
	return &ExecutionContext{
		ID:            id,
		Scheduler:     scheduler,
		CorrelationID: correlationID,
		StartedAt:     time.Now(),
		Timeout:       timeout,
		cancel:        cancel,
	}
}

// Abort cancels the run's context. Safe to call more than once.
func (e *ExecutionContext) Abort() {
	if e.cancel != nil {
		e.cancel()
	}
}

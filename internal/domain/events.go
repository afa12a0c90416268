package domain

import "time"

// EventType classifies lifecycle events. Events exist for observability
// only; no control decision ever reads them back.
type EventType string

const (
	EventStart          EventType = "start"
	EventStop           EventType = "stop"
	EventRestart        EventType = "restart"
	EventError          EventType = "error"
	EventHealthCheck    EventType = "health_check"
	EventExecute        EventType = "execute"
	EventDependencyWait EventType = "dependency_wait"
	EventSkippedOverlap EventType = "skipped_overlap"
)

type Event struct {
	Type          EventType     `json:"type"`
	Scheduler     string        `json:"scheduler"`
	Timestamp     time.Time     `json:"timestamp"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Status        Status        `json:"status,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Message       string        `json:"message,omitempty"`
}

type RecoveryActionType string

const (
	RecoveryMemoryCleanup   RecoveryActionType = "memory_cleanup"
	RecoveryResetErrors     RecoveryActionType = "reset_errors"
	RecoveryRestart         RecoveryActionType = "restart"
	RecoveryDependencyCheck RecoveryActionType = "dependency_check"
)

// RecoveryAction is an immutable log entry for one attempted remedial
// operation, successful or not.
type RecoveryAction struct {
	Type      RecoveryActionType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Scheduler string             `json:"scheduler"`
	Reason    string             `json:"reason"`
	Success   bool               `json:"success"`
	Duration  time.Duration      `json:"duration"`
	Details   string             `json:"details,omitempty"`
}

package fleet

import "context"

// Executor is the capability contract a job owner implements. Execute is
// the job body; the lifecycle hooks are optional in spirit — embed
// NoopHooks to get no-op defaults so the engine always calls a method
// instead of probing for its presence.
type Executor interface {
	// Execute runs one scheduled pass. The context carries the run's
	// timeout and cancellation; implementations are expected to observe
	// it promptly, though the engine cannot force a runaway body to halt.
	Execute(ctx context.Context) error

	// OnStart runs once before the trigger is installed.
	OnStart(ctx context.Context) error
	// OnStop runs once after the trigger is removed and in-flight
	// executions have drained.
	OnStop(ctx context.Context) error
	// HealthCheck is invoked by the health monitor. A non-nil error
	// counts as a failed check.
	HealthCheck(ctx context.Context) error
	// Cleanup is invoked by the recovery engine on memory pressure.
	Cleanup(ctx context.Context) error
}

// NoopHooks provides default no-op implementations for every optional
// Executor hook.
type NoopHooks struct{}

func (NoopHooks) OnStart(context.Context) error     { return nil }
func (NoopHooks) OnStop(context.Context) error      { return nil }
func (NoopHooks) HealthCheck(context.Context) error { return nil }
func (NoopHooks) Cleanup(context.Context) error     { return nil }

// ExecutorFunc adapts a bare function to an Executor with no-op hooks.
type ExecutorFunc func(ctx context.Context) error

func (f ExecutorFunc) Execute(ctx context.Context) error { return f(ctx) }
func (ExecutorFunc) OnStart(context.Context) error       { return nil }
func (ExecutorFunc) OnStop(context.Context) error        { return nil }
func (ExecutorFunc) HealthCheck(context.Context) error   { return nil }
func (ExecutorFunc) Cleanup(context.Context) error       { return nil }

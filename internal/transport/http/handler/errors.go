package handler

const (
	errInternalServer       = "Internal server error"
	errSchedulerNotFound    = "Scheduler not found"
	errDependencyNotHealthy = "Scheduler dependency is not healthy"
	errInvalidSnapshot      = "Snapshot payload is invalid"
	errSchedulerStopping    = "Scheduler is stopping"
)

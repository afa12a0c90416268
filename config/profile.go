package config

import "time"

type StartupMode string

const (
	StartupParallel  StartupMode = "parallel"
	StartupStaggered StartupMode = "staggered"
)

// Profile carries every platform-tunable knob of the fleet core. The
// core never probes its environment; deployments pick a profile and the
// engines read their intervals and thresholds from it.
type Profile struct {
	Name string

	MonitorInterval time.Duration

	RecoveryEnabled  bool
	RecoveryInterval time.Duration
	MaxRestarts      int

	DefaultMemoryThreshold uint64 // bytes
	DefaultErrorThreshold  int
	DefaultRestartDelay    time.Duration

	StartupMode         StartupMode
	StaggerDelay        time.Duration
	StartPhaseTimeout   time.Duration
	StopPhaseTimeout    time.Duration

	DrainTimeout time.Duration
	DrainPoll    time.Duration

	EventLogSize        int
	RecoveryHistorySize int
}

// LocalProfile favors fast iteration: infrequent monitoring, recovery
// disabled so failures stay visible, everything starts at once.
func LocalProfile() Profile {
	return Profile{
		Name:                   "local",
		MonitorInterval:        60 * time.Second,
		RecoveryEnabled:        false,
		RecoveryInterval:       5 * time.Minute,
		MaxRestarts:            3,
		DefaultMemoryThreshold: 512 << 20,
		DefaultErrorThreshold:  5,
		DefaultRestartDelay:    5 * time.Second,
		StartupMode:            StartupParallel,
		StaggerDelay:           2 * time.Second,
		StartPhaseTimeout:      30 * time.Second,
		StopPhaseTimeout:       30 * time.Second,
		DrainTimeout:           30 * time.Second,
		DrainPoll:              time.Second,
		EventLogSize:           200,
		RecoveryHistorySize:    100,
	}
}

// ConstrainedProfile suits memory-constrained hosting: tighter memory
// thresholds, more frequent monitoring, staggered startup to avoid
// cold-start spikes.
func ConstrainedProfile() Profile {
	p := StandardProfile()
	p.Name = "constrained"
	p.MonitorInterval = 15 * time.Second
	p.DefaultMemoryThreshold = 128 << 20
	p.StaggerDelay = 3 * time.Second
	return p
}

func StandardProfile() Profile {
	return Profile{
		Name:                   "standard",
		MonitorInterval:        30 * time.Second,
		RecoveryEnabled:        true,
		RecoveryInterval:       2 * time.Minute,
		MaxRestarts:            3,
		DefaultMemoryThreshold: 256 << 20,
		DefaultErrorThreshold:  5,
		DefaultRestartDelay:    5 * time.Second,
		StartupMode:            StartupStaggered,
		StaggerDelay:           2 * time.Second,
		StartPhaseTimeout:      30 * time.Second,
		StopPhaseTimeout:       30 * time.Second,
		DrainTimeout:           30 * time.Second,
		DrainPoll:              time.Second,
		EventLogSize:           200,
		RecoveryHistorySize:    100,
	}
}

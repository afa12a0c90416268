package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GigaElk/schedfleet/config"
	"github.com/GigaElk/schedfleet/internal/domain"
)

// entry bundles everything the registry tracks for one scheduler name.
// Config, health, metrics and the active-execution map are created
// together at registration and removed together at deregistration. The
// per-entry mutex is the synchronization discipline for all of them.
type entry struct {
	mu       sync.Mutex
	config   domain.SchedulerConfig
	executor Executor
	health   domain.SchedulerHealth
	metrics  domain.SchedulerMetrics

	active   map[string]*domain.ExecutionContext
	inFlight bool

	stopTrigger func() // nil when no trigger is installed
}

// Registry is the single source of truth for scheduler state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	profile config.Profile
}

func NewRegistry(profile config.Profile) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		profile: profile,
	}
}

// Register validates cfg, applies profile defaults for unset thresholds,
// and installs the scheduler with health=stopped and zeroed metrics.
func (r *Registry) Register(cfg domain.SchedulerConfig, executor Executor) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if executor == nil {
		return fmt.Errorf("%w: executor is required", domain.ErrConfigInvalid)
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = r.profile.MaxRestarts
	}
	if cfg.ErrorThreshold == 0 {
		cfg.ErrorThreshold = r.profile.DefaultErrorThreshold
	}
	if cfg.MemoryThreshold == 0 {
		cfg.MemoryThreshold = r.profile.DefaultMemoryThreshold
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = r.profile.DefaultRestartDelay
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateScheduler, cfg.Name)
	}

	r.entries[cfg.Name] = &entry{
		config:   cfg,
		executor: executor,
		health: domain.SchedulerHealth{
			Name:   cfg.Name,
			Status: domain.StatusStopped,
		},
		metrics: domain.SchedulerMetrics{
			Name:        cfg.Name,
			MinDuration: domain.MinDurationUnset,
		},
		active: make(map[string]*domain.ExecutionContext),
	}
	return nil
}

// Deregister removes a scheduler and all its state. The caller must have
// stopped it first.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSchedulerNotFound, name)
	}
	delete(r.entries, name)
	return nil
}

func (r *Registry) get(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchedulerNotFound, name)
	}
	return e, nil
}

// Names returns all registered scheduler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health returns a copy of one scheduler's health record with uptime
// materialized.
func (r *Registry) Health(name string) (domain.SchedulerHealth, error) {
	e, err := r.get(name)
	if err != nil {
		return domain.SchedulerHealth{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return healthCopy(e), nil
}

// AllHealth returns copies of every scheduler's health, sorted by name.
func (r *Registry) AllHealth() []domain.SchedulerHealth {
	out := make([]domain.SchedulerHealth, 0)
	for _, name := range r.Names() {
		if h, err := r.Health(name); err == nil {
			out = append(out, h)
		}
	}
	return out
}

// Metrics returns a copy of one scheduler's cumulative metrics.
func (r *Registry) Metrics(name string) (domain.SchedulerMetrics, error) {
	e, err := r.get(name)
	if err != nil {
		return domain.SchedulerMetrics{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics, nil
}

// AllMetrics returns copies of every scheduler's metrics, sorted by name.
func (r *Registry) AllMetrics() []domain.SchedulerMetrics {
	out := make([]domain.SchedulerMetrics, 0)
	for _, name := range r.Names() {
		if m, err := r.Metrics(name); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Config returns a copy of one scheduler's configuration.
func (r *Registry) Config(name string) (domain.SchedulerConfig, error) {
	e, err := r.get(name)
	if err != nil {
		return domain.SchedulerConfig{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config, nil
}

// ActiveExecutions reports how many runs are currently in flight for one
// scheduler. Zero for unknown names.
func (r *Registry) ActiveExecutions(name string) int {
	e, err := r.get(name)
	if err != nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func healthCopy(e *entry) domain.SchedulerHealth {
	h := e.health
	if h.Status.Running() && !h.StartedAt.IsZero() {
		h.Uptime = time.Since(h.StartedAt)
	}
	if h.LastExecution != nil {
		rec := *h.LastExecution
		h.LastExecution = &rec
	}
	return h
}

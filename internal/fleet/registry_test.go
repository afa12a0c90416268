package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GigaElk/schedfleet/internal/domain"
)

func TestRegister_InitialStateIsStoppedAndZeroed(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	if err := f.Register(intervalConfig("reports", time.Second), &fakeExecutor{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	h, err := f.Health("reports")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Status != domain.StatusStopped {
		t.Errorf("status = %s, want stopped", h.Status)
	}
	if h.ConsecutiveFailures != 0 || h.RestartCount != 0 || h.ErrorRate != 0 {
		t.Errorf("expected zeroed counters, got %+v", h)
	}

	m, err := f.Metrics("reports")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.TotalExecutions != 0 || m.TotalSuccesses != 0 || m.TotalFailures != 0 {
		t.Errorf("expected zeroed totals, got %+v", m)
	}
	if m.MinDuration != domain.MinDurationUnset {
		t.Errorf("min duration = %v, want unset sentinel", m.MinDuration)
	}
}

func TestRegister_DuplicateNameFails(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	if err := f.Register(intervalConfig("reports", time.Second), &fakeExecutor{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := f.Register(intervalConfig("reports", time.Minute), &fakeExecutor{})
	if !errors.Is(err, domain.ErrDuplicateScheduler) {
		t.Fatalf("err = %v, want ErrDuplicateScheduler", err)
	}
}

func TestRegister_InvalidConfigs(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	cases := []struct {
		name string
		cfg  domain.SchedulerConfig
	}{
		{"missing schedule", domain.SchedulerConfig{Name: "a", Timeout: time.Second}},
		{"interval too short", domain.SchedulerConfig{Name: "b", Schedule: domain.Every(100 * time.Millisecond), Timeout: time.Second}},
		{"bad cron expression", domain.SchedulerConfig{Name: "c", Schedule: domain.Cron("not a cron"), Timeout: time.Second}},
		{"timeout too short", domain.SchedulerConfig{Name: "d", Schedule: domain.Every(time.Second), Timeout: 10 * time.Millisecond}},
		{"negative retries", domain.SchedulerConfig{Name: "e", Schedule: domain.Every(time.Second), Timeout: time.Second, MaxRetries: -1}},
		{"self dependency", domain.SchedulerConfig{Name: "f", Schedule: domain.Every(time.Second), Timeout: time.Second, Dependencies: []string{"f"}}},
		{"missing name", domain.SchedulerConfig{Schedule: domain.Every(time.Second), Timeout: time.Second}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.Register(tc.cfg, &fakeExecutor{}); !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestRegister_AppliesProfileDefaults(t *testing.T) {
	p := testProfile()
	f := newTestFleet(p)
	defer f.Close()

	if err := f.Register(intervalConfig("reports", time.Second), &fakeExecutor{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	cfg, err := f.Config("reports")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.MaxRetries != p.MaxRestarts {
		t.Errorf("max retries = %d, want profile default %d", cfg.MaxRetries, p.MaxRestarts)
	}
	if cfg.ErrorThreshold != p.DefaultErrorThreshold {
		t.Errorf("error threshold = %d, want profile default %d", cfg.ErrorThreshold, p.DefaultErrorThreshold)
	}
	if cfg.MemoryThreshold != p.DefaultMemoryThreshold {
		t.Errorf("memory threshold = %d, want profile default %d", cfg.MemoryThreshold, p.DefaultMemoryThreshold)
	}
	if cfg.RestartDelay != p.DefaultRestartDelay {
		t.Errorf("restart delay = %v, want profile default %v", cfg.RestartDelay, p.DefaultRestartDelay)
	}
}

func TestDeregister_RemovesAllState(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	if err := f.Register(intervalConfig("reports", time.Second), &fakeExecutor{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.Deregister(context.Background(), "reports"); err != nil {
		t.Fatalf("deregister: %v", err)
	}

	if _, err := f.Health("reports"); !errors.Is(err, domain.ErrSchedulerNotFound) {
		t.Errorf("health err = %v, want ErrSchedulerNotFound", err)
	}
	if _, err := f.Metrics("reports"); !errors.Is(err, domain.ErrSchedulerNotFound) {
		t.Errorf("metrics err = %v, want ErrSchedulerNotFound", err)
	}
	if n := f.reg.ActiveExecutions("reports"); n != 0 {
		t.Errorf("active executions = %d, want 0", n)
	}
}

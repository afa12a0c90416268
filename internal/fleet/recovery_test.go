package fleet

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/GigaElk/schedfleet/internal/domain"
)

// fakeAlertSender records every alert it is asked to deliver.
type fakeAlertSender struct {
	mu   sync.Mutex
	sent []string // subjects
}

func (s *fakeAlertSender) Send(_ context.Context, _, subject, _ string) error {
	s.mu.Lock()
	s.sent = append(s.sent, subject)
	s.mu.Unlock()
	return nil
}

func (s *fakeAlertSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func hasAction(f *Fleet, scheduler string, t domain.RecoveryActionType) bool {
	for _, a := range f.RecoveryHistory(100) {
		if a.Scheduler == scheduler && a.Type == t {
			return true
		}
	}
	return false
}

func TestRecover_ResetsFailuresBelowThreshold(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	if err := f.Register(intervalConfig("reports", time.Hour), &fakeExecutor{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "reports"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ent, _ := f.reg.get("reports")
	ent.mu.Lock()
	ent.health.ConsecutiveFailures = 2 // below the threshold of 3
	f.engine.setStatus(ent, domain.StatusDegraded)
	ent.mu.Unlock()

	f.recovery.RecoverOne(context.Background(), "reports")

	h, _ := f.Health("reports")
	if h.ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d, want 0 after reset", h.ConsecutiveFailures)
	}
	if h.Status != domain.StatusHealthy {
		t.Errorf("status = %s, want healthy after reset", h.Status)
	}
	if !hasAction(f, "reports", domain.RecoveryResetErrors) {
		t.Error("expected a reset_errors action in the history")
	}
}

func TestRecover_RestartsUnhealthyScheduler(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	exec := failingExecutor()
	if err := f.Register(intervalConfig("reports", time.Hour), exec); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "reports"); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		f.engine.executeOnce("reports")
	}
	if h, _ := f.Health("reports"); h.Status != domain.StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy before recovery", h.Status)
	}

	f.recovery.RecoverOne(context.Background(), "reports")

	h, _ := f.Health("reports")
	if h.Status != domain.StatusHealthy {
		t.Errorf("status = %s, want healthy after restart", h.Status)
	}
	if h.RestartCount != 1 {
		t.Errorf("restart count = %d, want 1", h.RestartCount)
	}
	if !hasAction(f, "reports", domain.RecoveryRestart) {
		t.Error("expected a restart action in the history")
	}
}

func TestRecover_MemoryCleanupRunsHook(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	exec := &fakeExecutor{}
	cfg := intervalConfig("reports", time.Hour)
	cfg.MemoryThreshold = 100
	if err := f.Register(cfg, exec); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "reports"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ent, _ := f.reg.get("reports")
	ent.mu.Lock()
	ent.health.MemoryUsage = 1000
	f.engine.setStatus(ent, domain.StatusDegraded)
	ent.mu.Unlock()

	f.recovery.RecoverOne(context.Background(), "reports")

	exec.mu.Lock()
	cleanups := exec.cleanupRuns
	exec.mu.Unlock()
	if cleanups != 1 {
		t.Errorf("cleanup hook ran %d times, want 1", cleanups)
	}
	if !hasAction(f, "reports", domain.RecoveryMemoryCleanup) {
		t.Error("expected a memory_cleanup action in the history")
	}
}

func TestRecover_DependencyCheckRecorded(t *testing.T) {
	f := newTestFleet(testProfile())
	defer f.Close()

	if err := f.Register(intervalConfig("base", time.Hour), &fakeExecutor{}); err != nil {
		t.Fatalf("register base: %v", err)
	}
	cfg := intervalConfig("worker", time.Hour)
	cfg.Dependencies = []string{"base"}
	if err := f.Register(cfg, &fakeExecutor{}); err != nil {
		t.Fatalf("register worker: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "base"); err != nil {
		t.Fatalf("start base: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "worker"); err != nil {
		t.Fatalf("start worker: %v", err)
	}

	ent, _ := f.reg.get("worker")
	ent.mu.Lock()
	f.engine.setStatus(ent, domain.StatusDegraded)
	ent.mu.Unlock()

	f.recovery.RecoverOne(context.Background(), "worker")

	if !hasAction(f, "worker", domain.RecoveryDependencyCheck) {
		t.Error("expected a dependency_check action in the history")
	}
}

func TestRecover_PerSchedulerRestartBudget(t *testing.T) {
	sender := &fakeAlertSender{}
	f := New(Options{
		Profile: testProfile(), // profile default MaxRestarts 3
		Logger:  slog.Default(),
		Alerts:  sender,
		AlertTo: "ops@example.com",
	})
	defer f.Close()

	cfg := intervalConfig("reports", time.Hour)
	cfg.MaxRetries = 1 // tighter than the profile default
	if err := f.Register(cfg, &fakeExecutor{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "reports"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ent, _ := f.reg.get("reports")
	ent.mu.Lock()
	ent.health.RestartCount = 1
	f.engine.setStatus(ent, domain.StatusUnhealthy)
	ent.mu.Unlock()

	f.recovery.RecoverOne(context.Background(), "reports")

	h, _ := f.Health("reports")
	if h.RestartCount != 1 {
		t.Errorf("restart count = %d, want unchanged 1 (scheduler budget exhausted)", h.RestartCount)
	}
	if h.Status != domain.StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy while fail-stopped", h.Status)
	}
	if got := sender.count(); got != 1 {
		t.Errorf("alerts sent = %d, want 1", got)
	}
}

func TestRecover_FailStopAlertsExactlyOnce(t *testing.T) {
	sender := &fakeAlertSender{}
	f := New(Options{
		Profile: testProfile(), // MaxRestarts 3
		Logger:  slog.Default(),
		Alerts:  sender,
		AlertTo: "ops@example.com",
	})
	defer f.Close()

	if err := f.Register(intervalConfig("reports", time.Hour), &fakeExecutor{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.StartScheduler(context.Background(), "reports"); err != nil {
		t.Fatalf("start: %v", err)
	}

	ent, _ := f.reg.get("reports")
	ent.mu.Lock()
	ent.health.RestartCount = 3
	f.engine.setStatus(ent, domain.StatusUnhealthy)
	ent.mu.Unlock()

	before := len(f.RecoveryHistory(100))
	f.recovery.RecoverOne(context.Background(), "reports")
	f.recovery.RecoverOne(context.Background(), "reports")

	if got := sender.count(); got != 1 {
		t.Errorf("alerts sent = %d, want exactly 1", got)
	}
	if got := len(f.RecoveryHistory(100)); got != before {
		t.Errorf("recovery actions appended = %d, want 0 once fail-stopped", got-before)
	}
	if h, _ := f.Health("reports"); h.Status != domain.StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy while fail-stopped", h.Status)
	}

	// A manual restart re-arms alerting.
	f.recovery.ClearFailStop("reports")
	f.recovery.RecoverOne(context.Background(), "reports")
	if got := sender.count(); got != 2 {
		t.Errorf("alerts sent after re-arm = %d, want 2", got)
	}
}

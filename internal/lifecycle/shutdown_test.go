package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/GigaElk/schedfleet/internal/domain"
)

func TestRun_PhasesExecuteInOrder(t *testing.T) {
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	seq := NewSequencer(slog.Default()).
		Add(Phase{Name: "drain", Timeout: time.Second, Run: record("drain")}).
		Add(Phase{Name: "stop", Timeout: time.Second, Required: true, Run: record("stop")}).
		Add(Phase{Name: "cleanup", Timeout: time.Second, Run: record("cleanup")})

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"drain", "stop", "cleanup"}
	if len(order) != len(want) {
		t.Fatalf("ran %d phases, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("phase %d = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestRun_OptionalFailureIsSkipped(t *testing.T) {
	ranLater := false
	seq := NewSequencer(slog.Default()).
		Add(Phase{Name: "flaky", Timeout: time.Second, Run: func(context.Context) error {
			return errors.New("no luck")
		}}).
		Add(Phase{Name: "later", Timeout: time.Second, Run: func(context.Context) error {
			ranLater = true
			return nil
		}})

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ranLater {
		t.Error("phase after an optional failure did not run")
	}
}

func TestRun_RequiredFailureAborts(t *testing.T) {
	ranLater := false
	bodyErr := errors.New("stuck")
	seq := NewSequencer(slog.Default()).
		Add(Phase{Name: "stop", Timeout: time.Second, Required: true, Run: func(context.Context) error {
			return bodyErr
		}}).
		Add(Phase{Name: "later", Timeout: time.Second, Run: func(context.Context) error {
			ranLater = true
			return nil
		}})

	err := seq.Run(context.Background())
	if !errors.Is(err, bodyErr) {
		t.Errorf("run error = %v, want wrapped %v", err, bodyErr)
	}
	if ranLater {
		t.Error("phases after a required failure must not run")
	}
}

func TestRun_TimeoutIsAFailure(t *testing.T) {
	seq := NewSequencer(slog.Default()).
		Add(Phase{Name: "hang", Timeout: 50 * time.Millisecond, Required: true, Run: func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(time.Hour)
			return nil
		}})

	err := seq.Run(context.Background())
	if !errors.Is(err, domain.ErrPhaseTimeout) {
		t.Errorf("run error = %v, want ErrPhaseTimeout", err)
	}
}

func TestRun_PanickingPhaseIsContained(t *testing.T) {
	seq := NewSequencer(slog.Default()).
		Add(Phase{Name: "explode", Timeout: time.Second, Run: func(context.Context) error {
			panic("phase exploded")
		}}).
		Add(Phase{Name: "later", Timeout: time.Second, Run: func(context.Context) error {
			return nil
		}})

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("run: %v (panic should be an optional-phase failure)", err)
	}
}

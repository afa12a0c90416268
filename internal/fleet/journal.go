package fleet

import (
	"time"

	"github.com/GigaElk/schedfleet/internal/domain"
	"github.com/GigaElk/schedfleet/internal/ring"
)

// journal owns the bounded observability logs: lifecycle events and
// recovery-action history. Nothing in the fleet reads them back for
// control decisions.
type journal struct {
	events  *ring.Buffer[domain.Event]
	actions *ring.Buffer[domain.RecoveryAction]
}

func newJournal(eventCap, actionCap int) *journal {
	return &journal{
		events:  ring.New[domain.Event](eventCap),
		actions: ring.New[domain.RecoveryAction](actionCap),
	}
}

func (j *journal) event(ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	j.events.Append(ev)
}

func (j *journal) action(a domain.RecoveryAction) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	j.actions.Append(a)
}

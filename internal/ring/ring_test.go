package ring_test

import (
	"testing"

	"github.com/GigaElk/schedfleet/internal/ring"
)

func TestAppend_BelowCapacity(t *testing.T) {
	b := ring.New[int](4)
	b.Append(1)
	b.Append(2)

	if got := b.Len(); got != 2 {
		t.Fatalf("expected len 2, got %d", got)
	}
	snap := b.Snapshot()
	if len(snap) != 2 || snap[0] != 1 || snap[1] != 2 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}

func TestAppend_WrapsAndDropsOldest(t *testing.T) {
	b := ring.New[int](3)
	for i := 1; i <= 5; i++ {
		b.Append(i)
	}

	if got := b.Len(); got != 3 {
		t.Fatalf("expected len 3, got %d", got)
	}
	snap := b.Snapshot()
	want := []int{3, 4, 5}
	for i, v := range want {
		if snap[i] != v {
			t.Fatalf("expected %v, got %v", want, snap)
		}
	}
}

func TestTail(t *testing.T) {
	b := ring.New[int](5)
	for i := 1; i <= 5; i++ {
		b.Append(i)
	}

	tail := b.Tail(2)
	if len(tail) != 2 || tail[0] != 4 || tail[1] != 5 {
		t.Fatalf("unexpected tail: %v", tail)
	}
	if got := len(b.Tail(0)); got != 5 {
		t.Fatalf("Tail(0) should return everything, got %d entries", got)
	}
	if got := len(b.Tail(10)); got != 5 {
		t.Fatalf("Tail(10) should cap at len, got %d entries", got)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	b := ring.New[int](2)
	b.Append(1)
	snap := b.Snapshot()
	snap[0] = 99

	if got := b.Snapshot()[0]; got != 1 {
		t.Fatalf("snapshot mutation leaked into buffer: got %d", got)
	}
}

package refguard

import (
	"errors"
	"slices"
	"testing"
)

func TestEnterLeave(t *testing.T) {
	guard := New[string]()
	if err := guard.Enter("a"); err != nil {
		t.Fatalf("Enter(a) error = %v", err)
	}
	if err := guard.Enter("b"); err != nil {
		t.Fatalf("Enter(b) error = %v", err)
	}
	if got := guard.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}
	guard.Leave("b")
	if guard.On("b") {
		t.Fatal("On(b) = true after Leave, want false")
	}
	if !guard.On("a") {
		t.Fatal("On(a) = false, want true")
	}
}

func TestSelfCycle(t *testing.T) {
	guard := New[string]()
	if err := guard.Enter("a"); err != nil {
		t.Fatalf("Enter(a) error = %v", err)
	}
	err := guard.Enter("a")
	var cycle *CycleError[string]
	if !errors.As(err, &cycle) {
		t.Fatalf("Enter(a) error = %T, want *CycleError", err)
	}
	if want := []string{"a"}; !slices.Equal(cycle.Cycle, want) {
		t.Fatalf("Cycle = %v, want %v", cycle.Cycle, want)
	}
}

func TestThreeNodeCycle(t *testing.T) {
	guard := New[string]()
	for _, key := range []string{"a", "b", "c"} {
		if err := guard.Enter(key); err != nil {
			t.Fatalf("Enter(%s) error = %v", key, err)
		}
	}
	err := guard.Enter("a")
	var cycle *CycleError[string]
	if !errors.As(err, &cycle) {
		t.Fatalf("Enter(a) error = %T, want *CycleError", err)
	}
	if want := []string{"a", "b", "c", "a"}; !slices.Equal(cycle.Cycle, want) {
		t.Fatalf("Cycle = %v, want %v", cycle.Cycle, want)
	}
}

func TestCycleLeavesPathIntact(t *testing.T) {
	guard := New[string]()
	if err := guard.Enter("a"); err != nil {
		t.Fatalf("Enter(a) error = %v", err)
	}
	if err := guard.Enter("a"); err == nil {
		t.Fatal("Enter(a) twice error = nil, want cycle")
	}
	if got := guard.Depth(); got != 1 {
		t.Fatalf("Depth() after failed Enter = %d, want 1", got)
	}
	guard.Leave("a")
	if got := guard.Depth(); got != 0 {
		t.Fatalf("Depth() = %d, want 0", got)
	}
}

func TestWithScope(t *testing.T) {
	guard := New[int]()
	calls := 0
	err := guard.WithScope(1, func() error {
		calls++
		return guard.WithScope(2, func() error {
			calls++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithScope() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if got := guard.Depth(); got != 0 {
		t.Fatalf("Depth() = %d, want 0", got)
	}
}

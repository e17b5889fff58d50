package cache

import (
	"errors"
	"testing"
)

func TestEvalMemoizes(t *testing.T) {
	s := NewStore()
	var v Versions
	calls := 0
	calc := func() (int, error) { calls++; return 42, nil }
	deps := []Ticket{Configuration}

	for i := 0; i < 3; i++ {
		got, err := Eval(s, &v, "answer", deps, calc)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if got != 42 {
			t.Fatalf("expected 42, got %d", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 computation, got %d", calls)
	}
}

func TestEvalRecomputesOnDependencyBump(t *testing.T) {
	s := NewStore()
	var v Versions
	calls := 0
	deps := []Ticket{Configuration}
	calc := func() (int, error) { calls++; return calls, nil }

	Eval(s, &v, "x", deps, calc)
	v.Bump(Configuration)
	got, _ := Eval(s, &v, "x", deps, calc)

	if got != 2 {
		t.Errorf("expected recompute after bump, got %d (calls=%d)", got, calls)
	}
}

func TestEvalIgnoresUnrelatedBump(t *testing.T) {
	s := NewStore()
	var v Versions
	calls := 0
	deps := []Ticket{Configuration} // velocity-independent, like point pairs
	calc := func() (int, error) { calls++; return calls, nil }

	Eval(s, &v, "pairs", deps, calc)
	v.Bump(Velocity)
	Eval(s, &v, "pairs", deps, calc)

	if calls != 1 {
		t.Errorf("velocity bump must not invalidate a configuration-only entry, calls=%d", calls)
	}
}

func TestEvalErrorNotCached(t *testing.T) {
	s := NewStore()
	var v Versions
	fail := true
	calc := func() (int, error) {
		if fail {
			return 0, errors.New("boom")
		}
		return 7, nil
	}
	deps := []Ticket{Inputs}

	if _, err := Eval(s, &v, "x", deps, calc); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	got, err := Eval(s, &v, "x", deps, calc)
	if err != nil || got != 7 {
		t.Errorf("expected successful recompute after error, got %d, %v", got, err)
	}
}

func TestInvalidate(t *testing.T) {
	s := NewStore()
	var v Versions
	calls := 0
	deps := []Ticket{Parameters}
	calc := func() (int, error) { calls++; return calls, nil }

	Eval(s, &v, "x", deps, calc)
	s.Invalidate()
	Eval(s, &v, "x", deps, calc)

	if calls != 2 {
		t.Errorf("expected recompute after Invalidate, calls=%d", calls)
	}
}

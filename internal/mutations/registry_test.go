package mutations

import (
	"errors"
	"testing"
)

var errUhOh = errors.New("uh oh")

type fakeTx struct {
	values map[string]any
}

func newFakeTx() *fakeTx { return &fakeTx{values: map[string]any{}} }

func (f *fakeTx) Get(key string) (any, bool) { v, ok := f.values[key]; return v, ok }
func (f *fakeTx) Set(key string, value any)  { f.values[key] = value }

func TestRegistryLookupMiss(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("nope"); ok {
		t.Fatalf("expected miss")
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", func(tx Transaction, args ...any) error { return nil })
	fn, ok := r.Lookup("noop")
	if !ok || fn == nil {
		t.Fatalf("expected registered mutator to be found")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("dup", func(tx Transaction, args ...any) error { return nil })
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	r.Register("dup", func(tx Transaction, args ...any) error { return nil })
}

func TestInvokeRecoversPanic(t *testing.T) {
	fn := func(tx Transaction, args ...any) error { panic("boom") }
	err := Invoke(fn, newFakeTx())
	if err == nil {
		t.Fatalf("expected panic to be converted to an error")
	}
}

func TestInvokePropagatesError(t *testing.T) {
	sentinel := errUhOh
	fn := func(tx Transaction, args ...any) error { return sentinel }
	err := Invoke(fn, newFakeTx())
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

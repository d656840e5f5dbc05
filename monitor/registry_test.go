package monitor

import (
	"context"
	"testing"
)

func TestRegistryReplaceReturnsPrevious(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &Handle{AccountID: "default", Stop: cancel}
	if prev := r.Replace(first); prev != nil {
		t.Fatalf("Replace() prev = %v, want nil", prev)
	}

	second := &Handle{AccountID: "default", Stop: cancel}
	if prev := r.Replace(second); prev != first {
		t.Fatalf("Replace() did not return displaced handle")
	}
	if r.Get("default") != second {
		t.Fatalf("Get() != newest handle")
	}
}

func TestRegistryUnregisterOnlyRemovesCurrent(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := &Handle{AccountID: "default", Stop: cancel}
	r.Replace(old)
	current := &Handle{AccountID: "default", Stop: cancel}
	r.Replace(current)

	if r.Unregister(old) {
		t.Fatalf("Unregister(old) = true, want false after replacement")
	}
	if r.Get("default") != current {
		t.Fatalf("stale unregister removed the active handle")
	}
	if !r.Unregister(current) {
		t.Fatalf("Unregister(current) = false, want true")
	}
	if r.Get("default") != nil {
		t.Fatalf("handle still registered after unregister")
	}
}

func TestRegistrySetTransportIgnoresDisplacedHandle(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := &Handle{AccountID: "default", Stop: cancel}
	r.Replace(old)
	current := &Handle{AccountID: "default", Stop: cancel}
	r.Replace(current)

	r.SetTransport(old, &stubTransport{})
	if r.Transport("default") != nil {
		t.Fatalf("Transport() non-nil from displaced handle")
	}

	live := &stubTransport{}
	r.SetTransport(current, live)
	if r.Transport("default") != live {
		t.Fatalf("Transport() did not return the active handle's transport")
	}

	r.Unregister(current)
	if r.Transport("default") != nil {
		t.Fatalf("Transport() non-nil after unregister")
	}
}

func TestRegistryActiveIDs(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Replace(&Handle{AccountID: "default", Stop: cancel})
	r.Replace(&Handle{AccountID: "work", Stop: cancel})

	ids := r.ActiveIDs()
	if len(ids) != 2 {
		t.Fatalf("ActiveIDs() = %v, want 2 accounts", ids)
	}
}

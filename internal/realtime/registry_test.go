package realtime

import (
	"encoding/json"
	"testing"
)

func TestRegistryAddAndSnapshot(t *testing.T) {
	r := newRegistry()

	got := make([]string, 0, 2)
	r.add("order:available", func(data json.RawMessage) { got = append(got, "a") })
	r.add("order:available", func(data json.RawMessage) { got = append(got, "b") })
	r.add("notification", func(data json.RawMessage) { got = append(got, "n") })

	for _, h := range r.snapshot("order:available") {
		h(nil)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 handlers invoked, got %d (%v)", len(got), got)
	}
	if r.size() != 3 {
		t.Errorf("expected size 3, got %d", r.size())
	}
}

func TestRegistryUnsubscribe(t *testing.T) {
	r := newRegistry()

	calls := 0
	off := r.add("order:assigned", func(data json.RawMessage) { calls++ })

	off()
	off() // double-unsubscribe is harmless

	if hs := r.snapshot("order:assigned"); len(hs) != 0 {
		t.Errorf("expected no handlers after unsubscribe, got %d", len(hs))
	}
	if r.size() != 0 {
		t.Errorf("expected empty registry, got size %d", r.size())
	}
}

func TestRegistryUnsubscribeDuringDispatch(t *testing.T) {
	r := newRegistry()

	var off func()
	calls := 0
	off = r.add("order:statusChanged", func(data json.RawMessage) {
		calls++
		off() // removing yourself mid-dispatch must not break iteration
	})
	r.add("order:statusChanged", func(data json.RawMessage) { calls++ })

	for _, h := range r.snapshot("order:statusChanged") {
		h(nil)
	}
	if calls != 2 {
		t.Errorf("expected both handlers to run, got %d calls", calls)
	}

	// the self-removed handler is gone on the next dispatch
	if hs := r.snapshot("order:statusChanged"); len(hs) != 1 {
		t.Errorf("expected 1 handler left, got %d", len(hs))
	}
}

func TestRegistryClear(t *testing.T) {
	r := newRegistry()
	r.add("notification", func(data json.RawMessage) {})
	r.add("order:available", func(data json.RawMessage) {})

	r.clear()

	if r.size() != 0 {
		t.Errorf("expected empty registry after clear, got size %d", r.size())
	}

	// registry stays usable after clear
	r.add("notification", func(data json.RawMessage) {})
	if r.size() != 1 {
		t.Errorf("expected size 1, got %d", r.size())
	}
}

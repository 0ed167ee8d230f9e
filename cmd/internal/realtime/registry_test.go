package realtime

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	c1 := NewClient("u1", "s1", 8)
	c2 := NewClient("u1", "s2", 8)

	if !r.Register("u1", c1) {
		t.Fatalf("first channel should report wasFirst=true")
	}
	if r.Register("u1", c2) {
		t.Fatalf("second channel should report wasFirst=false")
	}
	if !r.IsOnline("u1") {
		t.Fatalf("u1 should be online")
	}

	if r.Unregister("u1", c1) {
		t.Fatalf("one channel remains, should not report offline")
	}
	if !r.IsOnline("u1") {
		t.Fatalf("u1 should still be online with one channel")
	}
	if !r.Unregister("u1", c2) {
		t.Fatalf("last channel removal should report offline")
	}
	if r.IsOnline("u1") {
		t.Fatalf("u1 should be offline")
	}
	if got := len(r.OnlineUsers()); got != 0 {
		t.Fatalf("registry should hold no entries, got %d users", got)
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	c := NewClient("u1", "s1", 8)

	r.Register("u1", c)
	if !r.Unregister("u1", c) {
		t.Fatalf("expected offline on first unregister")
	}
	if r.Unregister("u1", c) {
		t.Fatalf("second unregister must be a no-op returning false")
	}
	if r.Unregister("u2", c) {
		t.Fatalf("unregister of unknown user must return false")
	}

	stranger := NewClient("u1", "s9", 8)
	r.Register("u1", NewClient("u1", "s3", 8))
	if r.Unregister("u1", stranger) {
		t.Fatalf("unregister of a never-registered channel must return false")
	}
	if !r.IsOnline("u1") {
		t.Fatalf("unrelated unregister must not mutate the registry")
	}
}

func TestRegistryDeliverAllChannels(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	c1 := NewClient("u1", "s1", 8)
	c2 := NewClient("u1", "s2", 8)
	r.Register("u1", c1)
	r.Register("u1", c2)

	rep := r.Deliver("u1", []byte(`{"k":1}`))
	if rep.Delivered != 2 || rep.Failed != 0 {
		t.Fatalf("expected 2 delivered, got %+v", rep)
	}
	for _, c := range []*Client{c1, c2} {
		select {
		case <-c.Send:
		default:
			t.Fatalf("channel %s did not receive payload", c.SessionID)
		}
	}
}

func TestRegistryDeliverUnknownUser(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	rep := r.Deliver("ghost", []byte("x"))
	if rep.Delivered != 0 || rep.Failed != 0 {
		t.Fatalf("delivery to unknown user must degrade silently, got %+v", rep)
	}
}

func TestRegistryDeliverPrunesDeadChannel(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	live := NewClient("u1", "s1", 8)
	dead := NewClient("u1", "s2", 8)
	r.Register("u1", live)
	r.Register("u1", dead)
	dead.Close()

	rep := r.Deliver("u1", []byte("x"))
	if rep.Delivered != 1 || rep.Failed != 1 {
		t.Fatalf("expected 1 delivered / 1 failed, got %+v", rep)
	}

	// The dead channel is gone: a second delivery only sees the live one.
	rep = r.Deliver("u1", []byte("y"))
	if rep.Delivered != 1 || rep.Failed != 0 {
		t.Fatalf("dead channel should have been pruned, got %+v", rep)
	}

	// Pruning the last dead channel removes the user entry entirely.
	live.Close()
	r.Deliver("u1", []byte("z"))
	if r.IsOnline("u1") {
		t.Fatalf("u1 should not be online after all channels pruned")
	}
}

func TestRegistryDeliverFullQueueDropsWithoutPrune(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	c := NewClient("u1", "s1", 1)
	r.Register("u1", c)

	if rep := r.Deliver("u1", []byte("a")); rep.Delivered != 1 {
		t.Fatalf("first payload should fit, got %+v", rep)
	}
	if rep := r.Deliver("u1", []byte("b")); rep.Failed != 1 {
		t.Fatalf("second payload should drop on full queue, got %+v", rep)
	}
	if !r.IsOnline("u1") {
		t.Fatalf("backpressure must not prune a live channel")
	}
}

func TestRegistryFanoutExcludesUser(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	a := NewClient("ua", "s1", 8)
	b := NewClient("ub", "s2", 8)
	r.Register("ua", a)
	r.Register("ub", b)

	rep := r.Fanout([]byte("hello"), "ua")
	if rep.Delivered != 1 {
		t.Fatalf("expected fanout to exactly one user, got %+v", rep)
	}
	select {
	case <-a.Send:
		t.Fatalf("excluded user must not receive fanout")
	default:
	}
	select {
	case <-b.Send:
	default:
		t.Fatalf("other user must receive fanout")
	}
}

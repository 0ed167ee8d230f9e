package realtime

import (
	"testing"

	v1 "github.com/vuducc/Social-app/contracts/chat/v1"
)

func newSessionHarness() (*SessionController, *Registry, *MembershipTracker, *TypingTracker) {
	log := testLogger()
	registry := NewRegistry(log)
	members := NewMembershipTracker()
	typing := NewTypingTracker()
	return NewSessionController(log, registry, members, typing), registry, members, typing
}

func TestSessionOnlineAnnouncedOnceForFirstChannel(t *testing.T) {
	t.Parallel()

	sessions, registry, _, _ := newSessionHarness()

	watcher := NewClient("watcher", "w1", 16)
	registry.Register("watcher", watcher)

	c1 := NewClient("u1", "s1", 16)
	c2 := NewClient("u1", "s2", 16)
	sessions.OnConnect("u1", c1)
	sessions.OnConnect("u1", c2)

	// Only the first channel triggers user_status; the second is silent.
	ev := recvEvent(t, watcher)
	if ev["type"] != v1.TypeUserStatus || ev["user_id"] != "u1" || ev["is_online"] != true {
		t.Fatalf("unexpected announcement: %v", ev)
	}
	expectNoEvent(t, watcher)

	// The subject user does not hear their own announcement.
	expectNoEvent(t, c1)
	expectNoEvent(t, c2)
}

func TestSessionDisconnectCascade(t *testing.T) {
	t.Parallel()

	sessions, registry, members, typing := newSessionHarness()

	watcher := NewClient("watcher", "w1", 16)
	registry.Register("watcher", watcher)

	c1 := NewClient("u1", "s1", 16)
	c2 := NewClient("u1", "s2", 16)
	sessions.OnConnect("u1", c1)
	sessions.OnConnect("u1", c2)
	recvEvent(t, watcher) // drain the online announcement

	members.Join("conv-a", "u1")
	members.Join("conv-b", "u1")
	typing.SetTyping("conv-a", "u1", true)

	// Closing one of two channels changes nothing observable.
	sessions.OnDisconnect("u1", c1)
	if !registry.IsOnline("u1") {
		t.Fatalf("u1 should stay online with a second channel open")
	}
	if !members.Contains("conv-a", "u1") {
		t.Fatalf("membership must survive a partial disconnect")
	}
	expectNoEvent(t, watcher)

	// Closing the last channel purges everything and announces offline once.
	sessions.OnDisconnect("u1", c2)
	if registry.IsOnline("u1") {
		t.Fatalf("u1 should be offline")
	}
	if members.Contains("conv-a", "u1") || members.Contains("conv-b", "u1") {
		t.Fatalf("membership must be purged on final disconnect")
	}
	if typing.Len() != 0 {
		t.Fatalf("typing state must be purged on final disconnect")
	}

	ev := recvEvent(t, watcher)
	if ev["type"] != v1.TypeUserStatus || ev["user_id"] != "u1" || ev["is_online"] != false {
		t.Fatalf("unexpected announcement: %v", ev)
	}
	expectNoEvent(t, watcher)
}

func TestSessionDisconnectIdempotent(t *testing.T) {
	t.Parallel()

	sessions, registry, _, _ := newSessionHarness()

	watcher := NewClient("watcher", "w1", 16)
	registry.Register("watcher", watcher)

	c := NewClient("u1", "s1", 16)
	sessions.OnConnect("u1", c)
	recvEvent(t, watcher)

	// Clean close and abnormal close can both reach OnDisconnect; the
	// second invocation must be a complete no-op.
	sessions.OnDisconnect("u1", c)
	recvEvent(t, watcher)
	sessions.OnDisconnect("u1", c)
	expectNoEvent(t, watcher)
}

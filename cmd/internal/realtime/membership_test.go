package realtime

import (
	"slices"
	"testing"
)

func TestMembershipJoinLeave(t *testing.T) {
	t.Parallel()

	m := NewMembershipTracker()
	m.Join("c1", "u1")
	m.Join("c1", "u2")
	m.Join("c1", "u1") // duplicate join is a no-op

	got := m.MembersOf("c1")
	slices.Sort(got)
	if want := []string{"u1", "u2"}; !slices.Equal(got, want) {
		t.Fatalf("MembersOf = %v, want %v", got, want)
	}

	m.Leave("c1", "u1")
	if m.Contains("c1", "u1") {
		t.Fatalf("u1 should be gone after leave")
	}
	m.Leave("c1", "u1") // repeated leave is a no-op
	m.Leave("c9", "u1") // leave on unknown conversation is a no-op

	if got := m.MembersOf("c1"); !slices.Equal(got, []string{"u2"}) {
		t.Fatalf("MembersOf = %v, want [u2]", got)
	}
}

func TestMembershipEmptySetDeleted(t *testing.T) {
	t.Parallel()

	m := NewMembershipTracker()
	m.Join("c1", "u1")
	m.Leave("c1", "u1")
	if m.Len() != 0 {
		t.Fatalf("empty conversation entry must be deleted, Len = %d", m.Len())
	}
	if got := m.MembersOf("c1"); len(got) != 0 {
		t.Fatalf("MembersOf after full drain = %v, want empty", got)
	}
}

func TestMembershipPurgeUser(t *testing.T) {
	t.Parallel()

	m := NewMembershipTracker()
	m.Join("c1", "u1")
	m.Join("c1", "u2")
	m.Join("c2", "u1")

	purged := m.PurgeUser("u1")
	slices.Sort(purged)
	if want := []string{"c1", "c2"}; !slices.Equal(purged, want) {
		t.Fatalf("PurgeUser = %v, want %v", purged, want)
	}
	if m.Contains("c1", "u1") || m.Contains("c2", "u1") {
		t.Fatalf("u1 must be removed everywhere")
	}
	// c2 drained completely and must not linger as an empty set.
	if m.Len() != 1 {
		t.Fatalf("tracker should hold only c1, Len = %d", m.Len())
	}

	if got := m.PurgeUser("ghost"); len(got) != 0 {
		t.Fatalf("purge of unknown user = %v, want empty", got)
	}
}

package realtime

import "sync"

// MembershipTracker records which users currently have a conversation open
// over a live session. This is a liveness signal, distinct from the durable
// participant record in ConversationStore that authorizes access at all.
//
// Invariant: a conversation key always maps to a non-empty member set; the
// key is deleted atomically when its set drains. Nothing here is persisted:
// the index is rebuilt from zero on process restart.
type MembershipTracker struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
}

// NewMembershipTracker constructs an empty membership index.
func NewMembershipTracker() *MembershipTracker {
	return &MembershipTracker{
		members: make(map[string]map[string]struct{}),
	}
}

// Join marks userID as actively viewing conversationID. Idempotent.
func (m *MembershipTracker) Join(conversationID, userID string) {
	if conversationID == "" || userID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.members[conversationID]
	if !ok {
		set = make(map[string]struct{}, 2)
		m.members[conversationID] = set
	}
	set[userID] = struct{}{}
}

// Leave removes userID from conversationID. Idempotent.
func (m *MembershipTracker) Leave(conversationID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.members[conversationID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(m.members, conversationID)
	}
}

// MembersOf returns the users currently viewing conversationID.
// Unknown conversations yield an empty slice, never an error.
func (m *MembershipTracker) MembersOf(conversationID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.members[conversationID]
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	return out
}

// Contains reports whether userID is currently viewing conversationID.
func (m *MembershipTracker) Contains(conversationID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.members[conversationID][userID]
	return ok
}

// PurgeUser removes userID from every conversation it is viewing and
// returns the conversations it was removed from. Used exclusively during
// full-disconnect cleanup: a user may drop all sessions without ever
// sending leave_conversation.
func (m *MembershipTracker) PurgeUser(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for conversationID, set := range m.members {
		if _, ok := set[userID]; !ok {
			continue
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(m.members, conversationID)
		}
		removed = append(removed, conversationID)
	}
	return removed
}

// Len returns how many conversations currently have at least one viewer.
func (m *MembershipTracker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.members)
}

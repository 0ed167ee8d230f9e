package realtime

import "sync"

// TypingTracker records ephemeral "is typing" state per conversation.
// Derived purely from transient events, never persisted. "Set typing=false"
// and "never typed" collapse into the same observable empty state.
//
// Entries never outlive the user's last session: SessionController purges
// them on full disconnect. There is deliberately no TTL at this layer.
type TypingTracker struct {
	mu     sync.Mutex
	typers map[string]map[string]struct{}
}

// NewTypingTracker constructs an empty typing index.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		typers: make(map[string]map[string]struct{}),
	}
}

// SetTyping records or clears the typing signal for userID in conversationID.
func (t *TypingTracker) SetTyping(conversationID, userID string, isTyping bool) {
	if conversationID == "" || userID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		set, ok := t.typers[conversationID]
		if !ok {
			set = make(map[string]struct{}, 2)
			t.typers[conversationID] = set
		}
		set[userID] = struct{}{}
		return
	}

	set, ok := t.typers[conversationID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(t.typers, conversationID)
	}
}

// TypersOf returns the users currently signaling "typing" in conversationID.
// Unknown conversations yield an empty slice, never an error.
func (t *TypingTracker) TypersOf(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.typers[conversationID]
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	return out
}

// PurgeUser clears the typing signal of userID in every conversation.
// Used during full-disconnect cleanup.
func (t *TypingTracker) PurgeUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for conversationID, set := range t.typers {
		if _, ok := set[userID]; !ok {
			continue
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(t.typers, conversationID)
		}
		removed = append(removed, conversationID)
	}
	return removed
}

// Len returns how many conversations currently have at least one typer.
func (t *TypingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.typers)
}

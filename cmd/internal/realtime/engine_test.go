package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	v1 "github.com/vuducc/Social-app/contracts/chat/v1"
)

// stubStore is a scriptable ConversationStore that counts calls, for tests
// that assert on what the engine did NOT do.
type stubStore struct {
	isParticipant func(conversationID, userID string) (bool, error)
	createMessage func(in CreateMessageInput) (Message, error)
	markRead      func(conversationID, userID string) error

	authChecks int
	creates    int
	marks      int
}

func (s *stubStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.authChecks++
	if s.isParticipant == nil {
		return false, nil
	}
	return s.isParticipant(conversationID, userID)
}

func (s *stubStore) Participants(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *stubStore) CreateMessage(_ context.Context, in CreateMessageInput) (Message, error) {
	s.creates++
	if s.createMessage == nil {
		return Message{}, errors.New("unexpected CreateMessage")
	}
	return s.createMessage(in)
}

func (s *stubStore) MarkRead(_ context.Context, conversationID, userID string) error {
	s.marks++
	if s.markRead == nil {
		return errors.New("unexpected MarkRead")
	}
	return s.markRead(conversationID, userID)
}

func (s *stubStore) Close() error { return nil }

// engineHarness bundles the fan-out core around a store for scenario tests.
type engineHarness struct {
	engine   *Engine
	registry *Registry
	members  *MembershipTracker
	typing   *TypingTracker
}

func newEngineHarness(store ConversationStore) *engineHarness {
	log := testLogger()
	h := &engineHarness{
		registry: NewRegistry(log),
		members:  NewMembershipTracker(),
		typing:   NewTypingTracker(),
	}
	h.engine = NewEngine(log, h.registry, h.members, h.typing, store, nil)
	return h
}

// connect registers a fresh channel for userID and returns it.
func (h *engineHarness) connect(userID string) *Client {
	c := NewClient(userID, "s-"+userID, 16)
	h.registry.Register(userID, c)
	return c
}

// recvEvent pops the next queued payload from c and decodes it.
func recvEvent(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case payload := <-c.Send:
		var ev map[string]any
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("decode outbound payload: %v", err)
		}
		return ev
	default:
		t.Fatalf("expected a queued event for %s, got none", c.UserID)
		return nil
	}
}

// expectNoEvent asserts c's send queue is empty.
func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Send:
		t.Fatalf("unexpected event for %s: %s", c.UserID, payload)
	default:
	}
}

func TestEngineSendMessageBroadcast(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2", "u3")
	h := newEngineHarness(store)

	sender := h.connect("u1")
	r2 := h.connect("u2")
	r3 := h.connect("u3")

	h.engine.HandleEvent(context.Background(), sender, v1.ClientEvent{
		Type:           v1.TypeSendMessage,
		ConversationID: "c1",
		Content:        "hello there",
	})

	// Exactly the other two participants receive exactly one new_message.
	for _, c := range []*Client{r2, r3} {
		ev := recvEvent(t, c)
		if ev["type"] != v1.TypeNewMessage {
			t.Fatalf("type = %v, want %s", ev["type"], v1.TypeNewMessage)
		}
		if ev["conversation_id"] != "c1" {
			t.Fatalf("conversation_id = %v, want c1", ev["conversation_id"])
		}
		data, ok := ev["data"].(map[string]any)
		if !ok {
			t.Fatalf("missing data object in %v", ev)
		}
		if data["sender_id"] != "u1" {
			t.Fatalf("sender_id = %v, want u1", data["sender_id"])
		}
		if data["content"] != "hello there" {
			t.Fatalf("content = %v, want hello there", data["content"])
		}
		if data["message_type"] != MessageTypeText {
			t.Fatalf("message_type = %v, want %s", data["message_type"], MessageTypeText)
		}
		if id, _ := data["message_id"].(string); id == "" {
			t.Fatalf("message_id must be set, got %v", data["message_id"])
		}
		expectNoEvent(t, c)
	}
	expectNoEvent(t, sender)
}

func TestEngineSendMessageLegacyTypeTag(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2")
	h := newEngineHarness(store)

	sender := h.connect("u1")
	other := h.connect("u2")

	h.engine.HandleEvent(context.Background(), sender, v1.ClientEvent{
		Type:           v1.TypeMessage,
		ConversationID: "c1",
		Content:        "old client",
	})

	if ev := recvEvent(t, other); ev["type"] != v1.TypeNewMessage {
		t.Fatalf("legacy tag must behave as send_message, got %v", ev["type"])
	}
}

func TestEngineSendMessageUnauthorized(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		isParticipant: func(string, string) (bool, error) { return false, nil },
	}
	h := newEngineHarness(store)

	sender := h.connect("intruder")
	member := h.connect("u2")

	h.engine.HandleEvent(context.Background(), sender, v1.ClientEvent{
		Type:           v1.TypeSendMessage,
		ConversationID: "c1",
		Content:        "should never land",
	})

	if store.creates != 0 {
		t.Fatalf("unauthorized send must not reach persistence, creates = %d", store.creates)
	}
	// Silent drop: neither the sender nor anyone else observes anything.
	expectNoEvent(t, sender)
	expectNoEvent(t, member)
}

func TestEngineSendMessagePersistenceFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		isParticipant: func(string, string) (bool, error) { return true, nil },
		createMessage: func(CreateMessageInput) (Message, error) {
			return Message{}, errors.New("connection reset")
		},
	}
	h := newEngineHarness(store)

	sender := h.connect("u1")
	other := h.connect("u2")

	h.engine.HandleEvent(context.Background(), sender, v1.ClientEvent{
		Type:           v1.TypeSendMessage,
		ConversationID: "c1",
		Content:        "hi",
	})

	ev := recvEvent(t, sender)
	if ev["type"] != v1.TypeError {
		t.Fatalf("sender should get an error event, got %v", ev["type"])
	}
	if ev["code"] != "send_failed" {
		t.Fatalf("code = %v, want send_failed", ev["code"])
	}
	// The failure is never broadcast.
	expectNoEvent(t, other)
}

func TestEngineTypingScenario(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2")
	h := newEngineHarness(store)

	u1 := h.connect("u1")
	u2 := h.connect("u2")
	join := func(c *Client) {
		h.engine.HandleEvent(context.Background(), c, v1.ClientEvent{
			Type: v1.TypeJoinConversation, ConversationID: "c1",
		})
	}
	join(u1)
	join(u2)

	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeTyping, ConversationID: "c1", IsTyping: true,
	})

	ev := recvEvent(t, u2)
	if ev["type"] != v1.TypeTypingStatus || ev["user_id"] != "u1" || ev["is_typing"] != true {
		t.Fatalf("unexpected typing event: %v", ev)
	}
	// The typist never hears their own typing.
	expectNoEvent(t, u1)

	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeTyping, ConversationID: "c1", IsTyping: false,
	})

	ev = recvEvent(t, u2)
	if ev["is_typing"] != false {
		t.Fatalf("expected is_typing=false, got %v", ev)
	}
	if h.typing.Len() != 0 {
		t.Fatalf("start/stop pair must leave no residual typing state")
	}
}

func TestEngineTypingTargetsViewersOnly(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2", "u3")
	h := newEngineHarness(store)

	u1 := h.connect("u1")
	u2 := h.connect("u2")
	u3 := h.connect("u3") // online participant who never joined the view

	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeJoinConversation, ConversationID: "c1",
	})
	h.engine.HandleEvent(context.Background(), u2, v1.ClientEvent{
		Type: v1.TypeJoinConversation, ConversationID: "c1",
	})

	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeTyping, ConversationID: "c1", IsTyping: true,
	})

	if ev := recvEvent(t, u2); ev["type"] != v1.TypeTypingStatus {
		t.Fatalf("viewer should get typing_status, got %v", ev["type"])
	}
	expectNoEvent(t, u3)
}

func TestEngineReadMessagesNotifiesAllViewers(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2")
	h := newEngineHarness(store)

	u1 := h.connect("u1")
	u2 := h.connect("u2")
	for _, c := range []*Client{u1, u2} {
		h.engine.HandleEvent(context.Background(), c, v1.ClientEvent{
			Type: v1.TypeJoinConversation, ConversationID: "c1",
		})
	}

	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeSendMessage, ConversationID: "c1", Content: "unread for u2",
	})
	recvEvent(t, u2) // drain the new_message
	if got := store.UnreadCount("c1", "u2"); got != 1 {
		t.Fatalf("UnreadCount before read = %d, want 1", got)
	}

	h.engine.HandleEvent(context.Background(), u2, v1.ClientEvent{
		Type: v1.TypeReadMessages, ConversationID: "c1",
	})

	if got := store.UnreadCount("c1", "u2"); got != 0 {
		t.Fatalf("UnreadCount after read = %d, want 0", got)
	}
	// Unlike typing, the reader hears their own read receipt too.
	for _, c := range []*Client{u1, u2} {
		ev := recvEvent(t, c)
		if ev["type"] != v1.TypeMessagesRead || ev["user_id"] != "u2" {
			t.Fatalf("unexpected messages_read for %s: %v", c.UserID, ev)
		}
	}
}

func TestEngineJoinUnauthorized(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1")
	h := newEngineHarness(store)

	intruder := h.connect("u9")
	h.engine.HandleEvent(context.Background(), intruder, v1.ClientEvent{
		Type: v1.TypeJoinConversation, ConversationID: "c1",
	})

	if h.members.Contains("c1", "u9") {
		t.Fatalf("non-participant join must not be honored")
	}
	expectNoEvent(t, intruder)
}

func TestEngineLeaveClearsTyping(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2")
	h := newEngineHarness(store)

	u1 := h.connect("u1")
	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeJoinConversation, ConversationID: "c1",
	})
	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeTyping, ConversationID: "c1", IsTyping: true,
	})

	h.engine.HandleEvent(context.Background(), u1, v1.ClientEvent{
		Type: v1.TypeLeaveConversation, ConversationID: "c1",
	})

	if h.members.Contains("c1", "u1") {
		t.Fatalf("u1 should no longer be viewing c1")
	}
	if h.typing.Len() != 0 {
		t.Fatalf("leave must clear the leaver's typing state")
	}
}

func TestEngineMalformedEventsDropped(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		isParticipant: func(string, string) (bool, error) { return true, nil },
	}
	h := newEngineHarness(store)
	sender := h.connect("u1")

	cases := []struct {
		name string
		ev   v1.ClientEvent
	}{
		{"missing type", v1.ClientEvent{ConversationID: "c1"}},
		{"unknown type", v1.ClientEvent{Type: "ban_user", ConversationID: "c1"}},
		{"missing conversation_id", v1.ClientEvent{Type: v1.TypeTyping}},
		{"send without content", v1.ClientEvent{Type: v1.TypeSendMessage, ConversationID: "c1"}},
	}
	for _, tc := range cases {
		h.engine.HandleEvent(context.Background(), sender, tc.ev)
		expectNoEvent(t, sender)
	}
	if store.authChecks != 0 || store.creates != 0 || store.marks != 0 {
		t.Fatalf("malformed events must not reach the store: %d/%d/%d",
			store.authChecks, store.creates, store.marks)
	}
}

func TestEngineOfflineRecipientDegradesSilently(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	store.AddParticipants("c1", "u1", "u2", "u3")
	h := newEngineHarness(store)

	sender := h.connect("u1")
	online := h.connect("u2")
	// u3 is a participant with no open channels.

	h.engine.HandleEvent(context.Background(), sender, v1.ClientEvent{
		Type: v1.TypeSendMessage, ConversationID: "c1", Content: "hi",
	})

	if ev := recvEvent(t, online); ev["type"] != v1.TypeNewMessage {
		t.Fatalf("online recipient should get new_message, got %v", ev["type"])
	}
	// No error surfaced to the sender for the offline participant.
	expectNoEvent(t, sender)
}

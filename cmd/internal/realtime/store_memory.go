package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vuducc/Social-app/cmd/internal/identity/ids"
)

const memMaxMessagesPerConversation = 10_000

// InMemoryStore is a dev/test fallback when DB is not configured.
// Participant sets are seeded via AddParticipants; messages and read
// receipts live in mutex-guarded maps.
type InMemoryStore struct {
	mu    sync.Mutex
	convs map[string]*memConv
}

type memConv struct {
	participants map[string]struct{}
	msgs         []Message
	readBy       map[string]map[string]struct{} // message_id -> readers
}

// NewInMemoryStore constructs an in-memory ConversationStore implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		convs: make(map[string]*memConv),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// AddParticipants seeds the durable participant set of a conversation.
func (s *InMemoryStore) AddParticipants(conversationID string, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conv(conversationID)
	for _, userID := range userIDs {
		if userID != "" {
			c.participants[userID] = struct{}{}
		}
	}
}

// conv returns (creating if needed) the conversation record. Caller holds mu.
func (s *InMemoryStore) conv(conversationID string) *memConv {
	c := s.convs[conversationID]
	if c == nil {
		c = &memConv{
			participants: make(map[string]struct{}),
			readBy:       make(map[string]map[string]struct{}),
		}
		s.convs[conversationID] = c
	}
	return c
}

// IsParticipant reports whether userID holds a participant record.
func (s *InMemoryStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.convs[conversationID]
	if c == nil {
		return false, nil
	}
	_, ok := c.participants[userID]
	return ok, nil
}

// Participants returns the durable participant list of a conversation.
func (s *InMemoryStore) Participants(_ context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.convs[conversationID]
	if c == nil {
		return nil, nil
	}
	out := make([]string, 0, len(c.participants))
	for userID := range c.participants {
		out = append(out, userID)
	}
	return out, nil
}

// CreateMessage commits a message after verifying the sender's participant record.
func (s *InMemoryStore) CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	if in.ConversationID == "" || in.SenderID == "" || strings.TrimSpace(in.Content) == "" {
		return Message{}, errors.New("realtime: invalid message input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	messageType := in.MessageType
	if messageType == "" {
		messageType = MessageTypeText
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.convs[in.ConversationID]
	if c == nil {
		return Message{}, ErrNotParticipant
	}
	if _, ok := c.participants[in.SenderID]; !ok {
		return Message{}, ErrNotParticipant
	}

	msg := Message{
		MessageID:      id,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		MessageType:    messageType,
		CreatedAt:      now,
	}
	c.msgs = append(c.msgs, msg)

	// Bound memory to avoid unbounded growth in dev.
	if len(c.msgs) > memMaxMessagesPerConversation {
		c.msgs = c.msgs[len(c.msgs)-memMaxMessagesPerConversation:]
	}

	return msg, nil
}

// MarkRead records a read receipt for every message userID did not send.
func (s *InMemoryStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return errors.New("realtime: invalid mark-read input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.convs[conversationID]
	if c == nil {
		return ErrNotParticipant
	}
	if _, ok := c.participants[userID]; !ok {
		return ErrNotParticipant
	}

	for _, msg := range c.msgs {
		if msg.SenderID == userID {
			continue
		}
		readers := c.readBy[msg.MessageID]
		if readers == nil {
			readers = make(map[string]struct{}, 2)
			c.readBy[msg.MessageID] = readers
		}
		readers[userID] = struct{}{}
	}
	return nil
}

// UnreadCount reports messages in the conversation not sent by userID and
// not yet marked read by them. Handy for tests and dev tooling.
func (s *InMemoryStore) UnreadCount(conversationID, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.convs[conversationID]
	if c == nil {
		return 0
	}

	n := 0
	for _, msg := range c.msgs {
		if msg.SenderID == userID {
			continue
		}
		if _, read := c.readBy[msg.MessageID][userID]; !read {
			n++
		}
	}
	return n
}

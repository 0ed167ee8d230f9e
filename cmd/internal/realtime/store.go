package realtime

import (
	"context"
	"errors"
	"time"
)

// ErrNotParticipant is returned by CreateMessage/MarkRead when the acting
// user holds no durable participant record for the conversation.
var ErrNotParticipant = errors.New("realtime: user is not a participant in this conversation")

// MessageTypeText is the default message_type when the client omits it.
const MessageTypeText = "text"

// Message is the canonical durable message representation.
type Message struct {
	MessageID      string
	ConversationID string
	SenderID       string
	Content        string
	MessageType    string
	CreatedAt      time.Time
}

// CreateMessageInput describes a message creation request.
type CreateMessageInput struct {
	ConversationID string
	SenderID       string
	Content        string
	MessageType    string
	Now            time.Time
}

// ConversationStore is the persistence collaborator behind the fan-out core.
//
// Requirements:
//   - IsParticipant/Participants reflect the durable participant records
//     (the authorization boundary), not the live membership index.
//   - CreateMessage must commit before returning: the caller broadcasts the
//     returned message id, and broadcasting an uncommitted id is a
//     correctness bug.
//   - MarkRead marks every unread message in the conversation that the
//     user did not send.
type ConversationStore interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	Participants(ctx context.Context, conversationID string) ([]string, error)
	CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
	Close() error
}

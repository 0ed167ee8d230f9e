// Package v1 defines the Social-app realtime chat wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Inbound type tags (client -> server, wire-stable).
const (
	TypeJoinConversation  = "join_conversation"
	TypeLeaveConversation = "leave_conversation"
	TypeSendMessage       = "send_message"
	TypeTyping            = "typing"
	TypeReadMessages      = "read_messages"

	// TypeMessage is a legacy alias for TypeSendMessage kept for
	// compatibility with older clients.
	TypeMessage = "message"
)

// Outbound type tags (server -> client, wire-stable).
const (
	TypeUserStatus   = "user_status"
	TypeTypingStatus = "typing_status"
	TypeNewMessage   = "new_message"
	TypeMessagesRead = "messages_read"
	TypeError        = "error"
)

// EventKind is the closed set of inbound event kinds. Decoding an unknown
// type tag yields KindUnknown so handlers can treat it as a checked default
// case instead of a silent fallthrough.
type EventKind uint8

const (
	KindUnknown EventKind = iota
	KindJoinConversation
	KindLeaveConversation
	KindSendMessage
	KindTyping
	KindReadMessages
)

// String returns the wire tag for the kind (canonical spelling).
func (k EventKind) String() string {
	switch k {
	case KindJoinConversation:
		return TypeJoinConversation
	case KindLeaveConversation:
		return TypeLeaveConversation
	case KindSendMessage:
		return TypeSendMessage
	case KindTyping:
		return TypeTyping
	case KindReadMessages:
		return TypeReadMessages
	default:
		return "unknown"
	}
}

// ClientEvent is the flat inbound frame accepted over the websocket.
// Fields beyond Type are populated per kind; Validate enforces which.
type ClientEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

// Kind maps the wire type tag onto the closed EventKind set.
func (e ClientEvent) Kind() EventKind {
	switch strings.TrimSpace(e.Type) {
	case TypeJoinConversation:
		return KindJoinConversation
	case TypeLeaveConversation:
		return KindLeaveConversation
	case TypeSendMessage, TypeMessage:
		return KindSendMessage
	case TypeTyping:
		return KindTyping
	case TypeReadMessages:
		return KindReadMessages
	default:
		return KindUnknown
	}
}

// Validate performs structural validation for an inbound event.
func (e ClientEvent) Validate() error {
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	kind := e.Kind()
	if kind == KindUnknown {
		return fmt.Errorf("unknown type: %q", e.Type)
	}

	if strings.TrimSpace(e.ConversationID) == "" {
		return errors.New("missing field: conversation_id")
	}

	if kind == KindSendMessage && strings.TrimSpace(e.Content) == "" {
		return errors.New("missing field: content")
	}

	return nil
}

// ---- outbound events ----

// UserStatusEvent announces a user going online or offline.
type UserStatusEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// NewUserStatus builds a user_status event.
func NewUserStatus(userID string, isOnline bool) UserStatusEvent {
	return UserStatusEvent{Type: TypeUserStatus, UserID: userID, IsOnline: isOnline}
}

// TypingStatusEvent announces a change in a user's typing state.
type TypingStatusEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// NewTypingStatus builds a typing_status event.
func NewTypingStatus(conversationID, userID string, isTyping bool) TypingStatusEvent {
	return TypingStatusEvent{
		Type:           TypeTypingStatus,
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}
}

// DeliveryStatus is the per-message delivery stub attached to new_message.
// It reflects the state at broadcast time: persisted, not yet delivered.
type DeliveryStatus struct {
	Sent      bool     `json:"sent"`
	Delivered bool     `json:"delivered"`
	SeenBy    []string `json:"seen_by"`
}

// MessageData is the durable message representation carried by new_message.
type MessageData struct {
	MessageID   string         `json:"message_id"`
	SenderID    string         `json:"sender_id"`
	Content     string         `json:"content"`
	MessageType string         `json:"message_type"`
	CreatedAt   time.Time      `json:"created_at"`
	Status      DeliveryStatus `json:"status"`
}

// NewMessageEvent carries a durably created message to live recipients.
type NewMessageEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Data           MessageData `json:"data"`
}

// NewMessage builds a new_message event with the initial delivery stub.
func NewMessage(conversationID string, data MessageData) NewMessageEvent {
	if data.Status.SeenBy == nil {
		data.Status = DeliveryStatus{Sent: true, Delivered: false, SeenBy: []string{}}
	}
	return NewMessageEvent{Type: TypeNewMessage, ConversationID: conversationID, Data: data}
}

// MessagesReadEvent announces that a user read the unread messages of a conversation.
type MessagesReadEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// NewMessagesRead builds a messages_read event.
func NewMessagesRead(conversationID, userID string) MessagesReadEvent {
	return MessagesReadEvent{Type: TypeMessagesRead, ConversationID: conversationID, UserID: userID}
}

// ErrorEvent is surfaced to the originating sender only (never broadcast).
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an error event.
func NewError(code, message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Code: code, Message: message}
}

// Encode marshals an outbound event. Marshal once, fan out the bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

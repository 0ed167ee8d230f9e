package realtime

import (
	"context"
	"log/slog"
)

// PushSink receives durable chat events for out-of-band notification
// delivery (mobile push, etc.). It is strictly fire-and-forget: the fan-out
// core never waits on it and never depends on its success.
type PushSink interface {
	// MessageCreated is invoked after a message is durably committed.
	// recipients is the durable participant list minus the sender.
	MessageCreated(ctx context.Context, msg Message, recipients []string)
}

// NopPushSink discards every notification.
type NopPushSink struct{}

// MessageCreated implements PushSink.
func (NopPushSink) MessageCreated(context.Context, Message, []string) {}

// LogPushSink records notifications to the structured log. Used in dev mode
// where no real push provider is wired.
type LogPushSink struct {
	Log *slog.Logger
}

// MessageCreated implements PushSink.
func (s LogPushSink) MessageCreated(_ context.Context, msg Message, recipients []string) {
	if s.Log == nil {
		return
	}
	s.Log.Info("push.message_created",
		"conversation_id", msg.ConversationID,
		"message_id", msg.MessageID,
		"sender_id", msg.SenderID,
		"recipients", len(recipients),
	)
}

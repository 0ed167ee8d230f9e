package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	v1 "github.com/vuducc/Social-app/contracts/chat/v1"
)

// Engine is the conversation fan-out state machine. It is stateless itself:
// all state lives in the registry and the membership/typing trackers. Each
// inbound event is validated against the durable authorization records in
// ConversationStore, applied to the trackers, and turned into a precisely
// scoped set of outbound broadcasts.
//
// Error posture (deliberate, inherited from the product):
//   - malformed events and authorization failures are logged and silently
//     dropped; the channel stays open and the sender sees nothing.
//   - persistence failures abort the broadcast and are surfaced to the
//     originating sender only, via an error event.
type Engine struct {
	log      *slog.Logger
	registry *Registry
	members  *MembershipTracker
	typing   *TypingTracker
	store    ConversationStore
	push     PushSink
}

// NewEngine constructs a fan-out engine over the given shared state and collaborators.
func NewEngine(
	log *slog.Logger,
	registry *Registry,
	members *MembershipTracker,
	typing *TypingTracker,
	store ConversationStore,
	push PushSink,
) *Engine {
	if push == nil {
		push = NopPushSink{}
	}
	return &Engine{
		log:      log,
		registry: registry,
		members:  members,
		typing:   typing,
		store:    store,
		push:     push,
	}
}

// HandleEvent processes one inbound event from sender's channel. The gateway
// calls it from the single read loop of that channel, so events from one
// channel are handled strictly in arrival order. It never returns an error:
// every failure mode is recovered locally per the error posture above.
func (e *Engine) HandleEvent(ctx context.Context, sender *Client, ev v1.ClientEvent) {
	if err := ev.Validate(); err != nil {
		metricEventsDropped.WithLabelValues(dropReasonMalformed).Inc()
		e.log.Info("engine.event.malformed",
			"user_id", sender.UserID, "type", ev.Type, "err", err)
		return
	}

	kind := ev.Kind()
	metricEventsTotal.WithLabelValues(kind.String()).Inc()

	switch kind {
	case v1.KindJoinConversation:
		e.handleJoin(ctx, sender, ev)
	case v1.KindLeaveConversation:
		e.handleLeave(sender, ev)
	case v1.KindSendMessage:
		e.handleSendMessage(ctx, sender, ev)
	case v1.KindTyping:
		e.handleTyping(ctx, sender, ev)
	case v1.KindReadMessages:
		e.handleReadMessages(ctx, sender, ev)
	case v1.KindUnknown:
		// Unreachable after Validate; kept so the switch stays exhaustive.
		metricEventsDropped.WithLabelValues(dropReasonMalformed).Inc()
	}
}

// handleJoin marks the sender as actively viewing the conversation. The
// durable participant record is checked first: join is honored fail-closed.
func (e *Engine) handleJoin(ctx context.Context, sender *Client, ev v1.ClientEvent) {
	if !e.authorize(ctx, sender, ev.ConversationID) {
		return
	}

	e.members.Join(ev.ConversationID, sender.UserID)
	e.log.Info("engine.conversation.join",
		"conversation_id", ev.ConversationID, "user_id", sender.UserID)
}

func (e *Engine) handleLeave(sender *Client, ev v1.ClientEvent) {
	e.members.Leave(ev.ConversationID, sender.UserID)
	e.typing.SetTyping(ev.ConversationID, sender.UserID, false)
	e.log.Info("engine.conversation.leave",
		"conversation_id", ev.ConversationID, "user_id", sender.UserID)
}

// handleSendMessage persists the message, then broadcasts to the durable
// participant list minus the sender. Offline participants fetch the message
// later through the REST surface; the live broadcast is only the
// low-latency notify path. Persist-before-broadcast is strict: a message id
// that is not durably committed is never put on the wire.
func (e *Engine) handleSendMessage(ctx context.Context, sender *Client, ev v1.ClientEvent) {
	if !e.authorize(ctx, sender, ev.ConversationID) {
		return
	}

	msg, err := e.store.CreateMessage(ctx, CreateMessageInput{
		ConversationID: ev.ConversationID,
		SenderID:       sender.UserID,
		Content:        ev.Content,
		MessageType:    ev.MessageType,
		Now:            time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrNotParticipant) {
			e.dropUnauthorized(sender, ev)
			return
		}
		e.persistenceFailure(sender, ev, "send_failed", err)
		return
	}

	recipients, err := e.store.Participants(ctx, ev.ConversationID)
	if err != nil {
		// The message is durable; only the live notify path degraded.
		e.persistenceFailure(sender, ev, "send_failed", err)
		return
	}

	out := v1.NewMessage(msg.ConversationID, v1.MessageData{
		MessageID:   msg.MessageID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt,
		Status:      v1.DeliveryStatus{Sent: true, Delivered: false, SeenBy: []string{}},
	})
	rep := e.broadcast(recipients, sender.UserID, out)

	others := make([]string, 0, len(recipients))
	for _, userID := range recipients {
		if userID != sender.UserID {
			others = append(others, userID)
		}
	}
	go e.push.MessageCreated(context.WithoutCancel(ctx), msg, others)

	e.log.Info("engine.message.sent",
		"conversation_id", msg.ConversationID,
		"message_id", msg.MessageID,
		"sender_id", msg.SenderID,
		"delivered", rep.Delivered,
		"failed", rep.Failed,
	)
}

// handleTyping updates the ephemeral typing index and notifies the OTHER
// users currently viewing the conversation. Typing is not delivered to the
// full participant list: undelivered-while-offline is acceptable.
func (e *Engine) handleTyping(ctx context.Context, sender *Client, ev v1.ClientEvent) {
	if !e.authorize(ctx, sender, ev.ConversationID) {
		return
	}

	e.typing.SetTyping(ev.ConversationID, sender.UserID, ev.IsTyping)

	out := v1.NewTypingStatus(ev.ConversationID, sender.UserID, ev.IsTyping)
	e.broadcast(e.members.MembersOf(ev.ConversationID), sender.UserID, out)
}

// handleReadMessages marks unread messages read, then notifies every user
// currently viewing the conversation (reader included).
func (e *Engine) handleReadMessages(ctx context.Context, sender *Client, ev v1.ClientEvent) {
	if !e.authorize(ctx, sender, ev.ConversationID) {
		return
	}

	if err := e.store.MarkRead(ctx, ev.ConversationID, sender.UserID); err != nil {
		if errors.Is(err, ErrNotParticipant) {
			e.dropUnauthorized(sender, ev)
			return
		}
		e.persistenceFailure(sender, ev, "read_failed", err)
		return
	}

	out := v1.NewMessagesRead(ev.ConversationID, sender.UserID)
	e.broadcast(e.members.MembersOf(ev.ConversationID), "", out)
}

// authorize checks the durable participant record, dropping the event
// silently when the check fails or errors. Silence is deliberate: an
// explicit rejection would leak conversation membership to a probing client.
func (e *Engine) authorize(ctx context.Context, sender *Client, conversationID string) bool {
	ok, err := e.store.IsParticipant(ctx, conversationID, sender.UserID)
	if err != nil {
		metricEventsDropped.WithLabelValues(dropReasonPersistence).Inc()
		e.log.Error("engine.authorize.fail",
			"conversation_id", conversationID, "user_id", sender.UserID, "err", err)
		return false
	}
	if !ok {
		metricEventsDropped.WithLabelValues(dropReasonUnauthorized).Inc()
		e.log.Info("engine.event.unauthorized",
			"conversation_id", conversationID, "user_id", sender.UserID)
		return false
	}
	return true
}

func (e *Engine) dropUnauthorized(sender *Client, ev v1.ClientEvent) {
	metricEventsDropped.WithLabelValues(dropReasonUnauthorized).Inc()
	e.log.Info("engine.event.unauthorized",
		"conversation_id", ev.ConversationID, "user_id", sender.UserID, "type", ev.Type)
}

// persistenceFailure surfaces a collaborator error to the originating
// sender only. Other recipients never observe the failed event.
func (e *Engine) persistenceFailure(sender *Client, ev v1.ClientEvent, code string, err error) {
	metricEventsDropped.WithLabelValues(dropReasonPersistence).Inc()
	e.log.Error("engine.persistence.fail",
		"conversation_id", ev.ConversationID, "user_id", sender.UserID, "type", ev.Type, "err", err)

	payload, mErr := v1.Encode(v1.NewError(code, "could not process event"))
	if mErr != nil {
		return
	}
	select {
	case sender.Send <- payload:
	default:
	}
}

// broadcast marshals the event once and delivers it to each listed user
// except exclude. Per-user delivery is independent and best-effort.
func (e *Engine) broadcast(userIDs []string, exclude string, event any) DeliveryReport {
	var rep DeliveryReport

	payload, err := v1.Encode(event)
	if err != nil {
		e.log.Error("engine.broadcast.encode_fail", "err", err)
		return rep
	}

	for _, userID := range userIDs {
		if userID == exclude {
			continue
		}
		rep.Add(e.registry.Deliver(userID, payload))
	}
	return rep
}

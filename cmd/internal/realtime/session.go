package realtime

import (
	"log/slog"

	v1 "github.com/vuducc/Social-app/contracts/chat/v1"
)

// SessionController orchestrates session lifecycle across the connection
// registry and the membership/typing trackers, and announces user status to
// the rest of the fleet. The gateway calls OnConnect exactly once per
// accepted channel, and converges both the clean and the abnormal close
// paths onto OnDisconnect; the registry's idempotent Unregister guarantees
// the cascade runs at most once even when those paths race.
type SessionController struct {
	log      *slog.Logger
	registry *Registry
	members  *MembershipTracker
	typing   *TypingTracker
}

// NewSessionController wires the lifecycle controller over shared trackers.
func NewSessionController(
	log *slog.Logger,
	registry *Registry,
	members *MembershipTracker,
	typing *TypingTracker,
) *SessionController {
	return &SessionController{
		log:      log,
		registry: registry,
		members:  members,
		typing:   typing,
	}
}

// OnConnect registers an authenticated channel. If it is the user's first
// live channel, an online announcement goes to every OTHER connected user.
func (s *SessionController) OnConnect(userID string, c *Client) {
	wasFirst := s.registry.Register(userID, c)
	if !wasFirst {
		return
	}

	s.announce(userID, true)
	s.log.Info("session.online", "user_id", userID)
}

// OnDisconnect removes a channel. When it was the user's last one, the
// cleanup cascade runs in mandatory order: unregister, purge membership,
// purge typing, then announce offline. Announcing before purging could let
// a racing event observe a phantom offline-but-still-typing user.
func (s *SessionController) OnDisconnect(userID string, c *Client) {
	nowOffline := s.registry.Unregister(userID, c)
	if !nowOffline {
		return
	}

	left := s.members.PurgeUser(userID)
	cleared := s.typing.PurgeUser(userID)
	s.announce(userID, false)

	s.log.Info("session.offline",
		"user_id", userID,
		"conversations_left", len(left),
		"typing_cleared", len(cleared),
	)
}

func (s *SessionController) announce(userID string, isOnline bool) {
	payload, err := v1.Encode(v1.NewUserStatus(userID, isOnline))
	if err != nil {
		s.log.Error("session.announce.encode_fail", "err", err)
		return
	}
	s.registry.Fanout(payload, userID)
}

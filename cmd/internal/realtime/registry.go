package realtime

import (
	"log/slog"
	"sync"
)

// DeliveryReport summarizes a best-effort delivery attempt.
// Callers generally ignore it except for logging and metrics.
type DeliveryReport struct {
	Delivered int
	Failed    int
}

// Add folds another report into this one.
func (r *DeliveryReport) Add(other DeliveryReport) {
	r.Delivered += other.Delivered
	r.Failed += other.Failed
}

// Registry tracks every live websocket session per user.
//
// Concurrency guarantees:
//   - Register/Unregister are atomic with respect to the "first channel" /
//     "last channel" decision, so two racing disconnects can never both
//     observe "I was last".
//   - Deliver never blocks: sends are non-blocking against each client's
//     bounded queue, and a client that is already shutting down is pruned
//     as a side effect (self-healing).
//
// Invariant: a user key always maps to a non-empty session set; the key is
// deleted atomically when its set drains.
type Registry struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[string]map[*Client]struct{}
}

// NewRegistry constructs an empty connection registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		conns: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a session under userID and reports whether it is the
// user's first live session (i.e., the user just came online).
func (r *Registry) Register(userID string, c *Client) (wasFirst bool) {
	if userID == "" || c == nil {
		return false
	}

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Client]struct{}, 2)
		r.conns[userID] = set
	}
	set[c] = struct{}{}
	total := len(r.conns)
	r.mu.Unlock()

	metricConnectionsOpen.Inc()
	metricOnlineUsers.Set(float64(total))
	r.log.Info("registry.register",
		"user_id", userID, "session_id", c.SessionID, "first", !ok, "online_users", total)
	return !ok
}

// Unregister removes a session and reports whether the user now has zero
// remaining sessions (went offline). Removing a session that was never
// registered, or is already removed, is a no-op returning false, so racing
// disconnect paths never double-cleanup.
func (r *Registry) Unregister(userID string, c *Client) (nowOffline bool) {
	if userID == "" || c == nil {
		return false
	}

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, present := set[c]; !present {
		r.mu.Unlock()
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
		nowOffline = true
	}
	total := len(r.conns)
	r.mu.Unlock()

	metricConnectionsOpen.Dec()
	metricOnlineUsers.Set(float64(total))
	r.log.Info("registry.unregister",
		"user_id", userID, "session_id", c.SessionID, "offline", nowOffline)
	return nowOffline
}

// IsOnline reports whether at least one session is registered for userID.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID]) > 0
}

// OnlineUsers returns a snapshot of all user identities with a live session.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		out = append(out, userID)
	}
	return out
}

// Deliver sends payload to every live session of userID. Each session send
// is independent: a session that is already shutting down is removed from
// the registry and counted as failed; a full queue drops the payload for
// that session without pruning it. Delivery to an unknown user degrades
// silently (chat delivery over the live channel is best-effort).
func (r *Registry) Deliver(userID string, payload []byte) DeliveryReport {
	var rep DeliveryReport

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return rep
	}

	var dead []*Client
	for c := range set {
		if c.Closed() {
			dead = append(dead, c)
			rep.Failed++
			continue
		}
		select {
		case c.Send <- payload:
			rep.Delivered++
		default:
			// Drop rather than block the whole fan-out.
			rep.Failed++
		}
	}
	for _, c := range dead {
		delete(set, c)
	}
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	total := len(r.conns)
	r.mu.Unlock()

	metricDeliveries.Add(float64(rep.Delivered))
	metricDeliveryFailures.Add(float64(rep.Failed))

	if len(dead) > 0 {
		metricConnectionsOpen.Sub(float64(len(dead)))
		metricOnlineUsers.Set(float64(total))
		r.log.Info("registry.prune", "user_id", userID, "pruned", len(dead))
	}
	return rep
}

// Fanout delivers payload to every online user except excludeUserID.
// Used for the global user_status announcements.
func (r *Registry) Fanout(payload []byte, excludeUserID string) DeliveryReport {
	var rep DeliveryReport
	for _, userID := range r.OnlineUsers() {
		if userID == excludeUserID {
			continue
		}
		rep.Add(r.Deliver(userID, payload))
	}
	return rep
}

package realtime

import (
	"sync"

	"github.com/schoolgate/schoolgate/pkg/metrics"
)

// Event represents a JSON payload delivered to realtime subscribers.
// Workflow event names: notification:new, notification:updated, notification:read.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Session is a live client connection able to receive events. Deliver must not
// block; it reports false when the session cannot accept the event.
type Session interface {
	Deliver(Event) bool
}

// Registry owns the user-id to live-session routing table. It is rebuilt from
// scratch on process restart and must never be treated as durable state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[Session]struct{}
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[Session]struct{}),
	}
}

// Register attaches a session to the supplied user id.
func (r *Registry) Register(userID string, s Session) {
	if userID == "" || s == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[userID] == nil {
		r.sessions[userID] = make(map[Session]struct{})
	}
	r.sessions[userID][s] = struct{}{}
	metrics.RealtimeSessions.Inc()
}

// Unregister detaches a session; unknown sessions are ignored.
func (r *Registry) Unregister(userID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userSessions := r.sessions[userID]
	if _, ok := userSessions[s]; !ok {
		return
	}

	delete(userSessions, s)
	if len(userSessions) == 0 {
		delete(r.sessions, userID)
	}
	metrics.RealtimeSessions.Dec()
}

// SessionsFor returns the number of live sessions for a user.
func (r *Registry) SessionsFor(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}

// EmitToUser delivers an event to every live session of the supplied user.
// Users with no connected session are silently skipped; there is no queuing
// and no retry.
func (r *Registry) EmitToUser(userID string, event Event) {
	if userID == "" {
		return
	}

	r.mu.RLock()
	targets := make([]Session, 0, len(r.sessions[userID]))
	for s := range r.sessions[userID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		_ = s.Deliver(event)
	}
}

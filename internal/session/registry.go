package session

import (
	"errors"
	"sync"
	"time"

	"github.com/chatwire/chatwire/internal/domain"
)

var (
	// ErrUnknownSession marks operations referencing a connection with no
	// registered session.
	ErrUnknownSession = errors.New("unknown session")

	// ErrDuplicateConnection marks a second Register for a live connection
	// ID without an intervening Unregister.
	ErrDuplicateConnection = errors.New("connection already registered")
)

// Registry is the source of truth for who is online. It maps connection
// IDs to presence records and is the only writer of that state; all
// mutation goes through its mutex.
//
// Username uniqueness is not enforced here. Two sessions may share a
// username; username-keyed routing resolves duplicates deterministically
// (see Router).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
	}
}

// Register creates a presence record for connID.
func (r *Registry) Register(connID, username string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; exists {
		return domain.Session{}, ErrDuplicateConnection
	}

	sess := &domain.Session{
		ConnectionID: connID,
		Username:     username,
		IsOnline:     true,
		JoinedAt:     time.Now(),
	}
	r.sessions[connID] = sess
	return *sess, nil
}

// Unregister removes the presence record atomically and returns it.
func (r *Registry) Unregister(connID string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[connID]
	if !exists {
		return domain.Session{}, ErrUnknownSession
	}
	delete(r.sessions, connID)
	return *sess, nil
}

func (r *Registry) Get(connID string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[connID]
	if !exists {
		return domain.Session{}, ErrUnknownSession
	}
	return *sess, nil
}

// List returns a snapshot of all live sessions. Order is unspecified.
func (r *Registry) List() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, *sess)
	}
	return out
}

// SetRoom records the session's current room. Unknown connections are a
// no-op; the membership index is updated by its own Join/Leave.
func (r *Registry) SetRoom(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, exists := r.sessions[connID]; exists {
		sess.CurrentRoom = room
	}
}

// Package notify is the client-local notification aggregator: a bounded,
// append-only list with derived unread state. It is independent of the
// transport; callers feed it the events they receive.
package notify

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chatwire/chatwire/internal/domain"
)

type Kind string

const (
	KindMention        Kind = "mention"
	KindPrivateMessage Kind = "private_message"
	KindPresence       Kind = "presence"
	KindRoomJoin       Kind = "room_join"
)

// DefaultCap bounds the list: the latest 50 notifications are kept,
// oldest dropped.
const DefaultCap = 50

type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	From      string    `json:"from,omitempty"`
	Room      string    `json:"room,omitempty"`
	Message   string    `json:"message"`
	Text      string    `json:"text,omitempty"`
}

// Aggregator holds notifications newest-first. The unread count is always
// derived from the entries, so it can never drift or go negative.
type Aggregator struct {
	mu      sync.Mutex
	cap     int
	seq     int64
	entries []Notification
}

func NewAggregator(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Aggregator{cap: capacity}
}

// Add prepends a notification, evicting the oldest entry past capacity.
func (a *Aggregator) Add(n Notification) Notification {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	n.ID = strconv.FormatInt(a.seq, 10)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	a.entries = append([]Notification{n}, a.entries...)
	if len(a.entries) > a.cap {
		a.entries = a.entries[:a.cap]
	}
	return n
}

// MarkRead marks one notification read. Marking an already-read or
// missing entry changes nothing.
func (a *Aggregator) MarkRead(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.entries {
		if a.entries[i].ID == id {
			a.entries[i].Read = true
			return true
		}
	}
	return false
}

func (a *Aggregator) MarkAllRead() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.entries {
		a.entries[i].Read = true
	}
}

func (a *Aggregator) Remove(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.entries {
		if a.entries[i].ID == id {
			a.entries = append(a.entries[:i], a.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
}

// List returns a snapshot, newest first.
func (a *Aggregator) List() []Notification {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Notification, len(a.entries))
	copy(out, a.entries)
	return out
}

// Unread is the count of entries with Read == false.
func (a *Aggregator) Unread() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, n := range a.entries {
		if !n.Read {
			count++
		}
	}
	return count
}

// NoteMessage inspects a room message for a mention of self and records a
// notification when one is found. The match is a case-sensitive @self
// token; own messages never mention.
func (a *Aggregator) NoteMessage(self string, msg domain.Message) (Notification, bool) {
	if msg.Username == self || !ContainsMention(msg.Text, self) {
		return Notification{}, false
	}

	n := a.Add(Notification{
		Kind:    KindMention,
		From:    msg.Username,
		Room:    msg.Room,
		Message: fmt.Sprintf("%s mentioned you in #%s", msg.Username, msg.Room),
		Text:    msg.Text,
	})
	return n, true
}

// NotePrivate records a notification for an incoming private message,
// unless the private-message view is already active or the message is the
// sender's own echo.
func (a *Aggregator) NotePrivate(pm domain.PrivateMessage, viewActive bool) (Notification, bool) {
	if pm.IsOwnMessage || viewActive {
		return Notification{}, false
	}

	n := a.Add(Notification{
		Kind:    KindPrivateMessage,
		From:    pm.FromUsername,
		Message: fmt.Sprintf("New message from %s", pm.FromUsername),
		Text:    pm.Text,
	})
	return n, true
}

// ContainsMention reports whether text contains @username as a whole
// token. The comparison is case-sensitive.
func ContainsMention(text, username string) bool {
	if username == "" {
		return false
	}
	needle := "@" + username
	for i := 0; i+len(needle) <= len(text); i++ {
		if text[i:i+len(needle)] != needle {
			continue
		}
		end := i + len(needle)
		if end == len(text) || !isWordByte(text[end]) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

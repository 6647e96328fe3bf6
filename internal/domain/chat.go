package domain

import "time"

type MessageKind string

const (
	KindSystem  MessageKind = "system"
	KindUser    MessageKind = "user"
	KindPrivate MessageKind = "private"
)

// Session is a live connection's identity and current room binding.
type Session struct {
	ConnectionID string    `json:"id"`
	Username     string    `json:"username"`
	IsOnline     bool      `json:"isOnline"`
	JoinedAt     time.Time `json:"joinedAt"`
	CurrentRoom  string    `json:"currentRoom"`
}

// Message is one entry of the durable per-room log. Immutable after append
// except Reactions, which clients merge from reaction broadcasts.
type Message struct {
	ID        string            `json:"id"`
	Room      string            `json:"room"`
	Text      string            `json:"text"`
	Username  string            `json:"username"`
	UserID    string            `json:"userId"`
	Kind      MessageKind       `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Reactions map[string]string `json:"reactions"`
}

// ApplyReaction merges a reaction broadcast into the message. At most one
// reaction per username, latest overwrite wins.
func (m *Message) ApplyReaction(username, reaction string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]string)
	}
	m.Reactions[username] = reaction
}

// PrivateMessage is routed by username lookup and never persisted. It does
// not survive a process restart.
type PrivateMessage struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	FromUsername string      `json:"fromUsername"`
	ToUsername   string      `json:"toUsername"`
	Kind         MessageKind `json:"kind"`
	Timestamp    time.Time   `json:"timestamp"`
	Read         bool        `json:"read"`
	IsOwnMessage bool        `json:"isOwnMessage"`
}

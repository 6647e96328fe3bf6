package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names shared with the browser and CLI clients.
const (
	// client -> server
	EventUserJoin           = "user-join"
	EventSendMessage        = "send-message"
	EventJoinRoom           = "join-room"
	EventTypingStart        = "typing-start"
	EventTypingStop         = "typing-stop"
	EventReactToMessage     = "react-to-message"
	EventSendPrivateMessage = "send-private-message"
	EventLoadMoreMessages   = "load-more-messages"
	EventSearchMessages     = "search-messages"
	EventGetOnlineUsers     = "get-online-users"
	EventPing               = "ping"

	// server -> client
	EventWelcome            = "welcome"
	EventNewMessage         = "new-message"
	EventRoomJoined         = "room-joined"
	EventUserJoinedRoom     = "user-joined-room"
	EventUserTyping         = "user-typing"
	EventMessageReaction    = "message-reaction"
	EventNewPrivateMessage  = "new-private-message"
	EventMoreMessagesLoaded = "more-messages-loaded"
	EventSearchResults      = "search-results"
	EventUserJoined         = "user-joined"
	EventUserLeft           = "user-left"
	EventOnlineUsersList    = "online-users-list"
	EventPong               = "pong"
	EventError              = "error"
)

// Event is the wire envelope for both directions of the socket.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope. Marshal failures are
// programming errors on our own types, so they panic.
func NewEvent(eventType string, payload any) Event {
	if payload == nil {
		return Event{Type: eventType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("domain: marshal %s payload: %v", eventType, err))
	}
	return Event{Type: eventType, Payload: data}
}

var ErrMalformedPayload = errors.New("malformed event payload")

// DecodePayload strictly decodes an inbound payload into dst and runs its
// validation. Payloads that do not match the schema are rejected at the
// boundary rather than propagated with missing fields.
func DecodePayload(e Event, dst Validator) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s: empty payload", ErrMalformedPayload, e.Type)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, e.Type, err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, e.Type, err)
	}
	return nil
}

type Validator interface {
	Validate() error
}

// Inbound payload schemas.

type UserJoinPayload struct {
	Username string `json:"username"`
}

func (p UserJoinPayload) Validate() error {
	if p.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

func (p SendMessagePayload) Validate() error {
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type JoinRoomPayload struct {
	Room string `json:"room"`
}

func (p JoinRoomPayload) Validate() error {
	if p.Room == "" {
		return errors.New("room is required")
	}
	return nil
}

type TypingPayload struct {
	Room string `json:"room"`
}

// Validate always passes: an empty room falls back to the session's
// current room at routing time.
func (p TypingPayload) Validate() error { return nil }

type ReactPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

func (p ReactPayload) Validate() error {
	if p.MessageID == "" {
		return errors.New("messageId is required")
	}
	if p.Reaction == "" {
		return errors.New("reaction is required")
	}
	return nil
}

type PrivateMessagePayload struct {
	ToUsername string `json:"toUsername"`
	Text       string `json:"text"`
}

func (p PrivateMessagePayload) Validate() error {
	if p.ToUsername == "" {
		return errors.New("toUsername is required")
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type LoadMorePayload struct {
	Room   string `json:"room"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (p LoadMorePayload) Validate() error {
	if p.Room == "" {
		return errors.New("room is required")
	}
	if p.Limit <= 0 {
		return errors.New("limit must be positive")
	}
	if p.Offset < 0 {
		return errors.New("offset must not be negative")
	}
	return nil
}

type SearchPayload struct {
	Room  string `json:"room"`
	Query string `json:"query"`
}

func (p SearchPayload) Validate() error {
	if p.Room == "" {
		return errors.New("room is required")
	}
	return nil
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func (p PingPayload) Validate() error {
	if p.Timestamp <= 0 {
		return errors.New("timestamp is required")
	}
	return nil
}

// Outbound payload shapes.

type WelcomePayload struct {
	Message        string    `json:"message"`
	User           Session   `json:"user"`
	OnlineUsers    []Session `json:"onlineUsers"`
	AvailableRooms []string  `json:"availableRooms"`
	RecentMessages []Message `json:"recentMessages"`
}

type RoomJoinedPayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

type UserJoinedRoomPayload struct {
	User    Session `json:"user"`
	Room    string  `json:"room"`
	Message string  `json:"message"`
}

type UserTypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
	Room     string `json:"room"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	Username  string `json:"username"`
	Room      string `json:"room"`
}

type MoreMessagesPayload struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

type SearchResultsPayload struct {
	Query   string    `json:"query"`
	Results []Message `json:"results"`
	Room    string    `json:"room"`
}

type PresencePayload struct {
	User        Session   `json:"user"`
	Message     string    `json:"message"`
	OnlineUsers []Session `json:"onlineUsers"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

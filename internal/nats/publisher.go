package nats

import (
	"encoding/json"
	"fmt"

	"github.com/chatwire/chatwire/internal/domain"
)

// envelope wraps an event on the broker. Exclude names a connection ID
// that must not see this event (the Socket.IO socket.to semantics).
type envelope struct {
	Event   domain.Event `json:"event"`
	Exclude string       `json:"exclude,omitempty"`
}

func (c *Client) publish(subject string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize event %s: %w", env.Event.Type, err)
	}
	return c.Conn.Publish(subject, data)
}

// ToRoom fans an event out to every subscriber of room, minus excludeConn.
func (c *Client) ToRoom(room string, ev domain.Event, excludeConn string) error {
	return c.publish(roomSubject(room), envelope{Event: ev, Exclude: excludeConn})
}

// ToConn delivers an event to exactly one connection.
func (c *Client) ToConn(connID string, ev domain.Event) error {
	return c.publish(connSubject(connID), envelope{Event: ev})
}

// ToAll fans an event out to every connected session, minus excludeConn.
func (c *Client) ToAll(ev domain.Event, excludeConn string) error {
	return c.publish(globalSubject, envelope{Event: ev, Exclude: excludeConn})
}

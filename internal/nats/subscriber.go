package nats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/chatwire/chatwire/internal/domain"
)

// SubscribeRoom subscribes a connection to a room's subject. Events whose
// envelope excludes this connection are dropped before the handler runs.
// Subscribing the same connection to the same room twice is a no-op.
func (c *Client) SubscribeRoom(room, connID string, handle func(domain.Event)) error {
	return c.subscribe(roomSubject(room), roomSubKey(room, connID), connID, handle)
}

// UnsubscribeRoom removes a connection's room subscription. A missing
// subscription is not an error.
func (c *Client) UnsubscribeRoom(room, connID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := roomSubKey(room, connID)
	if sub, exists := c.SubMapping[key]; exists {
		if err := sub.Unsubscribe(); err != nil {
			return fmt.Errorf("failed to unsubscribe from room %s: %w", room, err)
		}
		delete(c.SubMapping, key)
	}
	return nil
}

// SubscribeDirect wires a connection's private delivery subject.
func (c *Client) SubscribeDirect(connID string, handle func(domain.Event)) error {
	return c.subscribe(connSubject(connID), directSubKey(connID), connID, handle)
}

// SubscribeGlobal wires a connection to the presence event stream.
func (c *Client) SubscribeGlobal(connID string, handle func(domain.Event)) error {
	return c.subscribe(globalSubject, globalSubKey(connID), connID, handle)
}

// DropConnection removes every subscription held for connID.
func (c *Client) DropConnection(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	suffix := ":" + connID
	for key, sub := range c.SubMapping {
		if key == directSubKey(connID) || key == globalSubKey(connID) || strings.HasSuffix(key, suffix) {
			_ = sub.Unsubscribe()
			delete(c.SubMapping, key)
		}
	}
}

func (c *Client) subscribe(subject, key, connID string, handle func(domain.Event)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.SubMapping[key]; exists {
		return nil
	}

	sub, err := c.Conn.Subscribe(subject, func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return // skip invalid payloads
		}
		if env.Exclude != "" && env.Exclude == connID {
			return
		}
		handle(env.Event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.SubMapping[key] = sub
	return nil
}

package nats

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// Subjects: chat.room.<name> fans out to a room's subscribers,
// chat.conn.<id> carries direct deliveries for one connection, and
// chat.events.global carries presence events every connection sees.
const (
	roomSubjectPrefix = "chat.room."
	connSubjectPrefix = "chat.conn."
	globalSubject     = "chat.events.global"
)

type Client struct {
	Conn       *nats.Conn
	SubMapping map[string]*nats.Subscription // subscriptions keyed per connection
	mu         sync.Mutex
}

func NewClient(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{
		Conn:       nc,
		SubMapping: make(map[string]*nats.Subscription),
	}, nil
}

func (c *Client) Close() {
	c.CleanupSubscriptions()
	c.Conn.Close()
}

// CleanupSubscriptions removes all active subscriptions for this client.
// Unsubscribe errors are ignored so cleanup always completes.
func (c *Client) CleanupSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.SubMapping {
		_ = sub.Unsubscribe()
		delete(c.SubMapping, key)
	}
}

func roomSubject(room string) string   { return roomSubjectPrefix + room }
func connSubject(connID string) string { return connSubjectPrefix + connID }

func roomSubKey(room, connID string) string { return "room:" + room + ":" + connID }
func directSubKey(connID string) string     { return "direct:" + connID }
func globalSubKey(connID string) string     { return "global:" + connID }

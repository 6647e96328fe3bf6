package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/router"
	"github.com/chatwire/chatwire/pkg/logger"
)

const (
	writeWait    = 30 * time.Second
	readWait     = 300 * time.Second
	pingInterval = 240 * time.Second
	readLimit    = 1 << 20
	sendBuffer   = 256
)

// Connection represents a single WebSocket connection to a client. Events
// arriving on the broker land in Send via Deliver; ReadPump dispatches
// inbound intents to the router.
type Connection struct {
	ID     string
	Ws     *websocket.Conn
	Send   chan domain.Event
	Hub    *Hub
	Router *router.Router
	Logger logger.Logger

	joined bool
}

func NewConnection(id string, ws *websocket.Conn, hub *Hub, rt *router.Router, logg logger.Logger) *Connection {
	return &Connection{
		ID:     id,
		Ws:     ws,
		Send:   make(chan domain.Event, sendBuffer),
		Hub:    hub,
		Router: rt,
		Logger: logg.WithFields(map[string]interface{}{"conn": id}),
	}
}

// Deliver queues an event for the client. Slow consumers lose events
// rather than blocking the broker callback.
func (c *Connection) Deliver(ev domain.Event) {
	select {
	case c.Send <- ev:
	default:
		c.Logger.Warnf("send buffer full, dropping %s", ev.Type)
	}
}

// ReadPump consumes inbound frames until the socket errors, then tears
// the session down.
func (c *Connection) ReadPump() {
	defer func() {
		c.Hub.Drop(c)
		c.Router.Disconnect(c.ID)
		c.Ws.Close()
	}()

	c.Ws.SetReadLimit(readLimit)
	c.Ws.SetReadDeadline(time.Now().Add(readWait))
	c.Ws.SetPongHandler(func(string) error {
		c.Ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		var ev domain.Event
		if err := c.Ws.ReadJSON(&ev); err != nil {
			c.Logger.Debugf("read error: %v", err)
			return
		}
		c.dispatch(ev)
	}
}

func (c *Connection) dispatch(ev domain.Event) {
	switch ev.Type {
	case domain.EventPing:
		var p domain.PingPayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Deliver(domain.NewEvent(domain.EventPong, domain.PongPayload{Timestamp: p.Timestamp}))

	case domain.EventUserJoin:
		if c.joined {
			c.Logger.Debugf("duplicate user-join ignored")
			return
		}
		var p domain.UserJoinPayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		if _, err := c.Router.Welcome(c.ID, p.Username, c.Deliver); err != nil {
			c.Logger.Errorf("welcome failed: %v", err)
			return
		}
		c.joined = true

	case domain.EventSendMessage:
		var p domain.SendMessagePayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.Send(c.ID, p.Text)

	case domain.EventJoinRoom:
		var p domain.JoinRoomPayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.JoinRoom(c.ID, p.Room, c.Deliver)

	case domain.EventTypingStart, domain.EventTypingStop:
		var p domain.TypingPayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.Typing(c.ID, p.Room, ev.Type == domain.EventTypingStart)

	case domain.EventReactToMessage:
		var p domain.ReactPayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.React(c.ID, p.MessageID, p.Reaction)

	case domain.EventSendPrivateMessage:
		var p domain.PrivateMessagePayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.SendPrivate(c.ID, p.ToUsername, p.Text)

	case domain.EventLoadMoreMessages:
		var p domain.LoadMorePayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.LoadMore(c.ID, p.Room, p.Offset, p.Limit)

	case domain.EventSearchMessages:
		var p domain.SearchPayload
		if err := domain.DecodePayload(ev, &p); err != nil {
			c.Logger.Debugf("%v", err)
			return
		}
		c.Router.SearchMessages(c.ID, p.Room, p.Query)

	case domain.EventGetOnlineUsers:
		c.Router.OnlineUsers(c.ID)

	default:
		c.Logger.Debugf("unknown event type %q dropped", ev.Type)
	}
}

// WritePump drains Send onto the socket and keeps the connection alive
// with control pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Ws.WriteJSON(ev); err != nil {
				c.Logger.Debugf("write error: %v", err)
				return
			}
		case <-ticker.C:
			c.Ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Logger.Debugf("ping error: %v", err)
				return
			}
		}
	}
}

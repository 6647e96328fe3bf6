package websocket

import "sync"

// Hub tracks live websocket connections. Fan-out itself rides the broker;
// the hub only owns connection lifecycle so shutdown can close everything.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Connection]bool
	Register   chan *Connection
	Unregister chan *Connection
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Connection]bool),
		Register:   make(chan *Connection),
		Unregister: make(chan *Connection),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's main loop for handling connection registration.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.addClient(conn)
		case conn := <-h.Unregister:
			h.removeClient(conn)
		case <-h.done:
			return
		}
	}
}

// Drop unregisters conn through the run loop, falling back to direct
// removal once the loop has stopped so a late-exiting pump never blocks
// on a channel nobody drains.
func (h *Hub) Drop(conn *Connection) {
	select {
	case h.Unregister <- conn:
	case <-h.done:
		h.removeClient(conn)
	}
}

// Close gracefully shuts down the Hub, closing all connections.
func (h *Hub) Close() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		close(conn.Send)
		conn.Ws.Close()
		delete(h.clients, conn)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

func (h *Hub) removeClient(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.clients[conn]; exists {
		delete(h.clients, conn)
		close(conn.Send)
	}
}

package session

import "sync"

// Membership is the derived room -> connection-set index. It always equals
// the union of sessions grouped by current room, and is rebuilt only
// through Join, Leave and disconnect handling, never mutated directly.
//
// A session belongs to at most one room at a time: Join is defined as
// leave-then-join under one lock, so no interleaved reader can observe a
// connection in two rooms.
type Membership struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]struct{}
	current map[string]string
}

func NewMembership() *Membership {
	return &Membership{
		rooms:   make(map[string]map[string]struct{}),
		current: make(map[string]string),
	}
}

// Join moves connID into room and reports the room it left. Joining the
// room the connection is already in is a no-op; switched is false and the
// caller still confirms to the client.
func (m *Membership) Join(connID, room string) (previous string, switched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous = m.current[connID]
	if previous == room {
		return previous, false
	}

	if previous != "" {
		m.removeLocked(connID, previous)
	}

	if m.rooms[room] == nil {
		m.rooms[room] = make(map[string]struct{})
	}
	m.rooms[room][connID] = struct{}{}
	m.current[connID] = room
	return previous, true
}

// Leave removes connID from its room. Unknown connections are a no-op.
func (m *Membership) Leave(connID string) (room string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok = m.current[connID]
	if !ok {
		return "", false
	}
	m.removeLocked(connID, room)
	delete(m.current, connID)
	return room, true
}

// MembersOf returns a snapshot of the connection IDs currently in room.
func (m *Membership) MembersOf(room string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]string, 0, len(m.rooms[room]))
	for connID := range m.rooms[room] {
		members = append(members, connID)
	}
	return members
}

// RoomOf returns the room connID currently belongs to, if any.
func (m *Membership) RoomOf(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.current[connID]
	return room, ok
}

// Rooms lists the rooms that currently have members.
func (m *Membership) Rooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (m *Membership) removeLocked(connID, room string) {
	if members, exists := m.rooms[room]; exists {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinAddsMember(t *testing.T) {
	m := NewMembership()

	previous, switched := m.Join("conn-1", "general")
	assert.Empty(t, previous)
	assert.True(t, switched)
	assert.ElementsMatch(t, []string{"conn-1"}, m.MembersOf("general"))

	room, ok := m.RoomOf("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "general", room)
}

func TestJoinIsLeaveThenJoin(t *testing.T) {
	m := NewMembership()

	m.Join("conn-1", "general")
	previous, switched := m.Join("conn-1", "tech")

	assert.Equal(t, "general", previous)
	assert.True(t, switched)
	assert.Empty(t, m.MembersOf("general"), "the old room must not retain the connection")
	assert.ElementsMatch(t, []string{"conn-1"}, m.MembersOf("tech"))
}

func TestJoinSameRoomIsNoOp(t *testing.T) {
	m := NewMembership()

	m.Join("conn-1", "general")
	previous, switched := m.Join("conn-1", "general")

	assert.Equal(t, "general", previous)
	assert.False(t, switched)
	assert.ElementsMatch(t, []string{"conn-1"}, m.MembersOf("general"))
}

func TestLeave(t *testing.T) {
	m := NewMembership()

	m.Join("conn-1", "general")
	m.Join("conn-2", "general")

	room, ok := m.Leave("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "general", room)
	assert.ElementsMatch(t, []string{"conn-2"}, m.MembersOf("general"))

	_, ok = m.RoomOf("conn-1")
	assert.False(t, ok)
}

func TestLeaveUnknownIsNoOp(t *testing.T) {
	m := NewMembership()

	_, ok := m.Leave("ghost")
	assert.False(t, ok)
}

func TestEmptyRoomsAreDropped(t *testing.T) {
	m := NewMembership()

	m.Join("conn-1", "general")
	m.Join("conn-1", "tech")
	m.Leave("conn-1")

	assert.Empty(t, m.Rooms())
}

func TestSingleRoomAtATime(t *testing.T) {
	m := NewMembership()

	m.Join("conn-1", "general")
	m.Join("conn-1", "random")
	m.Join("conn-1", "tech")

	// The connection appears in exactly one member set.
	total := 0
	for _, room := range []string{"general", "random", "tech"} {
		for _, id := range m.MembersOf(room) {
			if id == "conn-1" {
				total++
			}
		}
	}
	assert.Equal(t, 1, total)
}

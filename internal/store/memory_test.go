package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/domain"
)

func seedRoom(t *testing.T, s *MemoryStore, room string, n int) []domain.Message {
	t.Helper()
	msgs := make([]domain.Message, 0, n)
	for i := 1; i <= n; i++ {
		stored, err := s.Append(context.Background(), domain.Message{
			Room:      room,
			Text:      fmt.Sprintf("message %d", i),
			Username:  "alice",
			Kind:      domain.KindUser,
			Timestamp: time.Now(),
		})
		require.NoError(t, err)
		msgs = append(msgs, stored)
	}
	return msgs
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	s := NewMemoryStore(50)
	msgs := seedRoom(t, s, "general", 3)

	assert.Equal(t, "general-1", msgs[0].ID)
	assert.Equal(t, "general-2", msgs[1].ID)
	assert.Equal(t, "general-3", msgs[2].ID)

	// Sequences are per room.
	other := seedRoom(t, s, "tech", 1)
	assert.Equal(t, "tech-1", other[0].ID)
}

func TestPageReturnsMostRecentOldestFirst(t *testing.T) {
	s := NewMemoryStore(50)
	seedRoom(t, s, "general", 10)

	msgs, hasMore, err := s.Page(context.Background(), "general", 0, 3)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, msgs, 3)
	assert.Equal(t, "message 8", msgs[0].Text)
	assert.Equal(t, "message 9", msgs[1].Text)
	assert.Equal(t, "message 10", msgs[2].Text)
}

func TestPageOffsetWalksBackwards(t *testing.T) {
	s := NewMemoryStore(50)
	seedRoom(t, s, "general", 10)

	msgs, _, err := s.Page(context.Background(), "general", 3, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "message 5", msgs[0].Text)
	assert.Equal(t, "message 7", msgs[2].Text)
}

// Two consecutive pages are disjoint and their concatenation reconstructs
// the newest 2k messages in order.
func TestPaginationRoundTrip(t *testing.T) {
	const n = 20
	s := NewMemoryStore(50)
	all := seedRoom(t, s, "general", n)

	for _, k := range []int{1, 3, 7, 10} {
		first, _, err := s.Page(context.Background(), "general", 0, k)
		require.NoError(t, err)
		second, _, err := s.Page(context.Background(), "general", k, k)
		require.NoError(t, err)

		combined := append(append([]domain.Message{}, second...), first...)
		require.Len(t, combined, 2*k, "k=%d", k)

		want := all[n-2*k:]
		for i := range combined {
			assert.Equal(t, want[i].ID, combined[i].ID, "k=%d i=%d", k, i)
		}

		seen := map[string]bool{}
		for _, msg := range combined {
			assert.False(t, seen[msg.ID], "pages must be disjoint")
			seen[msg.ID] = true
		}
	}
}

func TestPageHasMoreBoundary(t *testing.T) {
	s := NewMemoryStore(50)
	seedRoom(t, s, "general", 4)

	// hasMore is len==limit, so exactly at the log boundary it still
	// reads true. That approximation is part of the contract.
	msgs, hasMore, err := s.Page(context.Background(), "general", 2, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.True(t, hasMore)

	msgs, hasMore, err = s.Page(context.Background(), "general", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, hasMore)

	msgs, hasMore, err = s.Page(context.Background(), "general", 3, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.False(t, hasMore)
}

func TestPageEmptyRoom(t *testing.T) {
	s := NewMemoryStore(50)

	msgs, hasMore, err := s.Page(context.Background(), "ghost-town", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, hasMore)
}

func TestSearchCaseInsensitiveNewestFirst(t *testing.T) {
	s := NewMemoryStore(50)
	_, err := s.Append(context.Background(), domain.Message{Room: "general", Text: "Deploy finished", Kind: domain.KindUser})
	require.NoError(t, err)
	_, err = s.Append(context.Background(), domain.Message{Room: "general", Text: "lunch time", Kind: domain.KindUser})
	require.NoError(t, err)
	_, err = s.Append(context.Background(), domain.Message{Room: "general", Text: "redeploy please", Kind: domain.KindUser})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "general", "DEPLOY")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "redeploy please", results[0].Text)
	assert.Equal(t, "Deploy finished", results[1].Text)
}

func TestSearchSkipsSystemMessages(t *testing.T) {
	s := NewMemoryStore(50)
	_, err := s.Append(context.Background(), domain.Message{Room: "general", Text: "alice joined general", Kind: domain.KindSystem})
	require.NoError(t, err)
	_, err = s.Append(context.Background(), domain.Message{Room: "general", Text: "hi alice", Kind: domain.KindUser})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "general", "alice")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hi alice", results[0].Text)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := NewMemoryStore(50)
	seedRoom(t, s, "general", 3)

	results, err := s.Search(context.Background(), "general", "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchBounded(t *testing.T) {
	s := NewMemoryStore(5)
	seedRoom(t, s, "general", 12)

	results, err := s.Search(context.Background(), "general", "message")
	require.NoError(t, err)
	assert.Len(t, results, 5)
	// Newest first.
	assert.Equal(t, "message 12", results[0].Text)
}

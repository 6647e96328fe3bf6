package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chatwire/chatwire/internal/domain"
)

// MemoryStore keeps the message log in process memory. It backs the
// "memory" storage setting and the test suites.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        map[string]int64
	byRoom     map[string][]domain.Message
	maxResults int
}

func NewMemoryStore(maxResults int) *MemoryStore {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &MemoryStore{
		seq:        make(map[string]int64),
		byRoom:     make(map[string][]domain.Message),
		maxResults: maxResults,
	}
}

func (s *MemoryStore) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[msg.Room]++
	msg.ID = fmt.Sprintf("%s-%d", msg.Room, s.seq[msg.Room])
	s.byRoom[msg.Room] = append(s.byRoom[msg.Room], msg)
	return msg, nil
}

func (s *MemoryStore) Page(_ context.Context, room string, offset, limit int) ([]domain.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.byRoom[room]
	end := len(log) - offset
	if end <= 0 || limit <= 0 {
		return []domain.Message{}, false, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	msgs := make([]domain.Message, end-start)
	copy(msgs, log[start:end])
	return msgs, len(msgs) == limit, nil
}

func (s *MemoryStore) Search(_ context.Context, room, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Message{}, nil
	}
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.byRoom[room]
	results := make([]domain.Message, 0, s.maxResults)
	for i := len(log) - 1; i >= 0 && len(results) < s.maxResults; i-- {
		msg := log[i]
		if msg.Kind != domain.KindUser {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Text), needle) {
			results = append(results, msg)
		}
	}
	return results, nil
}

func (s *MemoryStore) Close() error { return nil }

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/chatwire/chatwire/internal/domain"
)

// searchScanChunk bounds how many log entries one Redis round-trip pulls
// while scanning for search matches.
const searchScanChunk = 256

// RedisStore keeps each room's log in a sorted set scored by a per-room
// INCR sequence, which gives the ordered range scans paging needs.
type RedisStore struct {
	client     *redis.Client
	maxResults int
}

func NewRedisStore(ctx context.Context, redisURL string, maxResults int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if maxResults <= 0 {
		maxResults = 50
	}
	return &RedisStore{client: client, maxResults: maxResults}, nil
}

func seqKey(room string) string { return "chatlog:" + room + ":seq" }
func logKey(room string) string { return "chatlog:" + room + ":messages" }

func (s *RedisStore) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	seq, err := s.client.Incr(ctx, seqKey(msg.Room)).Result()
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to advance sequence for room %s: %w", msg.Room, err)
	}

	msg.ID = fmt.Sprintf("%s-%d", msg.Room, seq)
	data, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to serialize message: %w", err)
	}

	if err := s.client.ZAdd(ctx, logKey(msg.Room), redis.Z{
		Score:  float64(seq),
		Member: data,
	}).Err(); err != nil {
		return domain.Message{}, fmt.Errorf("failed to append message to room %s: %w", msg.Room, err)
	}
	return msg, nil
}

func (s *RedisStore) Page(ctx context.Context, room string, offset, limit int) ([]domain.Message, bool, error) {
	if limit <= 0 {
		return []domain.Message{}, false, nil
	}

	raw, err := s.client.ZRevRange(ctx, logKey(room), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to page room %s: %w", room, err)
	}

	// ZRevRange returns newest-first; callers want oldest-first.
	msgs := make([]domain.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, len(raw) == limit, nil
}

func (s *RedisStore) Search(ctx context.Context, room, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Message{}, nil
	}
	needle := strings.ToLower(query)

	results := make([]domain.Message, 0, s.maxResults)
	for start := int64(0); len(results) < s.maxResults; start += searchScanChunk {
		raw, err := s.client.ZRevRange(ctx, logKey(room), start, start+searchScanChunk-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to search room %s: %w", room, err)
		}
		if len(raw) == 0 {
			break
		}

		for _, entry := range raw {
			var msg domain.Message
			if err := json.Unmarshal([]byte(entry), &msg); err != nil {
				continue
			}
			if msg.Kind != domain.KindUser {
				continue
			}
			if strings.Contains(strings.ToLower(msg.Text), needle) {
				results = append(results, msg)
				if len(results) == s.maxResults {
					break
				}
			}
		}
		if len(raw) < searchScanChunk {
			break
		}
	}
	return results, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Package store holds the durable per-room message log behind the
// MessageStore port. Three backends exist: Redis (default), Postgres and
// an in-memory store used by tests and the "memory" backend.
package store

import (
	"context"

	"github.com/chatwire/chatwire/internal/domain"
)

// MessageStore is the gateway to the durable, paginated, searchable
// message log.
type MessageStore interface {
	// Append writes one message keyed by room, assigning a strictly
	// increasing per-room sequence and the message ID derived from it.
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)

	// Page returns the limit most recent messages preceding offset
	// messages from the newest end, ordered oldest-first. hasMore is
	// len(returned) == limit: a conservative approximation that can read
	// true exactly at the log boundary.
	Page(ctx context.Context, room string, offset, limit int) (msgs []domain.Message, hasMore bool, err error)

	// Search matches query as a case-insensitive substring of user
	// message text, newest-first, bounded to the store's result cap.
	// A blank query yields an empty result, not an error.
	Search(ctx context.Context, room, query string) ([]domain.Message, error)

	Close() error
}

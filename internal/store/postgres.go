package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwire/chatwire/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id       BIGSERIAL PRIMARY KEY,
	room     TEXT        NOT NULL,
	text     TEXT        NOT NULL,
	username TEXT        NOT NULL,
	user_id  TEXT        NOT NULL,
	kind     TEXT        NOT NULL,
	ts       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_room_id_idx ON messages (room, id DESC);
`

// PostgresStore is the alternate durable backend. The BIGSERIAL id is
// globally monotonic, which is strictly increasing within every room.
type PostgresStore struct {
	pool       *pgxpool.Pool
	maxResults int
}

func NewPostgresStore(ctx context.Context, connString string, maxResults int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	if maxResults <= 0 {
		maxResults = 50
	}
	return &PostgresStore{pool: pool, maxResults: maxResults}, nil
}

func (s *PostgresStore) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (room, text, username, user_id, kind, ts)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		msg.Room, msg.Text, msg.Username, msg.UserID, string(msg.Kind), msg.Timestamp,
	).Scan(&id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message to room %s: %w", msg.Room, err)
	}

	msg.ID = strconv.FormatInt(id, 10)
	return msg, nil
}

func (s *PostgresStore) Page(ctx context.Context, room string, offset, limit int) ([]domain.Message, bool, error) {
	if limit <= 0 {
		return []domain.Message{}, false, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, username, user_id, kind, ts FROM messages
		 WHERE room = $1 ORDER BY id DESC OFFSET $2 LIMIT $3`,
		room, offset, limit)
	if err != nil {
		return nil, false, fmt.Errorf("page room %s: %w", room, err)
	}

	msgs, err := scanMessages(rows, room)
	if err != nil {
		return nil, false, fmt.Errorf("page room %s: %w", room, err)
	}

	hasMore := len(msgs) == limit
	reverse(msgs)
	return msgs, hasMore, nil
}

func (s *PostgresStore) Search(ctx context.Context, room, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Message{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, username, user_id, kind, ts FROM messages
		 WHERE room = $1 AND kind = 'user' AND text ILIKE '%' || $2 || '%' ESCAPE '\'
		 ORDER BY id DESC LIMIT $3`,
		room, escapeLike(query), s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("search room %s: %w", room, err)
	}

	msgs, err := scanMessages(rows, room)
	if err != nil {
		return nil, fmt.Errorf("search room %s: %w", room, err)
	}
	return msgs, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanMessages(rows pgx.Rows, room string) ([]domain.Message, error) {
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		var (
			id   int64
			msg  domain.Message
			kind string
		)
		if err := rows.Scan(&id, &msg.Text, &msg.Username, &msg.UserID, &kind, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.ID = strconv.FormatInt(id, 10)
		msg.Room = room
		msg.Kind = domain.MessageKind(kind)
		msg.Reactions = map[string]string{}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so the query matches the
// user's text literally, as the other backends do with strings.Contains.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// Package router turns inbound connection intents into durable writes and
// fan-out broadcasts while preserving per-room ordering.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/session"
	"github.com/chatwire/chatwire/internal/store"
	"github.com/chatwire/chatwire/pkg/logger"
)

// storeTimeout bounds every durable-store round-trip so a slow write never
// wedges an append worker forever.
const storeTimeout = 5 * time.Second

// appendQueueSize bounds how many writes one room may have waiting on a
// slow store before further sends degrade to the ephemeral fallback.
const appendQueueSize = 64

// Bus is the broadcast fabric the router fans events out on. The NATS
// client implements it; tests use an in-process fake.
type Bus interface {
	ToRoom(room string, ev domain.Event, excludeConn string) error
	ToConn(connID string, ev domain.Event) error
	ToAll(ev domain.Event, excludeConn string) error

	SubscribeRoom(room, connID string, handle func(domain.Event)) error
	UnsubscribeRoom(room, connID string) error
	SubscribeDirect(connID string, handle func(domain.Event)) error
	SubscribeGlobal(connID string, handle func(domain.Event)) error
	DropConnection(connID string)
}

type Config struct {
	Rooms            []string
	DefaultRoom      string
	HistoryLimit     int
	MaxMessageLength int
}

type Router struct {
	cfg      Config
	registry *session.Registry
	members  *session.Membership
	log      store.MessageStore
	bus      Bus
	logger   logger.Logger

	mu     sync.Mutex
	queues map[string]chan appendJob
	wg     sync.WaitGroup
	done   chan struct{}
	closed bool
}

type appendJob struct {
	msg domain.Message
}

func New(cfg Config, registry *session.Registry, members *session.Membership, messageLog store.MessageStore, bus Bus, logg logger.Logger) *Router {
	return &Router{
		cfg:      cfg,
		registry: registry,
		members:  members,
		log:      messageLog,
		bus:      bus,
		logger:   logg.WithModule("router"),
		queues:   make(map[string]chan appendJob),
		done:     make(chan struct{}),
	}
}

// Stop drains every room's append queue and waits for in-flight writes.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
}

// Welcome registers the connection, joins it to the default room and
// replies with presence, room list and recent history. The history page is
// best-effort: a store failure logs and welcomes with an empty history.
func (r *Router) Welcome(connID, username string, deliver func(domain.Event)) (domain.Session, error) {
	sess, err := r.registry.Register(connID, username)
	if err != nil {
		return domain.Session{}, fmt.Errorf("register %s: %w", connID, err)
	}

	if err := r.bus.SubscribeDirect(connID, deliver); err != nil {
		_, _ = r.registry.Unregister(connID)
		return domain.Session{}, fmt.Errorf("subscribe direct for %s: %w", connID, err)
	}
	if err := r.bus.SubscribeGlobal(connID, deliver); err != nil {
		r.bus.DropConnection(connID)
		_, _ = r.registry.Unregister(connID)
		return domain.Session{}, fmt.Errorf("subscribe global for %s: %w", connID, err)
	}

	room := r.cfg.DefaultRoom
	r.members.Join(connID, room)
	r.registry.SetRoom(connID, room)
	if err := r.bus.SubscribeRoom(room, connID, deliver); err != nil {
		r.logger.Errorf("subscribe %s to default room failed: %v", connID, err)
	}
	sess.CurrentRoom = room

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	recent, _, err := r.log.Page(ctx, room, 0, r.cfg.HistoryLimit)
	if err != nil {
		r.logger.Errorf("loading history for %s failed: %v", room, err)
		recent = []domain.Message{}
	}

	welcome := domain.WelcomePayload{
		Message:        fmt.Sprintf("Welcome to the chat, %s!", username),
		User:           sess,
		OnlineUsers:    r.registry.List(),
		AvailableRooms: r.cfg.Rooms,
		RecentMessages: recent,
	}
	if err := r.bus.ToConn(connID, domain.NewEvent(domain.EventWelcome, welcome)); err != nil {
		r.logger.Errorf("welcome delivery to %s failed: %v", connID, err)
	}

	joined := domain.PresencePayload{
		User:        sess,
		Message:     fmt.Sprintf("%s joined the chat", username),
		OnlineUsers: r.registry.List(),
	}
	if err := r.bus.ToAll(domain.NewEvent(domain.EventUserJoined, joined), connID); err != nil {
		r.logger.Errorf("user-joined broadcast failed: %v", err)
	}

	return sess, nil
}

// Disconnect tears the session down. Afterwards the registry no longer
// knows the connection and no room member set contains it.
func (r *Router) Disconnect(connID string) Outcome {
	sess, err := r.registry.Unregister(connID)
	if err != nil {
		r.logger.Debugf("disconnect for unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	r.members.Leave(connID)
	r.bus.DropConnection(connID)

	left := domain.PresencePayload{
		User:        sess,
		Message:     fmt.Sprintf("%s left the chat", sess.Username),
		OnlineUsers: r.registry.List(),
	}
	if err := r.bus.ToAll(domain.NewEvent(domain.EventUserLeft, left), connID); err != nil {
		r.logger.Errorf("user-left broadcast failed: %v", err)
	}
	return OutcomeDelivered
}

// Send persists the message on the sender's current room and broadcasts
// the stored copy. Appends are serialized per room so broadcast order
// matches the durable order. On a persistence failure the room still sees
// a synthesized, unpersisted copy; only the log loses the message.
func (r *Router) Send(connID, text string) Outcome {
	sess, err := r.registry.Get(connID)
	if err != nil {
		r.logger.Debugf("send from unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	if r.cfg.MaxMessageLength > 0 && len(text) > r.cfg.MaxMessageLength {
		text = truncateText(text, r.cfg.MaxMessageLength)
	}

	msg := domain.Message{
		Room:      sess.CurrentRoom,
		Text:      text,
		Username:  sess.Username,
		UserID:    connID,
		Kind:      domain.KindUser,
		Timestamp: time.Now(),
		Reactions: map[string]string{},
	}

	r.enqueue(msg)
	return OutcomeDelivered
}

func (r *Router) enqueue(msg domain.Message) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	q, ok := r.queues[msg.Room]
	if !ok {
		q = make(chan appendJob, appendQueueSize)
		r.queues[msg.Room] = q
		r.wg.Add(1)
		go r.appendLoop(msg.Room, q)
	}
	r.mu.Unlock()

	// The queue send must never block: one room wedged on a slow store
	// must not stall traffic to any other room. A full queue degrades to
	// the same ephemeral fallback as a failed append.
	select {
	case q <- appendJob{msg: msg}:
	default:
		r.logger.Errorf("append queue for room %s full, broadcasting ephemeral copy", msg.Room)
		r.broadcastEphemeral(msg)
	}
}

// appendLoop is the single writer for one room's log. One worker per room
// keeps per-room broadcast order equal to persistence order; rooms do not
// order against each other. On Stop the worker drains what is already
// queued, then exits.
func (r *Router) appendLoop(room string, q <-chan appendJob) {
	defer r.wg.Done()

	for {
		select {
		case job := <-q:
			r.append(room, job.msg)
		case <-r.done:
			for {
				select {
				case job := <-q:
					r.append(room, job.msg)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) append(room string, msg domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	stored, err := r.log.Append(ctx, msg)
	cancel()

	if err != nil {
		// Degrade to an ephemeral broadcast so the room does not
		// perceive silent message loss. The failure stays visible in
		// the log stream.
		r.logger.Errorf("append to room %s failed, broadcasting ephemeral copy: %v", room, err)
		r.broadcastEphemeral(msg)
		return
	}

	if err := r.bus.ToRoom(room, domain.NewEvent(domain.EventNewMessage, stored), ""); err != nil {
		r.logger.Errorf("broadcast to room %s failed: %v", room, err)
	}
}

// broadcastEphemeral delivers an unpersisted copy of msg to its room under
// a synthesized ID.
func (r *Router) broadcastEphemeral(msg domain.Message) {
	msg.ID = uuid.NewString()
	if err := r.bus.ToRoom(msg.Room, domain.NewEvent(domain.EventNewMessage, msg), ""); err != nil {
		r.logger.Errorf("broadcast to room %s failed: %v", msg.Room, err)
	}
}

// React broadcasts a reaction update to the sender's current room.
// Reactions are session-ephemeral: the stored message is never mutated,
// clients merge last-write-wins per username.
func (r *Router) React(connID, messageID, reaction string) Outcome {
	sess, err := r.registry.Get(connID)
	if err != nil {
		r.logger.Debugf("reaction from unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	payload := domain.ReactionPayload{
		MessageID: messageID,
		Reaction:  reaction,
		Username:  sess.Username,
		Room:      sess.CurrentRoom,
	}
	if err := r.bus.ToRoom(sess.CurrentRoom, domain.NewEvent(domain.EventMessageReaction, payload), ""); err != nil {
		r.logger.Errorf("reaction broadcast failed: %v", err)
	}
	return OutcomeDelivered
}

// Typing broadcasts a presence-only typing indicator to the room, sender
// excluded. Nothing is persisted; the 1 s auto-stop debounce is client
// local.
func (r *Router) Typing(connID, room string, isTyping bool) Outcome {
	sess, err := r.registry.Get(connID)
	if err != nil {
		r.logger.Debugf("typing event from unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	if room == "" {
		room = sess.CurrentRoom
	}
	payload := domain.UserTypingPayload{
		Username: sess.Username,
		IsTyping: isTyping,
		Room:     room,
	}
	if err := r.bus.ToRoom(room, domain.NewEvent(domain.EventUserTyping, payload), connID); err != nil {
		r.logger.Errorf("typing broadcast failed: %v", err)
	}
	return OutcomeDelivered
}

// SendPrivate routes a message by username. When several sessions share
// the target username the earliest-joined one wins (connection ID breaks
// ties), so routing stays deterministic. Misses are dropped without an
// error event.
func (r *Router) SendPrivate(fromConnID, toUsername, text string) Outcome {
	from, err := r.registry.Get(fromConnID)
	if err != nil {
		r.logger.Debugf("private message from unknown connection %s", fromConnID)
		return OutcomeDroppedUnknownSession
	}

	to, found := r.resolveUsername(toUsername)
	if !found {
		r.logger.Debugf("private message recipient %q not found", toUsername)
		return OutcomeDroppedRecipientNotFound
	}

	pm := domain.PrivateMessage{
		ID:           uuid.NewString(),
		Text:         text,
		FromUsername: from.Username,
		ToUsername:   to.Username,
		Kind:         domain.KindPrivate,
		Timestamp:    time.Now(),
	}

	if err := r.bus.ToConn(to.ConnectionID, domain.NewEvent(domain.EventNewPrivateMessage, pm)); err != nil {
		r.logger.Errorf("private delivery to %s failed: %v", to.ConnectionID, err)
	}

	echo := pm
	echo.IsOwnMessage = true
	if err := r.bus.ToConn(fromConnID, domain.NewEvent(domain.EventNewPrivateMessage, echo)); err != nil {
		r.logger.Errorf("private echo to %s failed: %v", fromConnID, err)
	}
	return OutcomeDelivered
}

func (r *Router) resolveUsername(username string) (domain.Session, bool) {
	var (
		best  domain.Session
		found bool
	)
	for _, sess := range r.registry.List() {
		if sess.Username != username {
			continue
		}
		if !found ||
			sess.JoinedAt.Before(best.JoinedAt) ||
			(sess.JoinedAt.Equal(best.JoinedAt) && sess.ConnectionID < best.ConnectionID) {
			best = sess
			found = true
		}
	}
	return best, found
}

// JoinRoom switches the connection's room. The membership index and the
// room subscription are updated before any broadcast referencing the new
// membership goes out, so the session sees no further events from the old
// room once the confirmation arrives. Re-joining the current room still
// confirms.
func (r *Router) JoinRoom(connID, room string, deliver func(domain.Event)) Outcome {
	sess, err := r.registry.Get(connID)
	if err != nil {
		r.logger.Debugf("join-room from unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	previous, switched := r.members.Join(connID, room)
	if switched {
		if previous != "" {
			if err := r.bus.UnsubscribeRoom(previous, connID); err != nil {
				r.logger.Errorf("unsubscribe %s from %s failed: %v", connID, previous, err)
			}
		}
		r.registry.SetRoom(connID, room)
		if err := r.bus.SubscribeRoom(room, connID, deliver); err != nil {
			r.logger.Errorf("subscribe %s to %s failed: %v", connID, room, err)
		}
	}
	sess.CurrentRoom = room

	notice := domain.UserJoinedRoomPayload{
		User:    sess,
		Room:    room,
		Message: fmt.Sprintf("%s joined %s", sess.Username, room),
	}
	if err := r.bus.ToRoom(room, domain.NewEvent(domain.EventUserJoinedRoom, notice), connID); err != nil {
		r.logger.Errorf("user-joined-room broadcast failed: %v", err)
	}

	confirm := domain.RoomJoinedPayload{
		Room:    room,
		Message: fmt.Sprintf("You joined %s", room),
	}
	if err := r.bus.ToConn(connID, domain.NewEvent(domain.EventRoomJoined, confirm)); err != nil {
		r.logger.Errorf("room-joined confirmation to %s failed: %v", connID, err)
	}
	return OutcomeDelivered
}

// LoadMore pages further back into a room's history for one requester. A
// store failure is contained to that requester: an error event plus an
// empty page, never a fault other users can see.
func (r *Router) LoadMore(connID, room string, offset, limit int) Outcome {
	if _, err := r.registry.Get(connID); err != nil {
		r.logger.Debugf("load-more from unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msgs, hasMore, err := r.log.Page(ctx, room, offset, limit)
	if err != nil {
		r.logger.Errorf("paging room %s failed: %v", room, err)
		r.sendError(connID, "Failed to load messages")
		msgs, hasMore = []domain.Message{}, false
	}

	payload := domain.MoreMessagesPayload{Room: room, Messages: msgs, HasMore: hasMore}
	if err := r.bus.ToConn(connID, domain.NewEvent(domain.EventMoreMessagesLoaded, payload)); err != nil {
		r.logger.Errorf("page delivery to %s failed: %v", connID, err)
	}
	return OutcomeDelivered
}

// SearchMessages answers a substring search for one requester, with the
// same containment policy as LoadMore.
func (r *Router) SearchMessages(connID, room, query string) Outcome {
	if _, err := r.registry.Get(connID); err != nil {
		r.logger.Debugf("search from unknown connection %s", connID)
		return OutcomeDroppedUnknownSession
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	results, err := r.log.Search(ctx, room, query)
	if err != nil {
		r.logger.Errorf("searching room %s failed: %v", room, err)
		r.sendError(connID, "Failed to search messages")
		results = []domain.Message{}
	}

	payload := domain.SearchResultsPayload{Query: query, Results: results, Room: room}
	if err := r.bus.ToConn(connID, domain.NewEvent(domain.EventSearchResults, payload)); err != nil {
		r.logger.Errorf("search delivery to %s failed: %v", connID, err)
	}
	return OutcomeDelivered
}

// OnlineUsers replies with the current presence snapshot.
func (r *Router) OnlineUsers(connID string) Outcome {
	if _, err := r.registry.Get(connID); err != nil {
		return OutcomeDroppedUnknownSession
	}
	if err := r.bus.ToConn(connID, domain.NewEvent(domain.EventOnlineUsersList, r.registry.List())); err != nil {
		r.logger.Errorf("online-users delivery to %s failed: %v", connID, err)
	}
	return OutcomeDelivered
}

func (r *Router) sendError(connID, message string) {
	if err := r.bus.ToConn(connID, domain.NewEvent(domain.EventError, domain.ErrorPayload{Message: message})); err != nil {
		r.logger.Errorf("error delivery to %s failed: %v", connID, err)
	}
}

// truncateText caps s at max bytes, backing off to the nearest rune
// boundary so the cut never produces invalid UTF-8.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// IsUsernameTaken reports whether any live session holds username,
// case-insensitively. Used by the auth endpoint.
func (r *Router) IsUsernameTaken(username string) bool {
	for _, sess := range r.registry.List() {
		if strings.EqualFold(sess.Username, username) {
			return true
		}
	}
	return false
}

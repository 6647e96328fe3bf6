package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/pkg/notify"
	"github.com/chatwire/chatwire/pkg/quality"
	"github.com/chatwire/chatwire/pkg/sched"
)

var addr = flag.String("addr", "localhost:8080", "chat server address")

const (
	typingIdle        = 1000 * time.Millisecond
	reconnectAttempts = 5
	reconnectDelay    = time.Second
	pageSize          = 20
)

type client struct {
	conn     *websocket.Conn
	username string
	room     string
	loaded   int

	notifier *notify.Aggregator
	monitor  *quality.Monitor
	typing   *sched.Debouncer
}

func main() {
	flag.Parse()

	username := promptUsername()
	if err := authenticate(username); err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	c := &client{
		username: username,
		room:     "general",
		notifier: notify.NewAggregator(0),
	}
	c.monitor = quality.NewMonitor(quality.Config{
		SendPing: func(ts int64) {
			c.emit(domain.EventPing, domain.PingPayload{Timestamp: ts})
		},
	})
	c.typing = sched.NewDebouncer(typingIdle, func() {
		c.emit(domain.EventTypingStop, domain.TypingPayload{Room: c.room})
	})

	if err := c.connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	c.monitor.Start()
	defer c.monitor.Stop()

	fmt.Println("Commands: /join <room>, /msg <user> <text>, /react <id> <emoji>, /more, /search <q>, /users, /notifs, /read, /status, /quit")
	c.inputLoop()
}

func promptUsername() string {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("Enter your username: ")
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

func authenticate(username string) error {
	body, _ := json.Marshal(map[string]string{"username": username})
	resp, err := http.Post(fmt.Sprintf("http://%s/api/auth", *addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s", e.Error)
	}
	return nil
}

func (c *client) connect() error {
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}

	c.conn = conn
	c.monitor.HandleConnect()
	c.emit(domain.EventUserJoin, domain.UserJoinPayload{Username: c.username})

	go c.readLoop(conn)
	return nil
}

// reconnect retries the dial a bounded number of times, surfacing each
// attempt through the quality monitor.
func (c *client) reconnect() {
	ran := c.monitor.Reconnect(func() {
		for attempt := 1; attempt <= reconnectAttempts; attempt++ {
			c.monitor.HandleReconnectAttempt(attempt)
			if err := c.connect(); err == nil {
				fmt.Println("Reconnected.")
				return
			}
			time.Sleep(reconnectDelay)
		}
		c.monitor.HandleReconnectFailed()
		fmt.Println("Failed to reconnect after maximum attempts.")
	})
	if !ran {
		fmt.Println("Already connected.")
	}
}

func (c *client) emit(eventType string, payload any) {
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteJSON(domain.NewEvent(eventType, payload)); err != nil {
		log.Printf("Error sending %s: %v", eventType, err)
	}
}

func (c *client) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		c.monitor.HandleDisconnect()
		fmt.Println("Disconnected from server. Use /reconnect to retry.")
	}()

	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		c.handle(ev)
	}
}

func (c *client) handle(ev domain.Event) {
	switch ev.Type {
	case domain.EventWelcome:
		var p domain.WelcomePayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		fmt.Println(p.Message)
		fmt.Printf("Rooms: %s | Online: %d\n", strings.Join(p.AvailableRooms, ", "), len(p.OnlineUsers))
		for _, msg := range p.RecentMessages {
			printMessage(msg)
		}
		c.loaded = len(p.RecentMessages)

	case domain.EventNewMessage:
		var msg domain.Message
		if json.Unmarshal(ev.Payload, &msg) != nil {
			return
		}
		printMessage(msg)
		c.loaded++
		if _, ok := c.notifier.NoteMessage(c.username, msg); ok {
			fmt.Printf("  (mention! unread: %d)\n", c.notifier.Unread())
		}

	case domain.EventNewPrivateMessage:
		var pm domain.PrivateMessage
		if json.Unmarshal(ev.Payload, &pm) != nil {
			return
		}
		if pm.IsOwnMessage {
			fmt.Printf("[pm -> %s] %s\n", pm.ToUsername, pm.Text)
		} else {
			fmt.Printf("[pm <- %s] %s\n", pm.FromUsername, pm.Text)
			c.notifier.NotePrivate(pm, false)
		}

	case domain.EventUserTyping:
		var p domain.UserTypingPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		if p.IsTyping {
			fmt.Printf("... %s is typing in %s\n", p.Username, p.Room)
		}

	case domain.EventMessageReaction:
		var p domain.ReactionPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		fmt.Printf("  %s reacted %s to message %s\n", p.Username, p.Reaction, p.MessageID)

	case domain.EventRoomJoined:
		var p domain.RoomJoinedPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		c.room = p.Room
		c.loaded = 0
		fmt.Println(p.Message)

	case domain.EventUserJoinedRoom:
		var p domain.UserJoinedRoomPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		fmt.Println(p.Message)

	case domain.EventUserJoined, domain.EventUserLeft:
		var p domain.PresencePayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		fmt.Printf("%s (online: %d)\n", p.Message, len(p.OnlineUsers))

	case domain.EventMoreMessagesLoaded:
		var p domain.MoreMessagesPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		for _, msg := range p.Messages {
			printMessage(msg)
		}
		c.loaded += len(p.Messages)
		if !p.HasMore {
			fmt.Println("(start of history)")
		}

	case domain.EventSearchResults:
		var p domain.SearchResultsPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		fmt.Printf("%d results for %q in %s:\n", len(p.Results), p.Query, p.Room)
		for _, msg := range p.Results {
			printMessage(msg)
		}

	case domain.EventOnlineUsersList:
		var users []domain.Session
		if json.Unmarshal(ev.Payload, &users) != nil {
			return
		}
		for _, u := range users {
			fmt.Printf("  %s (in %s)\n", u.Username, u.CurrentRoom)
		}

	case domain.EventPong:
		var p domain.PongPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		c.monitor.HandlePong(p.Timestamp)

	case domain.EventError:
		var p domain.ErrorPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		fmt.Printf("Server error: %s\n", p.Message)
	}
}

func (c *client) inputLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !c.command(line) {
				return
			}
			continue
		}

		// A chat line counts as a keystroke burst: announce typing, send,
		// and let the debouncer emit the stop once we go idle.
		if !c.typing.Pending() {
			c.emit(domain.EventTypingStart, domain.TypingPayload{Room: c.room})
		}
		c.typing.Touch()
		c.emit(domain.EventSendMessage, domain.SendMessagePayload{Text: line})
	}
}

// command handles a slash command; false means quit.
func (c *client) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return false

	case "/join":
		if len(fields) == 2 {
			c.emit(domain.EventJoinRoom, domain.JoinRoomPayload{Room: fields[1]})
		}

	case "/msg":
		if len(fields) >= 3 {
			c.emit(domain.EventSendPrivateMessage, domain.PrivateMessagePayload{
				ToUsername: fields[1],
				Text:       strings.Join(fields[2:], " "),
			})
		}

	case "/react":
		if len(fields) == 3 {
			c.emit(domain.EventReactToMessage, domain.ReactPayload{
				MessageID: fields[1],
				Reaction:  fields[2],
			})
		}

	case "/more":
		c.emit(domain.EventLoadMoreMessages, domain.LoadMorePayload{
			Room:   c.room,
			Limit:  pageSize,
			Offset: c.loaded,
		})

	case "/search":
		if len(fields) >= 2 {
			c.emit(domain.EventSearchMessages, domain.SearchPayload{
				Room:  c.room,
				Query: strings.Join(fields[1:], " "),
			})
		}

	case "/users":
		c.emit(domain.EventGetOnlineUsers, nil)

	case "/notifs":
		for _, n := range c.notifier.List() {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			fmt.Printf("%s [%s] %s\n", marker, n.Kind, n.Message)
		}
		fmt.Printf("Unread: %d\n", c.notifier.Unread())

	case "/read":
		c.notifier.MarkAllRead()

	case "/status":
		fmt.Printf("State: %s, quality: %s, attempts: %d\n",
			c.monitor.State(), c.monitor.Quality(), c.monitor.Attempts())

	case "/reconnect":
		c.reconnect()

	default:
		fmt.Println("Unknown command:", fields[0])
	}
	return true
}

func printMessage(msg domain.Message) {
	prefix := msg.Username
	if msg.Kind == domain.KindSystem {
		prefix = "System"
	}
	fmt.Printf("[%s] #%s %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.Room, prefix, msg.Text)
}

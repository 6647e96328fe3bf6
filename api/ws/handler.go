package ws

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/chatwire/chatwire/internal/router"
	"github.com/chatwire/chatwire/internal/websocket"
	"github.com/chatwire/chatwire/pkg/logger"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; restrict in production.
	},
}

// HandleWebSocket upgrades the connection and starts its pump pair. The
// session itself is created later by the user-join event.
func HandleWebSocket(hub *websocket.Hub, rt *router.Router, logg logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logg.Errorf("upgrade error: %v", err)
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		client := websocket.NewConnection(uuid.NewString(), conn, hub, rt, logg)
		hub.Register <- client
		logg.Infof("new connection %s from %s", client.ID, conn.RemoteAddr())

		go client.ReadPump()
		go client.WritePump()
	}
}

type authRequest struct {
	Username string `json:"username"`
}

// HandleAuth is the username uniqueness check clients run before opening
// the socket. Uniqueness is only enforced here, against live sessions;
// the registry itself accepts duplicates.
func HandleAuth(rt *router.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		username := strings.TrimSpace(req.Username)
		if len(username) < 2 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username must be at least 2 characters long"})
			return
		}
		if rt.IsUsernameTaken(username) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username is already taken"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": username})
	}
}

// HandleRooms serves the static room list.
func HandleRooms(rooms []string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package ws

import (
	"net/http"
	"time"

	"github.com/chatwire/chatwire/internal/router"
	"github.com/chatwire/chatwire/internal/websocket"
	"github.com/chatwire/chatwire/pkg/logger"
)

type Config struct {
	Hub    *websocket.Hub
	Router *router.Router
	Rooms  []string
	Logger logger.Logger
}

// SetupRoutes wires the websocket endpoint and the auxiliary HTTP
// interface (auth check, room list, health).
func SetupRoutes(cfg Config) http.Handler {
	log := cfg.Logger.WithModule("api")

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", HandleWebSocket(cfg.Hub, cfg.Router, log))
	mux.HandleFunc("/api/auth", HandleAuth(cfg.Router))
	mux.HandleFunc("/api/rooms", HandleRooms(cfg.Rooms))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
	"github.com/BioHazard786/Warpchat/backend/internal/signaling"
)

// NewRouter wires the websocket endpoint and the status endpoints.
func NewRouter(hub *signaling.Hub, allowedOrigins []string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", statusHandler)
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /stats", statsHandler(hub))
	mux.HandleFunc("/ws", ServeWs(hub, newUpgrader(allowedOrigins), logger))
	return mux
}

// newUpgrader configures the websocket upgrader. An empty list or "*" allows
// every origin.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// The query parameters userId, affinityTag and autojoin=1 let a client be
// queued for matching straight after the upgrade.
func ServeWs(hub *signaling.Hub, upgrader *websocket.Upgrader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		q := r.URL.Query()
		client := signaling.NewClient(hub, conn, uuid.NewString())
		client.UserID = q.Get("userId")
		client.Tag = q.Get("affinityTag")
		client.AutoJoin = q.Get("autojoin") == "1" || strings.EqualFold(q.Get("autojoin"), "true")

		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Warpchat signaling server is running."))
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	matchmaking.Stats
	Connections int `json:"connections"`
}

func statsHandler(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{
			Stats:       hub.Engine().Stats(),
			Connections: hub.Clients(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

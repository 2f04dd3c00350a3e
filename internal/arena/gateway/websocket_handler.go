package gateway

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StatsProvider reports engine-side counters for the stats endpoint.
type StatsProvider interface {
	Stats() (activeMatches, waiting int)
}

// WebSocketHandler handles WebSocket upgrade requests for duel connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stats             StatsProvider
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, stats StatsProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stats:             stats,
	}
}

// HandleConnection handles a WebSocket connection for one anonymous
// participant. No identity is attached; the connection itself is the key.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
	// Connection is now owned by the connection manager.
}

// HandleConnectionStats returns counters about live connections and matches.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	matches, waiting := h.stats.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"connections":%d,"active_matches":%d,"waiting":%d}`,
		h.connectionManager.ConnectionCount(), matches, waiting)
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}

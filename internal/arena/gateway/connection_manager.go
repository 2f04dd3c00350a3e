package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/clickarena/internal/arena/engine"
)

// SessionHandler receives connection lifecycle callbacks from the gateway.
// The engine's Arena implements it.
type SessionHandler interface {
	Connect(conn engine.Conn)
	HandleMessage(conn engine.Conn, data []byte)
	Disconnect(conn engine.Conn)
}

// OnlineCountMessage is the presence broadcast sent to every registered
// connection whenever one connects or disconnects.
type OnlineCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// ConnectionManager owns the registry of live connections and the presence
// broadcast. It hands every connection to the session handler and tears it
// down exactly once when its read pump exits.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.Mutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  SessionHandler
}

// Connection is one live WebSocket participant. It satisfies engine.Conn.
type Connection struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	manager *ConnectionManager

	sendMu sync.Mutex
	closed bool
}

// NewConnectionManager creates a connection manager delivering lifecycle
// callbacks to handler.
func NewConnectionManager(config ConnectionConfig, handler SessionHandler) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		handler: handler,
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// admits it into the arena.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, 256),
		manager: cm,
	}

	cm.register(connection)

	go connection.writePump()
	cm.handler.Connect(connection)
	go connection.readPump()

	log.Info().
		Str("conn_id", connection.id).
		Msg("WebSocket connection established")

	return nil
}

// ConnectionCount returns the number of currently registered connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.connections)
}

// register adds a connection and broadcasts the new presence count.
func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn] = true
	total := len(cm.connections)
	cm.mu.Unlock()

	log.Debug().
		Str("conn_id", conn.id).
		Int("total_connections", total).
		Msg("connection registered")

	cm.broadcastPresence()
}

// unregister removes a connection if present and broadcasts the new
// presence count. Idempotent.
func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn)
	total := len(cm.connections)
	cm.mu.Unlock()

	conn.sendMu.Lock()
	conn.closed = true
	close(conn.send)
	conn.sendMu.Unlock()

	log.Info().
		Str("conn_id", conn.id).
		Int("total_connections", total).
		Msg("connection unregistered")

	cm.broadcastPresence()
}

// broadcastPresence sends the registry size at the moment of the call to
// every registered connection, best-effort.
func (cm *ConnectionManager) broadcastPresence() {
	cm.mu.Lock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.Unlock()

	msg := OnlineCountMessage{Type: "online_count", Count: len(targets)}
	for _, conn := range targets {
		conn.Send(msg)
	}
}

// ID returns the connection's opaque identifier.
func (c *Connection) ID() string { return c.id }

// Send marshals v and queues it for delivery. Best-effort: a full buffer or
// an already-closed connection drops the message without reporting.
func (c *Connection) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.id).Msg("failed to marshal outbound message")
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("conn_id", c.id).Msg("send buffer full, dropping message")
	}
}

// readPump reads inbound frames and hands them to the session handler. On
// exit it runs the disconnect sequence exactly once: session teardown
// first, then registry removal and presence broadcast.
func (c *Connection) readPump() {
	defer func() {
		c.manager.handler.Disconnect(c)
		c.manager.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("conn_id", c.id).Msg("unexpected WebSocket close error")
			}
			break
		}
		c.manager.handler.HandleMessage(c, message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				// Registry closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("conn_id", c.id).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package gateway is the WebSocket transport for the race server. It maps
// live connections to usernames and delivers the game core's events; all
// room and race semantics live in the game package.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/DmytroKolisnyk2/keyboard-races/internal/game"
)

// Config holds configuration for WebSocket connections.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Gateway upgrades HTTP requests to WebSocket connections, keeps the
// username -> connection mapping, and fans events out to clients. It is the
// game.Sender implementation used in production.
type Gateway struct {
	game     *game.Game
	conns    map[string]*Connection // username -> live connection
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	config   Config
}

// New creates a gateway. Bind must be called with the coordinator before
// the gateway accepts connections; the two reference each other, since the
// coordinator broadcasts through the gateway and the gateway dispatches
// inbound events to the coordinator.
func New(config Config) *Gateway {
	return &Gateway{
		conns: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Bind attaches the coordinator the gateway dispatches inbound events to.
func (gw *Gateway) Bind(g *game.Game) {
	gw.game = g
}

// HandleConnection upgrades an HTTP request to a WebSocket session. The
// username comes from the query string; a duplicate username gets the
// error/nameTaken event and the connection is closed without touching the
// existing session.
func (gw *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	ws, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := &Connection{
		ID:       uuid.New().String(),
		Username: username,
		ws:       ws,
		send:     make(chan []byte, 256),
		gw:       gw,
	}

	restore, err := gw.game.Connect(username, conn.ID)
	if err != nil {
		conn.rejectAndClose(game.NewEvent(game.EventNameTaken, `User "`+username+`" is already online`))
		return
	}

	gw.addConn(conn)
	go conn.writePump()
	go conn.readPump()
	gw.ToUser(username, restore)

	log.Info().
		Str("conn_id", conn.ID).
		Str("username", username).
		Msg("WebSocket connection established")
}

func (gw *Gateway) addConn(conn *Connection) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.conns[conn.Username] = conn
}

// removeConn drops a connection from the map, but only while it is still
// the current holder of its username; a reconnect may already have replaced
// it. The send channel is closed here, exactly once.
func (gw *Gateway) removeConn(conn *Connection) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if current, ok := gw.conns[conn.Username]; ok && current == conn {
		delete(gw.conns, conn.Username)
		close(conn.send)
	}
}

// ToUser implements game.Sender.
func (gw *Gateway) ToUser(username string, evt game.Event) {
	gw.fanOut(evt, func(c *Connection) bool { return c.Username == username })
}

// ToUsers implements game.Sender.
func (gw *Gateway) ToUsers(usernames []string, evt game.Event) {
	members := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		members[u] = true
	}
	gw.fanOut(evt, func(c *Connection) bool { return members[c.Username] })
}

// ToAllExcept implements game.Sender.
func (gw *Gateway) ToAllExcept(username string, evt game.Event) {
	gw.fanOut(evt, func(c *Connection) bool { return c.Username != username })
}

// fanOut marshals the event once and queues it on every matching
// connection. Sends happen under the read lock while closes happen under
// the write lock, so a queued send can never hit a closed channel. A
// connection with a full buffer is slow or dead and gets closed.
func (gw *Gateway) fanOut(evt game.Event, match func(*Connection) bool) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(evt.Type)).Msg("failed to marshal event")
		return
	}

	var slow []*Connection
	gw.mu.RLock()
	for _, conn := range gw.conns {
		if !match(conn) {
			continue
		}
		select {
		case conn.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	gw.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("conn_id", conn.ID).
			Str("username", conn.Username).
			Msg("connection send buffer full, closing connection")
		gw.removeConn(conn)
		conn.ws.Close()
	}
}

// Stats returns the number of active connections, for the info endpoint.
func (gw *Gateway) Stats() map[string]any {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	return map[string]any{
		"total_connections": len(gw.conns),
	}
}

package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/DmytroKolisnyk2/keyboard-races/internal/game"
)

// Connection represents a WebSocket connection to a client. The ID is the
// opaque connection handle held by the registry; a disconnect event whose
// handle no longer matches is stale and ignored by the core.
type Connection struct {
	ID       string
	Username string
	ws       *websocket.Conn
	send     chan []byte
	gw       *Gateway
}

// rejectAndClose writes a single event straight to the socket and closes
// it. Used before the connection is registered, for duplicate usernames.
func (c *Connection) rejectAndClose(evt game.Event) {
	c.ws.SetWriteDeadline(time.Now().Add(c.gw.config.WriteTimeout))
	if err := c.ws.WriteJSON(evt); err != nil {
		log.Error().Err(err).Str("conn_id", c.ID).Msg("failed to write rejection")
	}
	c.ws.Close()
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.gw.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("conn_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client events until the connection drops, then flows the
// disconnect back through the core.
func (c *Connection) readPump() {
	defer func() {
		c.gw.game.Disconnect(c.Username, c.ID)
		c.gw.removeConn(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.gw.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.gw.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gw.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("conn_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}
		c.handleClientEvent(message)
		c.ws.SetReadDeadline(time.Now().Add(c.gw.config.ReadTimeout))
	}
}

// handleClientEvent dispatches one inbound event to the coordinator. The
// connection's registered username is authoritative; usernames inside
// payloads are ignored.
func (c *Connection) handleClientEvent(message []byte) {
	var evt game.Event
	if err := json.Unmarshal(message, &evt); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("dropping malformed client event")
		return
	}

	switch evt.Type {
	case game.EventRoomAdd:
		var name string
		if err := json.Unmarshal(evt.Data, &name); err != nil {
			log.Warn().Err(err).Str("conn_id", c.ID).Msg("bad room/add payload")
			return
		}
		c.gw.game.CreateRoom(c.Username, name)

	case game.EventRoomJoin:
		var roomID string
		if err := json.Unmarshal(evt.Data, &roomID); err != nil {
			log.Warn().Err(err).Str("conn_id", c.ID).Msg("bad room/join payload")
			return
		}
		c.gw.game.JoinRoom(c.Username, roomID)

	case game.EventUpdateReady:
		var p game.ReadyPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Warn().Err(err).Str("conn_id", c.ID).Msg("bad game/update-ready payload")
			return
		}
		c.gw.game.SetReady(c.Username, p.Room, p.Ready)

	case game.EventUpdateSymbol:
		var p game.SymbolPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Warn().Err(err).Str("conn_id", c.ID).Msg("bad game/update-symbol payload")
			return
		}
		c.gw.game.UpdateProgress(c.Username, p.Room, p.Completed, p.TextLength)

	default:
		log.Debug().
			Str("conn_id", c.ID).
			Str("event_type", string(evt.Type)).
			Msg("ignoring unknown client event")
	}
}

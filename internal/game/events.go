package game

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Event is the wire envelope for every message exchanged with clients,
// in both directions: an event name plus a JSON payload.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventType represents the name of a protocol event.
type EventType string

// Client -> server events.
const (
	EventRoomAdd      EventType = "room/add"
	EventRoomJoin     EventType = "room/join"
	EventUpdateReady  EventType = "game/update-ready"
	EventUpdateSymbol EventType = "game/update-symbol"
)

// Server -> client events.
const (
	EventNameTaken      EventType = "error/nameTaken"
	EventRoomNameTaken  EventType = "error/roomNameTaken"
	EventTooMuchUsers   EventType = "error/too-much-users"
	EventRoomAddSuccess EventType = "room/add-success"
	EventUserAddSuccess EventType = "room/userAdd-success"
	EventRoomRestore    EventType = "room/restore"
	EventRoomRemove     EventType = "room/remove"
	EventRoomConnected  EventType = "room/update-connected"
	EventJoinSuccess    EventType = "room/join-success"
	EventUserConnected  EventType = "game/connected"
	EventUserLeft       EventType = "game/disconnected"
	EventReady          EventType = "game/update-ready"
	EventStartFetching  EventType = "game/start-fetching"
	EventStart          EventType = "game/start"
	EventUpdateTimer    EventType = "game/update-timer"
	EventUpdateProgress EventType = "game/update-progress"
	EventEnd            EventType = "game/end"
)

// RoomCountPayload carries a room name and its current member count. It is
// used by lobby listing updates: room/add-success, room/userAdd-success and
// room/update-connected.
type RoomCountPayload struct {
	Name          string `json:"name"`
	NumberOfUsers int    `json:"numberOfUsers"`
}

// JoinSuccessPayload is the full member snapshot sent to a joining client.
type JoinSuccessPayload struct {
	UsersData []*Member `json:"usersData"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
}

// ReadyPayload carries a readiness toggle, client to server and echoed back
// to the whole room.
type ReadyPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Ready    bool   `json:"ready"`
}

// SymbolPayload is a per-character progress tick reported by a client.
type SymbolPayload struct {
	Completed  int    `json:"completed"`
	TextLength int    `json:"textLength"`
	Room       string `json:"room"`
	Username   string `json:"username"`
}

// ProgressPayload is the live progress broadcast to a room.
type ProgressPayload struct {
	Username string  `json:"username"`
	Progress float64 `json:"progress"`
}

// StartFetchingPayload announces the pre-race countdown length and the id of
// the text each client should fetch from the corpus endpoint.
type StartFetchingPayload struct {
	Time int `json:"time"`
	ID   int `json:"id"`
}

// StartPayload announces the race start with the configured race duration.
type StartPayload struct {
	Time     int    `json:"time"`
	Room     string `json:"room"`
	Username string `json:"username"`
}

// NewEvent builds an envelope around a payload. Marshalling a payload can
// only fail on unsupported types, which is a programming error; it is logged
// and an empty payload is sent rather than dropping the event.
func NewEvent(t EventType, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to marshal event payload")
		data = []byte("null")
	}
	return Event{Type: t, Data: data}
}

// Sender delivers events to connected clients. The transport implements it;
// the game core never talks to sockets directly.
type Sender interface {
	// ToUser delivers an event to a single connected user. Unknown users are
	// silently dropped.
	ToUser(username string, evt Event)
	// ToUsers delivers an event to each of the given users.
	ToUsers(usernames []string, evt Event)
	// ToAllExcept delivers an event to every connected client but one.
	ToAllExcept(username string, evt Event)
}

package game

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config holds the game constants loaded once at startup.
type Config struct {
	// RoomCapacity is the fixed member limit for every room.
	RoomCapacity int
	// SecondsBeforeStart is the pre-race countdown length.
	SecondsBeforeStart int
	// SecondsForGame is the race duration.
	SecondsForGame int
	// CorpusSize is the number of texts in the corpus; text ids are chosen
	// uniformly from [0, CorpusSize).
	CorpusSize int
}

// DefaultConfig returns the default game constants.
func DefaultConfig() Config {
	return Config{
		RoomCapacity:       5,
		SecondsBeforeStart: 10,
		SecondsForGame:     60,
		CorpusSize:         1,
	}
}

// Game is the coordinator that owns the connection registry and the room
// store. All mutation goes through its methods under a single lock, so each
// handler invocation is atomic with respect to every other handler and
// timer callback.
type Game struct {
	mu       sync.Mutex
	cfg      Config
	sender   Sender
	clock    clockwork.Clock
	registry *registry
	store    *store
	randIntN func(n int) int
}

// New creates a coordinator. The clock is injected so that race timers run
// on a fake clock in tests; production passes clockwork.NewRealClock().
func New(cfg Config, sender Sender, clock clockwork.Clock) *Game {
	return &Game{
		cfg:      cfg,
		sender:   sender,
		clock:    clock,
		registry: newRegistry(),
		store:    newStore(),
		randIntN: rand.IntN,
	}
}

// Connect registers a new connection under username. On success it returns
// the room/restore event the transport must deliver to that connection
// before any other traffic. ErrNameTaken means the connection must be
// terminated; the existing session is unaffected.
func (g *Game) Connect(username, connID string) (Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.registry.register(username, connID); err != nil {
		log.Info().Str("username", username).Msg("rejected duplicate username")
		return Event{}, err
	}

	log.Info().Str("username", username).Str("conn_id", connID).Msg("user connected")
	return NewEvent(EventRoomRestore, g.store.snapshot()), nil
}

// CreateRoom creates an empty room named by the client. Duplicate names are
// reported back to the creator; everyone else learns about the new listing.
func (g *Game) CreateRoom(username, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.registry.get(username); !ok {
		return
	}

	room, err := g.store.create(roomID, g.cfg.SecondsBeforeStart, g.cfg.SecondsForGame)
	if err != nil {
		g.sender.ToUser(username, NewEvent(EventRoomNameTaken, fmt.Sprintf("Room %q already exists", roomID)))
		return
	}

	log.Info().Str("room", roomID).Str("username", username).Msg("room created")
	g.sender.ToAllExcept(username, NewEvent(EventRoomAddSuccess, RoomCountPayload{Name: roomID, NumberOfUsers: len(room.Members)}))
	g.sender.ToUser(username, NewEvent(EventUserAddSuccess, RoomCountPayload{Name: roomID, NumberOfUsers: len(room.Members)}))
}

// JoinRoom moves the user into the given room, leaving the previous room if
// any. Joining a vanished or already-started room is a benign race and is
// silently ignored; joining a full room is reported to the user.
func (g *Game) JoinRoom(username, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sess, ok := g.registry.get(username)
	if !ok {
		return
	}
	room, ok := g.store.get(roomID)
	if !ok || room.Started() {
		log.Debug().Str("room", roomID).Str("username", username).Msg("join ignored, room gone or started")
		return
	}
	if sess.roomID == roomID {
		return
	}
	if len(room.Members) >= g.cfg.RoomCapacity {
		g.sender.ToUser(username, NewEvent(EventTooMuchUsers, "Too much users in this room"))
		return
	}

	// Leaving the previous room and joining the new one are one atomic
	// operation from the caller's point of view.
	if sess.roomID != "" {
		if prev, ok := g.store.get(sess.roomID); ok {
			g.leaveRoomLocked(prev, username)
		}
		sess.roomID = ""
	}

	room.addMember(username)
	sess.roomID = roomID

	if len(room.Members) == g.cfg.RoomCapacity {
		room.State = RoomFull
		g.sender.ToAllExcept(username, NewEvent(EventRoomRemove, roomID))
	}

	log.Info().Str("room", roomID).Str("username", username).Int("members", len(room.Members)).Msg("user joined room")
	g.sender.ToUser(username, NewEvent(EventJoinSuccess, JoinSuccessPayload{UsersData: room.Members, RoomID: roomID, Username: username}))
	for _, m := range room.Members {
		if m.Username != username {
			g.sender.ToUser(m.Username, NewEvent(EventUserConnected, username))
		}
	}
	g.sender.ToAllExcept(username, NewEvent(EventRoomConnected, RoomCountPayload{Name: roomID, NumberOfUsers: len(room.Members)}))
}

// SetReady updates a member's ready flag and echoes the change to the whole
// room. Crossing the all-ready threshold starts the race sequence exactly
// once.
func (g *Game) SetReady(username, roomID string, ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.store.get(roomID)
	if !ok {
		return
	}
	member := room.Member(username)
	if member == nil {
		return
	}
	member.Ready = ready

	g.sender.ToUsers(room.usernames(), NewEvent(EventReady, ReadyPayload{Username: username, Room: roomID, Ready: ready}))

	if !room.Started() && room.allReady() {
		g.startRaceSequenceLocked(room, username)
	}
}

// UpdateProgress records a client-reported progress tick and broadcasts the
// percentage to the room, the sender included. The server trusts the
// reported text length; it holds no copy of the text.
func (g *Game) UpdateProgress(username, roomID string, completed, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.store.get(roomID)
	if !ok {
		return
	}
	member := room.Member(username)
	if member == nil {
		return
	}

	var progress float64
	if total > 0 {
		progress = float64(completed) / float64(total) * 100
	}
	g.sender.ToUsers(room.usernames(), NewEvent(EventUpdateProgress, ProgressPayload{Username: username, Progress: progress}))

	member.Completed = completed
	member.Total = total
	g.checkAllCompleteLocked(room)
}

// Disconnect tears down the session identified by username and connID. A
// handle mismatch is a stale event from a superseded session and is
// ignored. The departing user is removed from their room, repairing
// visibility and completion state for the members left behind.
func (g *Game) Disconnect(username, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sess, ok := g.registry.unregister(username, connID)
	if !ok {
		log.Debug().Str("username", username).Str("conn_id", connID).Msg("stale disconnect ignored")
		return
	}
	log.Info().Str("username", username).Msg("user disconnected")

	if sess.roomID == "" {
		return
	}
	if room, ok := g.store.get(sess.roomID); ok {
		g.leaveRoomLocked(room, username)
	}
}

// leaveRoomLocked removes a member and restores the room's invariants:
// re-opening a room that was delisted purely for being full, refreshing the
// lobby member count, finishing the race if the remaining members are all
// complete, and destroying the room when it empties out.
func (g *Game) leaveRoomLocked(room *Room, username string) {
	room.removeMember(username)
	if s, ok := g.registry.get(username); ok && s.roomID == room.ID {
		s.roomID = ""
	}

	g.sender.ToUsers(room.usernames(), NewEvent(EventUserLeft, username))

	if room.State == RoomFull {
		room.State = RoomOpen
		g.sender.ToAllExcept(username, NewEvent(EventRoomAddSuccess, RoomCountPayload{Name: room.ID, NumberOfUsers: len(room.Members)}))
	}
	g.sender.ToAllExcept(username, NewEvent(EventRoomConnected, RoomCountPayload{Name: room.ID, NumberOfUsers: len(room.Members)}))

	if len(room.Members) == 0 {
		g.store.remove(room.ID)
		g.sender.ToAllExcept(username, NewEvent(EventRoomRemove, room.ID))
		log.Info().Str("room", room.ID).Msg("room emptied and removed")
		return
	}

	// A departure can leave everyone remaining at 100%.
	g.checkAllCompleteLocked(room)
}

package game

// RoomState is the explicit lifecycle state of a room. A finished room has
// no state of its own: it is removed from the store, and that removal is
// what makes the finish sequence idempotent.
type RoomState int

const (
	// RoomOpen accepts joins and is visible in the public listing.
	RoomOpen RoomState = iota
	// RoomFull reached capacity before starting; delisted but re-opens if a
	// member leaves.
	RoomFull
	// RoomCountdown runs the pre-race countdown; no joins, never re-opens.
	RoomCountdown
	// RoomRacing runs the per-second race clock.
	RoomRacing
)

// Member is one user's standing inside a room. The same struct is the wire
// representation used by room snapshots, join-success and final rankings.
type Member struct {
	Username  string `json:"username"`
	Ready     bool   `json:"ready"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// Room is a capacity-bounded group of members racing together. Rooms are
// owned by the coordinator and only ever mutated under its lock.
type Room struct {
	ID      string
	Members []*Member // join order
	State   RoomState

	// StartTimer is the configured pre-race countdown in seconds. Timer is
	// the race duration, counted down once racing begins.
	StartTimer int
	Timer      int

	// starter is the user whose ready toggle tripped the all-ready
	// threshold; echoed in the game/start payload.
	starter string

	// cancel tears down the room's active timer chain. Non-nil only from
	// countdown entry until the room is destroyed.
	cancel chan struct{}
}

// RoomSnapshot is the wire representation of a room, sent in room/restore.
type RoomSnapshot struct {
	Users      []*Member `json:"users"`
	Available  bool      `json:"available"`
	Started    bool      `json:"started"`
	StartTimer int       `json:"startTimer"`
	Timer      int       `json:"timer"`
}

func newRoom(id string, startTimer, timer int) *Room {
	return &Room{
		ID:         id,
		StartTimer: startTimer,
		Timer:      timer,
	}
}

// Available reports whether the room may still be joined and listed.
func (r *Room) Available() bool {
	return r.State == RoomOpen
}

// Started reports whether the race sequence has begun.
func (r *Room) Started() bool {
	return r.State == RoomCountdown || r.State == RoomRacing
}

// Snapshot returns the wire representation of the room.
func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Users:      r.Members,
		Available:  r.Available(),
		Started:    r.Started(),
		StartTimer: r.StartTimer,
		Timer:      r.Timer,
	}
}

// Member returns the member with the given username, or nil.
func (r *Room) Member(username string) *Member {
	for _, m := range r.Members {
		if m.Username == username {
			return m
		}
	}
	return nil
}

// addMember appends a fresh member in join order.
func (r *Room) addMember(username string) *Member {
	m := &Member{Username: username}
	r.Members = append(r.Members, m)
	return m
}

// removeMember drops the member with the given username, preserving the
// join order of the rest.
func (r *Room) removeMember(username string) {
	for i, m := range r.Members {
		if m.Username == username {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// usernames returns the usernames of all current members.
func (r *Room) usernames() []string {
	names := make([]string, len(r.Members))
	for i, m := range r.Members {
		names[i] = m.Username
	}
	return names
}

// allReady reports whether the race should start: more than one member and
// every one of them ready. A single-member room never auto-starts.
func (r *Room) allReady() bool {
	if len(r.Members) < 2 {
		return false
	}
	for _, m := range r.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

// allComplete reports whether every current member finished the full text.
// An empty room is never complete; emptiness destroys the room instead.
func (r *Room) allComplete() bool {
	if len(r.Members) == 0 {
		return false
	}
	for _, m := range r.Members {
		if m.Completed == 0 || m.Completed != m.Total {
			return false
		}
	}
	return true
}

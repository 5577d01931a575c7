package game

import "errors"

// Registry failures surfaced to clients. Anything else in the core is a
// benign race and is swallowed.
var (
	// ErrNameTaken means the username already maps to a live connection.
	ErrNameTaken = errors.New("username already online")
	// ErrRoomExists means a room with that id already exists.
	ErrRoomExists = errors.New("room already exists")
)

// session is one live connection's identity: a username bound to an opaque
// connection handle, plus the single room the connection is a member of.
type session struct {
	username string
	connID   string
	roomID   string
}

// registry maps usernames to live sessions, enforcing one connection per
// username. It is owned by the coordinator and accessed under its lock.
type registry struct {
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// register binds a username to a connection handle. Fails with ErrNameTaken
// if the username already has a live session.
func (r *registry) register(username, connID string) (*session, error) {
	if _, taken := r.sessions[username]; taken {
		return nil, ErrNameTaken
	}
	s := &session{username: username, connID: connID}
	r.sessions[username] = s
	return s, nil
}

// unregister removes the session for username, but only if connID matches
// the current holder. A mismatch is a stale disconnect racing a reconnect
// and is ignored.
func (r *registry) unregister(username, connID string) (*session, bool) {
	s, ok := r.sessions[username]
	if !ok || s.connID != connID {
		return nil, false
	}
	delete(r.sessions, username)
	return s, true
}

// get returns the live session for username, if any.
func (r *registry) get(username string) (*session, bool) {
	s, ok := r.sessions[username]
	return s, ok
}

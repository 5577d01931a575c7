package game

// store maps room ids to rooms. Rooms exist in the store from creation
// until they finish or empty out; presence in the store is the single
// source of truth for "this race is still live". It is owned by the
// coordinator and accessed under its lock.
type store struct {
	rooms map[string]*Room
}

func newStore() *store {
	return &store{rooms: make(map[string]*Room)}
}

// create adds an empty room. Fails with ErrRoomExists on a duplicate id.
func (s *store) create(id string, startTimer, timer int) (*Room, error) {
	if _, exists := s.rooms[id]; exists {
		return nil, ErrRoomExists
	}
	r := newRoom(id, startTimer, timer)
	s.rooms[id] = r
	return r, nil
}

// get returns the room with the given id, if it still exists.
func (s *store) get(id string) (*Room, bool) {
	r, ok := s.rooms[id]
	return r, ok
}

// remove deletes the room and cancels its timer chain, if any. Reports
// whether the room was still present, so callers can make the finish
// sequence run exactly once.
func (s *store) remove(id string) bool {
	r, ok := s.rooms[id]
	if !ok {
		return false
	}
	if r.cancel != nil {
		close(r.cancel)
		r.cancel = nil
	}
	delete(s.rooms, id)
	return true
}

// snapshot returns the wire representation of every room, for the
// room/restore message sent to late joiners.
func (s *store) snapshot() map[string]RoomSnapshot {
	snap := make(map[string]RoomSnapshot, len(s.rooms))
	for id, r := range s.rooms {
		snap[id] = r.Snapshot()
	}
	return snap
}

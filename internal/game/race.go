package game

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// The race sequence is a chain of one-shot timers owned by the room:
// one pre-race countdown timer, then one timer per race second. Every link
// races against the room's cancel channel, and every callback re-checks
// that the room still exists before acting. Deleting the room from the
// store is therefore the single, idempotent "finished" transition no matter
// which trigger gets there first.

// startRaceSequenceLocked moves the room into the pre-race countdown:
// delists it, picks the text every member will race on, and schedules the
// race start.
func (g *Game) startRaceSequenceLocked(room *Room, starter string) {
	room.State = RoomCountdown
	room.starter = starter
	room.cancel = make(chan struct{})

	g.sender.ToAllExcept(starter, NewEvent(EventRoomRemove, room.ID))

	textID := g.randIntN(g.cfg.CorpusSize)
	log.Info().Str("room", room.ID).Int("text_id", textID).Int("countdown_sec", room.StartTimer).Msg("race countdown started")
	g.sender.ToUsers(room.usernames(), NewEvent(EventStartFetching, StartFetchingPayload{Time: room.StartTimer, ID: textID}))

	g.schedule(room.ID, time.Duration(room.StartTimer)*time.Second, room.cancel, g.beginRace)
}

// beginRace fires when the pre-race countdown elapses.
func (g *Game) beginRace(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.store.get(roomID)
	if !ok || room.State != RoomCountdown {
		return
	}
	room.State = RoomRacing

	log.Info().Str("room", roomID).Int("race_sec", room.Timer).Msg("race started")
	g.sender.ToUsers(room.usernames(), NewEvent(EventStart, StartPayload{Time: room.Timer, Room: roomID, Username: room.starter}))

	g.schedule(roomID, time.Second, room.cancel, g.tickRace)
}

// tickRace broadcasts the remaining race time once per second and finishes
// the race when the clock runs out.
func (g *Game) tickRace(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.store.get(roomID)
	if !ok || room.State != RoomRacing {
		return
	}

	g.sender.ToUsers(room.usernames(), NewEvent(EventUpdateTimer, room.Timer))
	if room.Timer == 0 {
		g.endRaceLocked(room)
		return
	}
	room.Timer--
	g.schedule(roomID, time.Second, room.cancel, g.tickRace)
}

// checkAllCompleteLocked finishes the race early when every current member
// has typed the full text. Re-evaluated after every progress update and
// every departure, not only on timer ticks.
func (g *Game) checkAllCompleteLocked(room *Room) {
	if room.State == RoomRacing && room.allComplete() {
		g.endRaceLocked(room)
	}
}

// endRaceLocked performs the finish sequence: delete the room (cancelling
// its timer chain), rank members by completed count descending, and
// broadcast the final results. Removing the room from the store guards
// against the timer-expiry and all-complete triggers both firing.
func (g *Game) endRaceLocked(room *Room) {
	if !g.store.remove(room.ID) {
		return
	}
	for _, m := range room.Members {
		if s, ok := g.registry.get(m.Username); ok && s.roomID == room.ID {
			s.roomID = ""
		}
	}

	sort.SliceStable(room.Members, func(i, j int) bool {
		return room.Members[i].Completed > room.Members[j].Completed
	})

	log.Info().Str("room", room.ID).Int("members", len(room.Members)).Msg("race finished")
	g.sender.ToUsers(room.usernames(), NewEvent(EventEnd, room.Members))
}

// schedule runs fn after d unless the cancel channel closes first. Each
// armed timer is stopped and drained on cancellation so no goroutine leaks
// behind a finished room.
func (g *Game) schedule(roomID string, d time.Duration, cancel <-chan struct{}, fn func(roomID string)) {
	timer := g.clock.NewTimer(d)
	go func() {
		select {
		case <-timer.Chan():
			fn(roomID)
		case <-cancel:
			stopAndDrainTimer(timer)
		}
	}()
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern recommended in the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

package game_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/DmytroKolisnyk2/keyboard-races/internal/game"
)

// fakeSender records deliveries per connected user, modelling the transport
// semantics: unknown recipients are dropped, ToAllExcept reaches every
// other connected user. Timer callbacks deliver from other goroutines, so access
// is locked.
type fakeSender struct {
	mu      sync.Mutex
	inboxes map[string][]game.Event
}

func newFakeSender() *fakeSender {
	return &fakeSender{inboxes: make(map[string][]game.Event)}
}

func (f *fakeSender) add(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.inboxes[username]; !ok {
		f.inboxes[username] = nil
	}
}

func (f *fakeSender) ToUser(username string, evt game.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.inboxes[username]; ok {
		f.inboxes[username] = append(f.inboxes[username], evt)
	}
}

func (f *fakeSender) ToUsers(usernames []string, evt game.Event) {
	for _, u := range usernames {
		f.ToUser(u, evt)
	}
}

func (f *fakeSender) ToAllExcept(username string, evt game.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for u := range f.inboxes {
		if u != username {
			f.inboxes[u] = append(f.inboxes[u], evt)
		}
	}
}

// ofType returns every event of the given type delivered to username.
func (f *fakeSender) ofType(username string, t game.EventType) []game.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []game.Event
	for _, evt := range f.inboxes[username] {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (f *fakeSender) count(username string, t game.EventType) int {
	return len(f.ofType(username, t))
}

func (f *fakeSender) last(t *testing.T, username string, typ game.EventType) game.Event {
	t.Helper()
	evts := f.ofType(username, typ)
	require.NotEmpty(t, evts, "no %s event delivered to %s", typ, username)
	return evts[len(evts)-1]
}

// decode unmarshals an event payload into T.
func decode[T any](t *testing.T, evt game.Event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(evt.Data, &v))
	return v
}

func testConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.RoomCapacity = 2
	cfg.SecondsBeforeStart = 3
	cfg.SecondsForGame = 5
	cfg.CorpusSize = 8
	return cfg
}

func newTestGame(cfg game.Config) (*game.Game, *fakeSender, *clockwork.FakeClock) {
	sender := newFakeSender()
	clock := clockwork.NewFakeClock()
	return game.New(cfg, sender, clock), sender, clock
}

// connect registers a user and returns the restore snapshot they received.
func connect(t *testing.T, g *game.Game, f *fakeSender, username string) map[string]game.RoomSnapshot {
	t.Helper()
	f.add(username)
	evt, err := g.Connect(username, username+"-conn")
	require.NoError(t, err)
	return decode[map[string]game.RoomSnapshot](t, evt)
}

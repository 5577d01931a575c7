package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DmytroKolisnyk2/keyboard-races/internal/game"
	"github.com/DmytroKolisnyk2/keyboard-races/internal/gateway"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	cfg := game.DefaultConfig()
	cfg.RoomCapacity = 2
	cfg.CorpusSize = 4

	gw := gateway.New(gateway.DefaultConfig())
	g := game.New(cfg, gw, clockwork.NewFakeClock())
	gw.Bind(g)

	r := mux.NewRouter()
	r.HandleFunc("/ws", gw.HandleConnection)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	return server, wsURL
}

func dial(t *testing.T, wsURL, username string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?username="+username, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads the next event from the connection, failing the test if
// nothing arrives in time.
func readEvent(t *testing.T, conn *websocket.Conn) game.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt game.Event
	require.NoError(t, json.Unmarshal(message, &evt))
	return evt
}

// readEventOfType skips events until one of the wanted type arrives.
func readEventOfType(t *testing.T, conn *websocket.Conn, typ game.EventType) game.Event {
	t.Helper()
	for {
		evt := readEvent(t, conn)
		if evt.Type == typ {
			return evt
		}
	}
}

func TestHandleConnection_RequiresUsername(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleConnection_RestoreOnConnect(t *testing.T) {
	_, wsURL := newTestServer(t)

	conn := dial(t, wsURL, "alice")
	evt := readEvent(t, conn)

	assert.Equal(t, game.EventRoomRestore, evt.Type)
	var snap map[string]game.RoomSnapshot
	require.NoError(t, json.Unmarshal(evt.Data, &snap))
	assert.Empty(t, snap)
}

func TestHandleConnection_DuplicateUsernameRejected(t *testing.T) {
	_, wsURL := newTestServer(t)

	first := dial(t, wsURL, "alice")
	readEvent(t, first) // restore

	second := dial(t, wsURL, "alice")
	evt := readEvent(t, second)
	require.Equal(t, game.EventNameTaken, evt.Type)

	var msg string
	require.NoError(t, json.Unmarshal(evt.Data, &msg))
	assert.Contains(t, msg, "alice")

	// The rejected socket is closed by the server.
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := second.ReadMessage()
	assert.Error(t, err)
}

func TestClientEvents_CreateAndJoinRoom(t *testing.T) {
	_, wsURL := newTestServer(t)

	alice := dial(t, wsURL, "alice")
	readEvent(t, alice) // restore
	bob := dial(t, wsURL, "bob")
	readEvent(t, bob) // restore

	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventRoomAdd, "lobby")))

	created := readEventOfType(t, alice, game.EventUserAddSuccess)
	var payload game.RoomCountPayload
	require.NoError(t, json.Unmarshal(created.Data, &payload))
	assert.Equal(t, "lobby", payload.Name)

	listed := readEventOfType(t, bob, game.EventRoomAddSuccess)
	require.NoError(t, json.Unmarshal(listed.Data, &payload))
	assert.Equal(t, "lobby", payload.Name)

	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventRoomJoin, "lobby")))
	joined := readEventOfType(t, alice, game.EventJoinSuccess)

	var join game.JoinSuccessPayload
	require.NoError(t, json.Unmarshal(joined.Data, &join))
	assert.Equal(t, "lobby", join.RoomID)
	assert.Equal(t, "alice", join.Username)
	require.Len(t, join.UsersData, 1)
}

func TestClientEvents_ReadyAndProgressFlow(t *testing.T) {
	_, wsURL := newTestServer(t)

	alice := dial(t, wsURL, "alice")
	readEvent(t, alice)
	bob := dial(t, wsURL, "bob")
	readEvent(t, bob)

	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventRoomAdd, "lobby")))
	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventRoomJoin, "lobby")))
	readEventOfType(t, alice, game.EventJoinSuccess)
	require.NoError(t, bob.WriteJSON(game.NewEvent(game.EventRoomJoin, "lobby")))
	readEventOfType(t, bob, game.EventJoinSuccess)

	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventUpdateReady, game.ReadyPayload{
		Username: "alice", Room: "lobby", Ready: true,
	})))

	echo := readEventOfType(t, bob, game.EventReady)
	var ready game.ReadyPayload
	require.NoError(t, json.Unmarshal(echo.Data, &ready))
	assert.Equal(t, "alice", ready.Username)
	assert.True(t, ready.Ready)

	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventUpdateSymbol, game.SymbolPayload{
		Completed: 10, TextLength: 40, Room: "lobby", Username: "alice",
	})))

	progressed := readEventOfType(t, bob, game.EventUpdateProgress)
	var progress game.ProgressPayload
	require.NoError(t, json.Unmarshal(progressed.Data, &progress))
	assert.Equal(t, "alice", progress.Username)
	assert.InDelta(t, 25.0, progress.Progress, 1e-9)
}

func TestClientEvents_MalformedIgnored(t *testing.T) {
	_, wsURL := newTestServer(t)

	alice := dial(t, wsURL, "alice")
	readEvent(t, alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))

	// The connection survives and further commands still work.
	require.NoError(t, alice.WriteJSON(game.NewEvent(game.EventRoomAdd, "lobby")))
	evt := readEventOfType(t, alice, game.EventUserAddSuccess)
	assert.Equal(t, game.EventUserAddSuccess, evt.Type)
}

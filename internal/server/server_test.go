package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/config"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/database"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/items"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/quest"
)

const testQuests = `quests:
  first_logs:
    name: "First Logs"
    description: "The foreman needs oak logs."
    objectives:
      - id: chop
        name: "Chop oak logs"
        target: 3
    rewards:
      currency: 25
      skill_points: 1
      items:
        - item: iron_axe
          quantity: 1
    track:
      - event: gather
        target: oak_log
        objective: chop
    dialogue:
      - npc: foreman
        visible: not_started
        root:
          text: "Got any work?"
          next:
            text: "Bring me three oak logs."
            options:
              - text: "On it."
                dismiss: true
                effect:
                  start: true
              - text: "Not now."
                exit: true
                dismiss: true
      - npc: foreman
        visible: ready
        root:
          text: "Here are your logs."
          dismiss: true
          effect:
            complete: true
`

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) LoadQuestLog(_ context.Context, playerID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	data, ok := m.data[playerID]
	return data, ok, nil
}

func (m *memStore) SaveQuestLog(_ context.Context, playerID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[playerID] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memStore) failLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *memStore) get(playerID string) (quest.SaveData, bool) {
	m.mu.Lock()
	data, ok := m.data[playerID]
	m.mu.Unlock()
	if !ok {
		return quest.SaveData{}, false
	}
	sd, err := quest.ParseSaveData(data)
	return sd, err == nil
}

func testRegistry(t *testing.T) *quest.Registry {
	t.Helper()
	cfg, err := quest.ParseQuestsYAML([]byte(testQuests))
	require.NoError(t, err)

	r := quest.NewRegistry()
	require.NoError(t, r.LoadFromConfig(cfg))
	return r
}

func testItemCatalog(t *testing.T) *items.Catalog {
	t.Helper()
	c, err := items.NewCatalog(&items.ItemsConfig{Items: map[string]items.ItemDefinition{
		"oak_log":  {Name: "Oak Log", Type: "material", MaxStack: 10},
		"iron_axe": {Name: "Iron Axe", Type: "tool"},
	}})
	require.NoError(t, err)
	return c
}

type testEnv struct {
	t     *testing.T
	srv   *Server
	http  *httptest.Server
	store *memStore
}

func newTestEnv(t *testing.T, registry *quest.Registry, mutate func(*config.ServerConfig)) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Quests.ResyncWindow = time.Millisecond
	cfg.Quests.SaveDelay = 5 * time.Millisecond
	cfg.Quests.SweepInterval = 0
	cfg.Session.HandshakeTimeout = 2 * time.Second
	cfg.Session.InventorySlots = 4
	cfg.WebSocket.PingInterval = 0
	if mutate != nil {
		mutate(cfg)
	}
	if registry == nil {
		registry = testRegistry(t)
	}

	env := &testEnv{t: t, store: newMemStore()}
	env.srv = NewServer(cfg, registry, testItemCatalog(t), env.store)
	env.http = httptest.NewServer(env.srv.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.srv.Shutdown(ctx)
		env.http.Close()
	})
	return env
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
}

func (e *testEnv) dial() *websocket.Conn {
	e.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { conn.Close() })
	return conn
}

// join connects as player and waits for the welcome.
func (e *testEnv) join(player string) (*websocket.Conn, map[string]any) {
	e.t.Helper()
	conn := e.dial()
	send(e.t, conn, ClientMessage{Type: MsgHello, Player: player})
	return conn, readType(e.t, conn, MsgWelcome)
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return msg
		}
	}
}

func readType(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	return readUntil(t, conn, func(m map[string]any) bool { return m["type"] == typ })
}

func readQuestState(t *testing.T, conn *websocket.Conn, questID, state string) map[string]any {
	t.Helper()
	return readUntil(t, conn, func(m map[string]any) bool {
		return m["type"] == quest.PayloadQuestUpdate && m["id"] == questID && m["state"] == state
	})
}

func optionIDs(msg map[string]any) []int {
	var ids []int
	opts, _ := msg["options"].([]any)
	for _, o := range opts {
		ids = append(ids, int(o.(map[string]any)["id"].(float64)))
	}
	return ids
}

func TestServer_HelloAndWelcome(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, welcome := env.join("alice")
	assert.Equal(t, "alice", welcome["player"])
	assert.Empty(t, welcome["active"])
	assert.Equal(t, 1, env.srv.SessionCount())
}

func TestServer_BadHello(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name string
		msg  string
	}{
		{"wrong type", `{"type":"interact","npc":"foreman"}`},
		{"empty player", `{"type":"hello","player":""}`},
		{"bad player id", `{"type":"hello","player":"no spaces allowed"}`},
		{"malformed", `{"type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := env.dial()
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)))

			msg := readType(t, conn, MsgError)
			assert.Equal(t, CodeBadHello, msg["code"])

			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			_, _, err := conn.ReadMessage()
			assert.Error(t, err, "connection should be closed after a bad hello")
		})
	}
}

func TestServer_HandshakeLockout(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.ServerConfig) {
		cfg.RateLimit.MaxAttempts = 2
		cfg.RateLimit.LockoutSeconds = 60
	})

	for i := 0; i < 2; i++ {
		conn := env.dial()
		send(t, conn, ClientMessage{Type: MsgQuests})
		readType(t, conn, MsgError)
	}

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_DuplicatePlayerRejected(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.join("alice")

	conn := env.dial()
	send(t, conn, ClientMessage{Type: MsgHello, Player: "alice"})
	msg := readType(t, conn, MsgError)
	assert.Equal(t, CodeAlreadyConnected, msg["code"])
	assert.Equal(t, 1, env.srv.SessionCount())
}

func TestServer_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.store.failLoads(assert.AnError)

	conn := env.dial()
	send(t, conn, ClientMessage{Type: MsgHello, Player: "alice"})
	msg := readType(t, conn, MsgError)
	assert.Equal(t, CodeUnavailable, msg["code"])
	assert.Eventually(t, func() bool { return env.srv.SessionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_ChecksumMismatchStartsFresh(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.store.failLoads(database.ErrChecksumMismatch)

	_, welcome := env.join("alice")
	assert.Empty(t, welcome["active"])
}

func TestServer_QuestFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgSpawn})

	send(t, conn, ClientMessage{Type: MsgInteract, NPC: "foreman"})
	roots := readType(t, conn, MsgDialogue)
	assert.Equal(t, []int{1000}, optionIDs(roots))

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "foreman", ID: 1000})
	next := readType(t, conn, MsgDialogue)
	assert.Equal(t, "Bring me three oak logs.", next["text"])
	assert.Equal(t, []int{1001, 1002}, optionIDs(next))

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "foreman", ID: 1001})
	readType(t, conn, MsgDialogueClose)
	readQuestState(t, conn, "first_logs", string(quest.QuestStatusActive))

	for i := 0; i < 3; i++ {
		send(t, conn, ClientMessage{Type: MsgEvent, Kind: "gather", Target: "oak_log"})
	}
	alert := readType(t, conn, quest.PayloadAddAlert)
	assert.Equal(t, "foreman", alert["className"])

	send(t, conn, ClientMessage{Type: MsgInteract, NPC: "foreman"})
	roots = readType(t, conn, MsgDialogue)
	assert.Equal(t, []int{1003}, optionIDs(roots))

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "foreman", ID: 1003})
	readQuestState(t, conn, "first_logs", string(quest.QuestStatusCompleted))

	send(t, conn, ClientMessage{Type: MsgInventory})
	inv := readType(t, conn, MsgInventory)
	assert.Equal(t, float64(25), inv["currency"])
	assert.Equal(t, float64(1), inv["skillPoints"])
}

func TestServer_StaleSelect(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "foreman", ID: 1003})
	msg := readType(t, conn, MsgError)
	assert.Equal(t, CodeStaleOption, msg["code"])

	// The current menu follows the error.
	roots := readType(t, conn, MsgDialogue)
	assert.Equal(t, []int{1000}, optionIDs(roots))
}

func TestServer_WorldEventValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgEvent, Kind: "gather", Target: "gold_bar"})
	msg := readType(t, conn, MsgError)
	assert.Equal(t, CodeUnknownItem, msg["code"])

	send(t, conn, ClientMessage{Type: MsgEvent, Kind: "deliver", Target: "oak_log"})
	note := readType(t, conn, MsgNotify)
	assert.Equal(t, string(quest.NotifyError), note["kind"])

	// Four slots of ten logs each.
	send(t, conn, ClientMessage{Type: MsgEvent, Kind: "gather", Target: "oak_log", Quantity: 41})
	readType(t, conn, MsgNotify)

	send(t, conn, ClientMessage{Type: "dance"})
	msg = readType(t, conn, MsgError)
	assert.Equal(t, CodeUnknownType, msg["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	msg = readType(t, conn, MsgError)
	assert.Equal(t, CodeMalformed, msg["code"])
}

func TestServer_ClientCannotReportTalk(t *testing.T) {
	cfg, err := quest.ParseQuestsYAML([]byte(`quests:
  gossip:
    objectives:
      - {id: chat, target: 1}
    track:
      - {event: talk, target: foreman, objective: chat}
    dialogue:
      - npc: bard
        visible: not_started
        root: {text: "Heard the news?", dismiss: true, effect: {start: true}}
`))
	require.NoError(t, err)
	registry := quest.NewRegistry()
	require.NoError(t, registry.LoadFromConfig(cfg))

	env := newTestEnv(t, registry, nil)
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "bard", ID: 1000})
	readType(t, conn, MsgDialogueClose)
	readQuestState(t, conn, "gossip", "active")

	for _, kind := range []string{"talk", "kill"} {
		send(t, conn, ClientMessage{Type: MsgEvent, Kind: kind, Target: "foreman"})
		msg := readType(t, conn, MsgError)
		assert.Equal(t, CodeBadRequest, msg["code"], kind)
	}

	chatProgress := func(m map[string]any) float64 {
		objs := m["objectives"].([]any)
		return objs[0].(map[string]any)["progress"].(float64)
	}

	send(t, conn, ClientMessage{Type: MsgQuests})
	update := readQuestState(t, conn, "gossip", "active")
	assert.Equal(t, float64(0), chatProgress(update), "a reported talk event must not count")

	// Talking for real does count.
	send(t, conn, ClientMessage{Type: MsgInteract, NPC: "foreman"})
	readUntil(t, conn, func(m map[string]any) bool {
		return m["type"] == quest.PayloadQuestUpdate && m["id"] == "gossip" && chatProgress(m) == 1
	})
}

func TestServer_FloodLimited(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.ServerConfig) {
		cfg.Session.MaxMessages = 2
		cfg.Session.MessageWindow = time.Minute
	})
	conn, _ := env.join("alice")

	for i := 0; i < 3; i++ {
		send(t, conn, ClientMessage{Type: MsgInventory})
	}
	readType(t, conn, MsgInventory)
	readType(t, conn, MsgInventory)
	msg := readType(t, conn, MsgError)
	assert.Equal(t, CodeRateLimited, msg["code"])
	assert.Equal(t, 1, env.srv.SessionCount(), "flooding refuses messages without dropping the session")
}

func TestServer_PersistsAcrossReconnect(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "foreman", ID: 1001})
	readType(t, conn, MsgDialogueClose)
	conn.Close()

	require.Eventually(t, func() bool {
		sd, ok := env.store.get("alice")
		return ok && len(sd.Quests) == 1 && env.srv.SessionCount() == 0
	}, 3*time.Second, 10*time.Millisecond)

	_, welcome := env.join("alice")
	assert.Equal(t, []any{"first_logs"}, welcome["active"])
}

func TestServer_ShutdownFlushesPendingSaves(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.ServerConfig) {
		cfg.Quests.SaveDelay = time.Hour
	})
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "foreman", ID: 1001})
	readType(t, conn, MsgDialogueClose)
	_, saved := env.store.get("alice")
	require.False(t, saved, "save should still be debounced")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.srv.Shutdown(ctx))

	sd, ok := env.store.get("alice")
	require.True(t, ok)
	require.Len(t, sd.Quests, 1)
	assert.Equal(t, quest.QuestStatusActive, sd.Quests[0].State)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_ConnectionLimit(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.ServerConfig) {
		cfg.Connections.MaxPerIP = 1
	})
	env.join("alice")

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_OriginRejected(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *config.ServerConfig) {
		cfg.WebSocket.AllowedOrigins = []string{"https://game.example"}
	})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://game.example")
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(), header)
	require.NoError(t, err)
	conn.Close()
}

func TestServer_RecoversFromPanickingContent(t *testing.T) {
	registry := testRegistry(t)
	require.NoError(t, registry.Register(&quest.Quest{
		ID: "cursed",
		Interactions: []*quest.DialogueInteraction{{
			NPC: "witch",
			Root: &quest.DialogueOption{
				Text:     "Touch the idol",
				OnSelect: func(*quest.PlayerQuestLog) { panic("idol is cursed") },
			},
		}},
	}))
	registry.InitializeQuests()

	env := newTestEnv(t, registry, nil)
	conn, _ := env.join("alice")

	send(t, conn, ClientMessage{Type: MsgSelect, NPC: "witch", ID: 1000})
	send(t, conn, ClientMessage{Type: MsgInteract, NPC: "foreman"})
	roots := readType(t, conn, MsgDialogue)
	assert.Equal(t, []int{1000}, optionIDs(roots), "session keeps serving after a panic")
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.join("alice")

	resp, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Sessions)
	assert.Equal(t, 1, body.Quests)
}

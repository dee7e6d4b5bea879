package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertnahas/teamclaude/pkg/models"
)

// recordingSink collects recorded envelopes for assertions.
type recordingSink struct {
	mu   sync.Mutex
	data [][]byte
}

func (r *recordingSink) Record(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	r.data = append(r.data, cp)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// stubReplayer records replay requests and sends a single marker frame.
type stubReplayer struct {
	mu       sync.Mutex
	sprintID string
	speed    float64
	cancels  int
}

func (s *stubReplayer) StartReplay(_ context.Context, sprintID string, speed float64, send func([]byte) error) (func(), error) {
	s.mu.Lock()
	s.sprintID = sprintID
	s.speed = speed
	s.mu.Unlock()
	_ = send([]byte(`{"type":"replay_start","sprintId":"` + sprintID + `"}`))
	return func() {
		s.mu.Lock()
		s.cancels++
		s.mu.Unlock()
	}, nil
}

func setupTestBroadcaster(t *testing.T) (*Broadcaster, *httptest.Server) {
	t.Helper()

	b := NewBroadcaster(5 * time.Second)
	b.SetInitSource(func() Event {
		return InitPayload{State: models.NewSprintState()}
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			t.Logf("WebSocket accept error: %v", err)
			return
		}
		b.HandleConnection(r.Context(), conn)
	}))

	t.Cleanup(func() { server.Close() })
	return b, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestBroadcaster_InitOnConnect(t *testing.T) {
	_, server := setupTestBroadcaster(t)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "init", msg["type"])

	state, ok := msg["state"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "idle", state["phase"])
}

func TestBroadcaster_FanOutOrder(t *testing.T) {
	b, server := setupTestBroadcaster(t)

	conn1 := connectWS(t, server)
	conn2 := connectWS(t, server)
	readJSON(t, conn1)
	readJSON(t, conn2)

	require.Eventually(t, func() bool {
		return b.ActiveConnections() == 2
	}, time.Second, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		b.Broadcast(TaskValidationPayload{TaskID: string(rune('0' + i)), Passed: true})
	}

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		for i := 0; i < 5; i++ {
			msg := readJSON(t, conn)
			assert.Equal(t, "task_validation", msg["type"])
			assert.Equal(t, string(rune('0'+i)), msg["taskId"])
		}
	}
}

func TestBroadcaster_PingPong(t *testing.T) {
	_, server := setupTestBroadcaster(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "ping"})

	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestBroadcaster_RecorderAndPersistHooks(t *testing.T) {
	b := NewBroadcaster(time.Second)

	sink := &recordingSink{}
	var persists int
	b.AttachRecorder(sink)
	b.SetPersistHook(func() { persists++ })

	b.Broadcast(PausedPayload{Paused: true})
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, persists)

	// Transient events bypass both hooks.
	b.Broadcast(TerminalOutputPayload{Line: "build ok"})
	b.Broadcast(PanesDiscoveredPayload{})
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, persists)

	b.DetachRecorder()
	b.Broadcast(PausedPayload{Paused: false})
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 2, persists)
}

func TestBroadcaster_ReplayAction(t *testing.T) {
	b, server := setupTestBroadcaster(t)
	replayer := &stubReplayer{}
	b.SetReplayer(replayer)

	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "replay", SprintID: "sprint-abc", Speed: 10})

	msg := readJSON(t, conn)
	assert.Equal(t, "replay_start", msg["type"])
	assert.Equal(t, "sprint-abc", msg["sprintId"])

	replayer.mu.Lock()
	assert.Equal(t, "sprint-abc", replayer.sprintID)
	assert.InDelta(t, 10.0, replayer.speed, 1e-9)
	replayer.mu.Unlock()

	// replay_stop cancels the in-flight replay.
	writeJSON(t, conn, ClientMessage{Action: "replay_stop"})
	require.Eventually(t, func() bool {
		replayer.mu.Lock()
		defer replayer.mu.Unlock()
		return replayer.cancels == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_ReplayRequiresSprintID(t *testing.T) {
	b, server := setupTestBroadcaster(t)
	b.SetReplayer(&stubReplayer{})

	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "replay"})

	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestBroadcaster_DisconnectCancelsReplay(t *testing.T) {
	b, server := setupTestBroadcaster(t)
	replayer := &stubReplayer{}
	b.SetReplayer(replayer)

	conn := connectWS(t, server)
	readJSON(t, conn)
	writeJSON(t, conn, ClientMessage{Action: "replay", SprintID: "sprint-abc"})
	readJSON(t, conn)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		replayer.mu.Lock()
		defer replayer.mu.Unlock()
		return replayer.cancels == 1
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return b.ActiveConnections() == 0
	}, time.Second, 10*time.Millisecond)
}

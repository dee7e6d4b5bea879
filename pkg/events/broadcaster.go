package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// DefaultWriteTimeout bounds each per-connection WebSocket send. A stuck
// client loses events rather than stalling the broadcast fan-out.
const DefaultWriteTimeout = 2 * time.Second

// RecordSink receives every non-transient broadcast envelope while a
// recording is attached. Implemented by replay.Recorder.
type RecordSink interface {
	Record(data []byte)
}

// ReplayStarter streams a named recording to a single client. Implemented
// by replay.Player and wired at startup. The returned cancel func clears
// all pending sends.
type ReplayStarter interface {
	StartReplay(ctx context.Context, sprintID string, speed float64, send func([]byte) error) (func(), error)
}

// Broadcaster owns the set of connected dashboard clients and fans every
// event out to all of them. Each Go process has one Broadcaster instance.
type Broadcaster struct {
	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Write timeout for WebSocket sends
	writeTimeout time.Duration

	// Hooks wired after construction. initSource, persistHook, and
	// replayer are set once at startup; recorder flips at sprint
	// start/stop, concurrent with broadcasts.
	hookMu      sync.RWMutex
	initSource  func() Event
	persistHook func()
	recorder    RecordSink
	replayer    ReplayStarter
}

// Connection represents a single WebSocket client.
//
// replayCancel is accessed WITHOUT a lock. This is safe because all reads
// and writes happen on the single goroutine that owns this connection
// (HandleConnection's read loop and its deferred cleanup).
type Connection struct {
	ID           string
	Conn         *websocket.Conn
	ctx          context.Context
	cancel       context.CancelFunc
	replayCancel func()
}

// NewBroadcaster creates a Broadcaster with the given per-send timeout.
func NewBroadcaster(writeTimeout time.Duration) *Broadcaster {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Broadcaster{
		connections:  make(map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// SetInitSource wires the snapshot provider sent to every new connection.
// Called once during startup.
func (b *Broadcaster) SetInitSource(src func() Event) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.initSource = src
}

// SetPersistHook wires the debounced-persist scheduler invoked on every
// non-transient broadcast. Called once during startup.
func (b *Broadcaster) SetPersistHook(hook func()) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.persistHook = hook
}

// SetReplayer wires the replay starter serving client replay requests.
// Called once during startup.
func (b *Broadcaster) SetReplayer(r ReplayStarter) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.replayer = r
}

// AttachRecorder routes every subsequent non-transient broadcast into the
// sink. Called at sprint start.
func (b *Broadcaster) AttachRecorder(r RecordSink) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.recorder = r
}

// DetachRecorder stops routing broadcasts into the recording sink.
// Called at sprint stop.
func (b *Broadcaster) DetachRecorder() {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.recorder = nil
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes.
func (b *Broadcaster) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:     connID,
		Conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}

	b.registerConnection(c)
	defer b.unregisterConnection(c)

	// Send the init snapshot before anything else so the client renders
	// from a consistent baseline.
	b.hookMu.RLock()
	initSource := b.initSource
	b.hookMu.RUnlock()
	if initSource != nil {
		data, err := Marshal(initSource())
		if err != nil {
			slog.Error("Failed to marshal init snapshot", "connection_id", connID, "error", err)
		} else if err := b.sendRaw(c, data); err != nil {
			slog.Warn("Failed to send init snapshot", "connection_id", connID, "error", err)
			return
		}
	}

	// Read loop: process client messages until the connection closes
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Connection closed or errored, exit the read loop
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", connID, "error", err)
			continue
		}

		b.handleClientMessage(ctx, c, &msg)
	}
}

// Broadcast serializes one event and sends it to all connections. Every
// non-transient event is also offered to the attached recorder and
// schedules the debounced persist.
func (b *Broadcaster) Broadcast(evt Event) {
	data, err := Marshal(evt)
	if err != nil {
		slog.Error("Failed to marshal event", "event_type", evt.EventType(), "error", err)
		return
	}

	// Snapshot connection pointers under the lock, then release before
	// sending. This avoids holding mu.RLock during potentially slow
	// writes (up to writeTimeout per connection), which would stall
	// connection register/unregister operations.
	b.mu.RLock()
	conns := make([]*Connection, 0, len(b.connections))
	for _, c := range b.connections {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	for _, c := range conns {
		if err := b.sendRaw(c, data); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", c.ID, "event_type", evt.EventType(), "error", err)
		}
	}

	if IsTransient(evt.EventType()) {
		return
	}

	b.hookMu.RLock()
	recorder := b.recorder
	persistHook := b.persistHook
	b.hookMu.RUnlock()

	if recorder != nil {
		recorder.Record(data)
	}
	if persistHook != nil {
		persistHook()
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (b *Broadcaster) ActiveConnections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// handleClientMessage dispatches a client message to the appropriate handler.
func (b *Broadcaster) handleClientMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "ping":
		b.sendJSON(c, map[string]string{"type": "pong"})

	case "replay":
		if msg.SprintID == "" {
			b.sendJSON(c, map[string]string{"type": "error", "message": "sprintId is required for replay"})
			return
		}
		b.hookMu.RLock()
		replayer := b.replayer
		b.hookMu.RUnlock()
		if replayer == nil {
			b.sendJSON(c, map[string]string{"type": "error", "message": "replay is not available"})
			return
		}

		// A new replay supersedes any in-flight one on this connection.
		if c.replayCancel != nil {
			c.replayCancel()
			c.replayCancel = nil
		}

		speed := msg.Speed
		if speed <= 0 {
			speed = 1
		}
		cancel, err := replayer.StartReplay(ctx, msg.SprintID, speed, func(data []byte) error {
			return b.sendRaw(c, data)
		})
		if err != nil {
			slog.Warn("Failed to start replay",
				"connection_id", c.ID, "sprint_id", msg.SprintID, "error", err)
			b.sendJSON(c, map[string]string{"type": "error", "message": "failed to start replay"})
			return
		}
		c.replayCancel = cancel

	case "replay_stop":
		if c.replayCancel != nil {
			c.replayCancel()
			c.replayCancel = nil
		}
	}
}

// registerConnection adds a connection to the tracking map.
func (b *Broadcaster) registerConnection(c *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[c.ID] = c
}

// unregisterConnection removes a connection and cancels its replay.
func (b *Broadcaster) unregisterConnection(c *Connection) {
	b.mu.Lock()
	delete(b.connections, c.ID)
	b.mu.Unlock()

	if c.replayCancel != nil {
		c.replayCancel()
		c.replayCancel = nil
	}
	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendJSON marshals and sends a JSON message to a single connection.
func (b *Broadcaster) sendJSON(c *Connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := b.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (b *Broadcaster) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, b.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}

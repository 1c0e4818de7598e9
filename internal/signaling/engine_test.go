package signaling

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"callmesh-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}

type sentEvent struct {
	Event string
	Data  interface{}
}

// fakeConn records every event pushed to it
type fakeConn struct {
	mu     sync.Mutex
	events []sentEvent
	closed bool
	full   bool
}

func (c *fakeConn) Send(event string, data interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.events = append(c.events, sentEvent{Event: event, Data: data})
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) last(event string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Event == event {
			return c.events[i].Data, true
		}
	}
	return nil, false
}

type fakeDirectory struct {
	names map[string]string
}

func (d *fakeDirectory) Resolve(_ context.Context, userID string) (string, string, error) {
	if name, ok := d.names[userID]; ok {
		return name, "https://cdn.example.com/" + userID + ".jpg", nil
	}
	return "User", "", nil
}

type fakeHistory struct {
	mu        sync.Mutex
	starts    []HistoryRecord
	statuses  map[string]string
	durations map[string]int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		statuses:  make(map[string]string),
		durations: make(map[string]int),
	}
}

func (h *fakeHistory) RecordCallStart(_ context.Context, rec HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, rec)
	return nil
}

func (h *fakeHistory) RecordCallStatus(_ context.Context, callID, status string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[callID] = status
	return nil
}

func (h *fakeHistory) RecordCallDuration(_ context.Context, callID string, seconds int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durations[callID] = seconds
	return nil
}

func (h *fakeHistory) status(callID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statuses[callID]
}

type fakeNotifier struct {
	mu      sync.Mutex
	invites []CallInvite
	missed  []CallInvite
}

func (n *fakeNotifier) CallInvite(_ context.Context, invite CallInvite) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, invite)
	return nil
}

func (n *fakeNotifier) MissedCall(_ context.Context, invite CallInvite) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.missed = append(n.missed, invite)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.invites)
}

func (n *fakeNotifier) missedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.missed)
}

type testEnv struct {
	engine   *Engine
	history  *fakeHistory
	notifier *fakeNotifier
}

func newTestEnv(ringTimeout time.Duration) *testEnv {
	history := newFakeHistory()
	notifier := &fakeNotifier{}
	directory := &fakeDirectory{names: map[string]string{
		"alice": "Alice",
		"bob":   "Bob",
		"carol": "Carol",
		"dave":  "Dave",
	}}
	engine := NewEngine(directory, EngineOptions{
		History:     history,
		Notifier:    notifier,
		RingTimeout: ringTimeout,
	})
	return &testEnv{engine: engine, history: history, notifier: notifier}
}

// connect registers a user and returns their recording connection
func (env *testEnv) connect(t *testing.T, userID string) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	env.engine.HandleConnect(context.Background(), userID, conn)
	return conn
}

func TestHandleConnectReplacesPreviousSession(t *testing.T) {
	env := newTestEnv(0)

	first := env.connect(t, "alice")
	second := env.connect(t, "alice")

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.Equal(t, 1, env.engine.Registry().Count())

	conn, ok := env.engine.Registry().Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, second, conn.(*fakeConn))
}

func TestHandleDisconnectStaleHandleKeepsNewSession(t *testing.T) {
	env := newTestEnv(0)

	first := env.connect(t, "alice")
	second := env.connect(t, "alice")

	env.engine.HandleDisconnect(context.Background(), "alice", first)

	assert.True(t, env.engine.IsOnline("alice"))
	conn, _ := env.engine.Registry().Lookup("alice")
	assert.Same(t, second, conn.(*fakeConn))
}

func TestConnectBroadcastsOnlineStatus(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	data, ok := alice.last(EventUserOnlineStatus)
	assert.True(t, ok)
	payload := data.(UserOnlineStatusPayload)
	assert.Equal(t, "bob", payload.UserID)
	assert.True(t, payload.Online)
}

func TestDisconnectBroadcastsOfflineStatus(t *testing.T) {
	env := newTestEnv(0)

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	env.engine.HandleDisconnect(context.Background(), "bob", bob)

	data, ok := alice.last(EventUserOnlineStatus)
	assert.True(t, ok)
	payload := data.(UserOnlineStatusPayload)
	assert.Equal(t, "bob", payload.UserID)
	assert.False(t, payload.Online)
}

func TestFormatCallDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"seconds only", 42 * time.Second, "42 sec"},
		{"zero", 0, "0 sec"},
		{"minutes and seconds", 3*time.Minute + 5*time.Second, "3 min 5 sec"},
		{"exact minute", 60 * time.Second, "1 min 0 sec"},
		{"hours and minutes", 2*time.Hour + 30*time.Minute, "2 hr 30 min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCallDuration(tt.duration))
		})
	}
}

package livefeed_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"incidenbot/backend/internal/livefeed"
	"incidenbot/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	id     string
	send   chan *livefeed.Snapshot
	closed chan struct{}
	once   sync.Once
}

func newMockClient(id string, buffer int) *mockClient {
	return &mockClient{id: id, send: make(chan *livefeed.Snapshot, buffer), closed: make(chan struct{})}
}

func (c *mockClient) GetID() string                             { return c.id }
func (c *mockClient) GetSendChannel() chan<- *livefeed.Snapshot { return c.send }
func (c *mockClient) Run()                                      {}
func (c *mockClient) Close()                                    { c.once.Do(func() { close(c.closed) }) }

func incidents(ids ...string) []models.Incident {
	out := make([]models.Incident, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Incident{ID: id, Status: models.StatusOpen})
	}
	return out
}

func startHub(t *testing.T, store *MockStorage) (*livefeed.Hub, context.CancelFunc) {
	t.Helper()
	hub := livefeed.NewHub(store)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, ch <-chan *livefeed.Snapshot) *livefeed.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func TestHub_SubscribeDeliversCurrentSnapshot(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(3), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("b", "a"), nil)

	hub, _ := startHub(t, store)

	got := make(chan livefeed.Snapshot, 1)
	unsubscribe := hub.Subscribe(func(s livefeed.Snapshot) { got <- s })
	defer unsubscribe()

	select {
	case snap := <-got:
		assert.Equal(t, int64(3), snap.Version)
		require.Len(t, snap.Incidents, 2)
		assert.Equal(t, "b", snap.Incidents[0].ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber never called")
	}

	require.NotNil(t, hub.Latest())
	assert.Equal(t, int64(3), hub.Latest().Version)
}

func TestHub_EmptyCollectionIsStillDelivered(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(0), nil)
	store.On("ListIncidents", mock.Anything).Return([]models.Incident(nil), nil)

	hub, _ := startHub(t, store)
	client := newMockClient("c1", 4)
	require.True(t, hub.Register(client))

	snap := receive(t, client.send)
	assert.NotNil(t, snap.Incidents)
	assert.Empty(t, snap.Incidents)
}

func TestHub_ChangeReloadsAndFansOut(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil).Once()
	store.On("ListIncidents", mock.Anything).Return(incidents("b", "a"), nil).Once()

	hub, _ := startHub(t, store)
	c1 := newMockClient("c1", 4)
	c2 := newMockClient("c2", 4)
	require.True(t, hub.Register(c1))
	require.True(t, hub.Register(c2))
	assert.Equal(t, int64(1), receive(t, c1.send).Version)
	assert.Equal(t, int64(1), receive(t, c2.send).Version)

	hub.ChangesCh <- 2

	for _, c := range []*mockClient{c1, c2} {
		snap := receive(t, c.send)
		assert.Equal(t, int64(2), snap.Version)
		assert.Len(t, snap.Incidents, 2, "whole collection, not a delta")
	}
}

func TestHub_IgnoresStaleChange(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(5), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil)

	hub, _ := startHub(t, store)
	client := newMockClient("c1", 4)
	require.True(t, hub.Register(client))
	receive(t, client.send)

	hub.ChangesCh <- 4
	hub.ChangesCh <- 5

	select {
	case <-client.send:
		t.Fatal("stale change should not trigger a reload")
	case <-time.After(50 * time.Millisecond):
	}
	store.AssertNumberOfCalls(t, "ListIncidents", 1)
}

func TestHub_FailedLoadKeepsPreviousSnapshot(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil).Once()
	failed := make(chan struct{})
	store.On("ListIncidents", mock.Anything).
		Run(func(mock.Arguments) { close(failed) }).
		Return([]models.Incident(nil), errors.New("db down")).Once()

	hub, _ := startHub(t, store)
	client := newMockClient("c1", 4)
	require.True(t, hub.Register(client))
	receive(t, client.send)

	hub.ChangesCh <- 2

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("reload was not attempted")
	}
	select {
	case <-client.send:
		t.Fatal("failed reload must not push a snapshot")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int64(1), hub.Latest().Version)
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil)

	hub, _ := startHub(t, store)
	client := newMockClient("c1", 4)
	require.True(t, hub.Register(client))
	receive(t, client.send)

	hub.Unregister(client)

	select {
	case <-client.closed:
	case <-time.After(time.Second):
		t.Fatal("client was not closed")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil)

	hub, _ := startHub(t, store)
	slow := newMockClient("slow", 0)
	require.True(t, hub.Register(slow))

	select {
	case <-slow.closed:
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
}

func TestHub_ResyncCatchesMissedChange(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil).Once()
	store.On("CurrentVersion", mock.Anything).Return(int64(2), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil).Once()
	store.On("ListIncidents", mock.Anything).Return(incidents("b", "a"), nil)

	hub := livefeed.NewHub(store)
	hub.ResyncEvery = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	assert.Eventually(t, func() bool {
		snap := hub.Latest()
		return snap != nil && snap.Version == 2 && len(snap.Incidents) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestHub_ResyncRefreshesRowsWrittenWithoutVersionBump(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil).Once()
	store.On("ListIncidents", mock.Anything).Return(incidents("b", "a"), nil)

	hub := livefeed.NewHub(store)
	hub.ResyncEvery = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newMockClient("c1", 4)
	go hub.Run(ctx)
	require.True(t, hub.Register(client))
	first := receive(t, client.send)
	require.Len(t, first.Incidents, 1)

	refreshed := receive(t, client.send)
	assert.Equal(t, int64(1), refreshed.Version)
	assert.Len(t, refreshed.Incidents, 2)
	assert.Greater(t, refreshed.Revision, first.Revision)

	select {
	case <-client.send:
		t.Fatal("unchanged rows must not be pushed again")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(1), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("a"), nil)

	hub, cancel := startHub(t, store)
	client := newMockClient("c1", 4)
	require.True(t, hub.Register(client))

	cancel()

	select {
	case <-client.closed:
	case <-time.After(time.Second):
		t.Fatal("client was not closed on shutdown")
	}
	assert.Eventually(t, func() bool {
		return !hub.Register(newMockClient("late", 1))
	}, time.Second, 5*time.Millisecond)

	unsubscribe := hub.Subscribe(func(livefeed.Snapshot) {})
	unsubscribe()
}

func TestEncodeSnapshot(t *testing.T) {
	snap := &livefeed.Snapshot{Version: 7, Incidents: []models.Incident{{ID: "a", Description: "Wifi caído"}}}

	data, err := livefeed.EncodeSnapshot(snap)
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "snapshot", frame["type"])
	assert.Equal(t, float64(7), frame["version"])
	list := frame["incidents"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Wifi caído", list[0].(map[string]any)["original_message"])
}

func TestWebSocketClient_StreamsSnapshots(t *testing.T) {
	store := new(MockStorage)
	store.On("CurrentVersion", mock.Anything).Return(int64(9), nil)
	store.On("ListIncidents", mock.Anything).Return(incidents("x"), nil)

	hub, _ := startHub(t, store)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(livefeed.NewWebSocketClient(hub, conn, "staff"))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.SnapshotMessage
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "snapshot", frame.Type)
	assert.Equal(t, int64(9), frame.Version)
	require.Len(t, frame.Incidents, 1)
	assert.Equal(t, "x", frame.Incidents[0].ID)
}

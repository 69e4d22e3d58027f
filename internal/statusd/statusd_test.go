package statusd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/kestrelhealth/praxis/internal/engine"
	"github.com/kestrelhealth/praxis/internal/model"
	"github.com/kestrelhealth/praxis/internal/netmon"
	"github.com/kestrelhealth/praxis/internal/store"
)

type alwaysHealthy struct{}

func (alwaysHealthy) Healthy(_ context.Context) bool { return true }

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(_ context.Context, _ *model.SyncQueueItem) error { return nil }

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// setupServer starts a status server on an ephemeral port over a running
// engine.
func setupServer(t *testing.T) (*Server, *engine.Engine, *store.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	monitor, err := netmon.New(alwaysHealthy{}, &netmon.Config{
		ProbeInterval:     time.Hour,
		ReconnectDebounce: 10 * time.Millisecond,
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create monitor: %v", err)
	}
	if err := monitor.Start(); err != nil {
		t.Fatalf("failed to start monitor: %v", err)
	}
	t.Cleanup(func() { _ = monitor.Close() })

	eng, err := engine.New(st, noopDispatcher{}, monitor, &engine.Config{
		UserID:        "user-1",
		SyncInterval:  time.Hour,
		PruneInterval: time.Hour,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(eng.Stop)

	srv, err := NewServer(eng, &Config{Port: 0, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })

	return srv, eng, st
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, st := setupServer(t)

	if _, err := st.Enqueue(context.Background(), &model.SyncQueueItem{
		Operation:  model.OpCreate,
		EntityKind: model.KindClient,
		EntityID:   "cl-1",
		Payload:    []byte(`{"id":"cl-1"}`),
		UserID:     "user-1",
		Timestamp:  time.Now(),
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/status", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status engine.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !status.IsOnline {
		t.Error("expected online status")
	}
}

func TestStatusEndpointRejectsPost(t *testing.T) {
	srv, _, _ := setupServer(t)

	resp, err := http.Post(fmt.Sprintf("http://%s/status", srv.Addr()), "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestSyncEndpoint(t *testing.T) {
	srv, _, st := setupServer(t)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, &model.SyncQueueItem{
		Operation:  model.OpCreate,
		EntityKind: model.KindClient,
		EntityID:   "cl-1",
		Payload:    []byte(`{"id":"cl-1"}`),
		UserID:     "user-1",
		Timestamp:  time.Now(),
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/sync", srv.Addr()), "application/json", nil)
	if err != nil {
		t.Fatalf("POST /sync failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	// The triggered pass drains the queue in the background.
	deadline := time.After(2 * time.Second)
	for {
		count, err := st.PendingCount(ctx, "user-1")
		if err != nil {
			t.Fatalf("PendingCount failed: %v", err)
		}
		if count == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for drain; %d still pending", count)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := setupServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebSocketInitialSnapshot(t *testing.T) {
	srv, _, _ := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", srv.Addr()), nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("WebSocket read failed: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if msg.Type != "status" {
		t.Errorf("expected type 'status', got %q", msg.Type)
	}
	if !msg.Status.IsOnline {
		t.Error("expected online in initial snapshot")
	}
}

func TestWebSocketReceivesStatusChanges(t *testing.T) {
	srv, eng, st := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", srv.Addr()), nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Consume the initial snapshot.
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("failed to read initial snapshot: %v", err)
	}

	if _, err := st.Enqueue(context.Background(), &model.SyncQueueItem{
		Operation:  model.OpCreate,
		EntityKind: model.KindClient,
		EntityID:   "cl-1",
		Payload:    []byte(`{"id":"cl-1"}`),
		UserID:     "user-1",
		Timestamp:  time.Now(),
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := eng.RefreshPendingCount(); err != nil {
		t.Fatalf("RefreshPendingCount failed: %v", err)
	}

	// A pushed snapshot must reflect the new pending item.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("WebSocket read failed: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if msg.Status.PendingSyncCount == 1 {
			return
		}
	}
}

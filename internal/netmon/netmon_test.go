package netmon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProber answers health probes from an atomic flag.
type fakeProber struct {
	healthy atomic.Bool
}

func (p *fakeProber) Healthy(_ context.Context) bool {
	return p.healthy.Load()
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testConfig() *Config {
	return &Config{
		ProbeInterval:     time.Hour, // transitions driven explicitly in tests
		ReconnectDebounce: 20 * time.Millisecond,
		Logger:            quietLogger(),
	}
}

func waitForState(t *testing.T, ch chan State, want State) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected transition to %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transition to %s", want)
	}
}

func TestInitialStateFromProbe(t *testing.T) {
	prober := &fakeProber{}
	prober.healthy.Store(true)

	m, err := New(prober, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Close()

	if !m.Online() {
		t.Error("expected online with healthy prober")
	}
}

func TestOfflineNotifiedImmediately(t *testing.T) {
	prober := &fakeProber{}
	prober.healthy.Store(true)

	m, err := New(prober, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Close()

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	m.SetState(Offline)
	if m.State() != Offline {
		t.Error("expected offline state")
	}
	waitForState(t, ch, Offline)
}

func TestReconnectDebounced(t *testing.T) {
	prober := &fakeProber{}
	m, err := New(prober, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Close()

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	m.SetState(Online)

	// State flips right away; the notification waits out the debounce.
	if m.State() != Online {
		t.Error("expected online state immediately")
	}
	select {
	case got := <-ch:
		t.Fatalf("notification before debounce elapsed: %s", got)
	case <-time.After(5 * time.Millisecond):
	}

	waitForState(t, ch, Online)
}

func TestFlappingCancelsReconnectNotification(t *testing.T) {
	prober := &fakeProber{}
	config := testConfig()
	config.ReconnectDebounce = 100 * time.Millisecond

	m, err := New(prober, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Close()

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	// Go online then drop again before the debounce elapses.
	m.SetState(Online)
	time.Sleep(10 * time.Millisecond)
	m.SetState(Offline)

	waitForState(t, ch, Offline)

	// The cancelled online notification must never trail the offline one.
	select {
	case got := <-ch:
		t.Fatalf("unexpected late notification: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStateFileOverride(t *testing.T) {
	tmpDir := t.TempDir()
	stateFile := filepath.Join(tmpDir, "connectivity")
	if err := os.WriteFile(stateFile, []byte("offline\n"), 0o644); err != nil {
		t.Fatalf("failed to write state file: %v", err)
	}

	// Prober says healthy; the file wins.
	prober := &fakeProber{}
	prober.healthy.Store(true)

	config := testConfig()
	config.StateFile = stateFile

	m, err := New(prober, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Close()

	if m.Online() {
		t.Error("expected offline per state file despite healthy prober")
	}

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	// Rewriting the file flips state without waiting for a probe tick.
	if err := os.WriteFile(stateFile, []byte("online"), 0o644); err != nil {
		t.Fatalf("failed to rewrite state file: %v", err)
	}
	waitForState(t, ch, Online)
}

func TestReadStateFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state")

	if _, ok := readStateFile(path); ok {
		t.Error("expected ok=false for missing file")
	}

	if err := os.WriteFile(path, []byte("  ONLINE \n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if state, ok := readStateFile(path); !ok || state != Online {
		t.Errorf("expected online, got %s (ok=%v)", state, ok)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, ok := readStateFile(path); ok {
		t.Error("expected ok=false for unparseable content")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	prober := &fakeProber{}
	m, err := New(prober, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch := m.Subscribe()
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after Unsubscribe")
	}

	// Double unsubscribe must not panic.
	m.Unsubscribe(ch)

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	prober := &fakeProber{}
	m, err := New(prober, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch := m.Subscribe()
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Drain any buffered transition; the channel must end up closed.
	for {
		if _, ok := <-ch; !ok {
			return
		}
	}
}

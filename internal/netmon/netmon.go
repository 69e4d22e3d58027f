// Package netmon tracks the client's online/offline state.
//
// The monitor derives connectivity from two signals:
//  1. A periodic probe of the remote service's health endpoint.
//  2. An optional state file ("online"/"offline") that a system-level
//     network manager hook can write; when present it overrides probing.
//     The file is watched with fsnotify so transitions fire without
//     waiting for the next probe tick.
//
// Consumers subscribe to transitions. An Offline -> Online transition is
// delivered after a short debounce so flapping connectivity doesn't trigger
// a sync storm; Online -> Offline is delivered immediately.
package netmon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// State represents the connectivity state.
type State int

const (
	// Offline indicates the remote service is unreachable.
	Offline State = iota
	// Online indicates the remote service is reachable.
	Online
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Offline:
		return "offline"
	case Online:
		return "online"
	default:
		return "unknown"
	}
}

// Prober answers whether the remote service is currently reachable.
type Prober interface {
	Healthy(ctx context.Context) bool
}

// Config holds configuration for the monitor.
type Config struct {
	// ProbeInterval is how often to probe the remote health endpoint
	// (default: 30s).
	ProbeInterval time.Duration

	// ReconnectDebounce is how long to wait after regaining connectivity
	// before notifying subscribers (default: 2s). This avoids reacting to
	// transient flapping.
	ReconnectDebounce time.Duration

	// StateFile is an optional path to a connectivity override file
	// containing "online" or "offline". Empty disables the override.
	StateFile string

	// Logger for monitor activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval:     30 * time.Second,
		ReconnectDebounce: 2 * time.Second,
		Logger:            log.New(os.Stderr, "[netmon] ", log.LstdFlags),
	}
}

// Monitor observes connectivity transitions and notifies subscribers.
type Monitor struct {
	prober Prober
	config *Config

	mu        sync.Mutex
	state     State
	subs      map[chan State]bool
	reconnect *time.Timer

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor. Call Start to begin observation and Close to
// release the watcher and subscriber channels.
func New(prober Prober, config *Config) (*Monitor, error) {
	if prober == nil {
		return nil, fmt.Errorf("prober cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[netmon] ", log.LstdFlags)
	}
	if config.ProbeInterval == 0 {
		config.ProbeInterval = 30 * time.Second
	}
	if config.ReconnectDebounce == 0 {
		config.ReconnectDebounce = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		prober: prober,
		config: config,
		state:  Offline,
		subs:   make(map[chan State]bool),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start reads the initial connectivity state and begins the probe loop and
// the optional state-file watch.
func (m *Monitor) Start() error {
	// Initial state from the current signal, before any subscriber exists.
	m.mu.Lock()
	m.state = m.currentSignal()
	m.config.Logger.Printf("Initial connectivity: %s", m.state)
	m.mu.Unlock()

	if m.config.StateFile != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		// Watch the directory: editors and dispatcher scripts replace the
		// file rather than writing in place.
		if err := watcher.Add(filepath.Dir(m.config.StateFile)); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch state file directory: %w", err)
		}
		m.watcher = watcher

		m.wg.Add(1)
		go m.watchStateFile()
	}

	m.wg.Add(1)
	go m.probeLoop()

	return nil
}

// Close stops the monitor, releases the file watcher, and closes all
// subscriber channels.
func (m *Monitor) Close() error {
	m.cancel()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			m.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	for ch := range m.subs {
		close(ch)
		delete(m.subs, ch)
	}
	return nil
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the monitor currently considers the client online.
func (m *Monitor) Online() bool {
	return m.State() == Online
}

// Subscribe registers for connectivity transitions. The returned channel
// receives the new state on each transition; Offline -> Online is delivered
// after the reconnect debounce. Call Unsubscribe to release the channel.
func (m *Monitor) Subscribe() chan State {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan State, 4)
	m.subs[ch] = true
	return ch
}

// Unsubscribe releases a channel returned by Subscribe.
func (m *Monitor) Unsubscribe(ch chan State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[ch] {
		delete(m.subs, ch)
		close(ch)
	}
}

// SetState forces a transition. Exposed for environments that surface
// connectivity through their own signal (and for tests); the monitor's own
// probe may overwrite it on the next tick.
func (m *Monitor) SetState(next State) {
	m.transition(next)
}

// probeLoop periodically re-reads the connectivity signal.
func (m *Monitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case <-ticker.C:
			m.transition(m.currentSignal())
		}
	}
}

// watchStateFile reacts to override-file changes between probe ticks.
func (m *Monitor) watchStateFile() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.config.StateFile) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			m.config.Logger.Printf("State file event: %s %s", event.Op, event.Name)
			m.transition(m.currentSignal())

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// currentSignal reads the connectivity signal: state-file override when
// present and parseable, probe otherwise.
func (m *Monitor) currentSignal() State {
	if m.config.StateFile != "" {
		if state, ok := readStateFile(m.config.StateFile); ok {
			return state
		}
	}

	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()
	if m.prober.Healthy(ctx) {
		return Online
	}
	return Offline
}

// transition applies a state change and notifies subscribers. The reconnect
// notification is deferred by the debounce and cancelled if connectivity
// drops again before it fires.
func (m *Monitor) transition(next State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if next == m.state {
		return
	}
	m.state = next
	m.config.Logger.Printf("Connectivity: %s", next)

	if next == Offline {
		if m.reconnect != nil {
			m.reconnect.Stop()
			m.reconnect = nil
		}
		m.notifyLocked(Offline)
		return
	}

	// Offline -> Online: debounce before notifying.
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	m.reconnect = time.AfterFunc(m.config.ReconnectDebounce, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state != Online {
			return
		}
		m.reconnect = nil
		m.notifyLocked(Online)
	})
}

// notifyLocked delivers a transition to all subscribers without blocking.
// Callers must hold m.mu.
func (m *Monitor) notifyLocked(state State) {
	for ch := range m.subs {
		select {
		case ch <- state:
		default:
			// Subscriber is behind; it reads current state on next receive.
		}
	}
}

// readStateFile parses the override file. Returns ok=false when the file is
// missing or holds anything other than "online"/"offline".
func readStateFile(path string) (State, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Offline, false
	}
	switch strings.TrimSpace(strings.ToLower(string(data))) {
	case "online":
		return Online, true
	case "offline":
		return Offline, true
	default:
		return Offline, false
	}
}

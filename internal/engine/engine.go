// Package engine orchestrates draining the sync queue against the remote
// service.
//
// The engine:
//  1. Drains pending queue items strictly in order, one remote call at a
//     time, isolating per-item failures
//  2. Reacts to connectivity transitions (after the monitor's debounce)
//  3. Periodically checks for pending items that accumulated without a
//     transition
//  4. Prunes synced queue history past the retention window
//  5. Exposes the status surface consumed by presentation code
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/kestrelhealth/praxis/internal/model"
	"github.com/kestrelhealth/praxis/internal/netmon"
	"github.com/kestrelhealth/praxis/internal/store"
)

// ErrSyncInProgress is returned by SyncOnce when a drain pass is already
// running.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrOffline is returned by SyncOnce when the connectivity monitor reports
// offline.
var ErrOffline = errors.New("client is offline")

// Dispatcher replays one queued mutation against the remote service.
type Dispatcher interface {
	Dispatch(ctx context.Context, item *model.SyncQueueItem) error
}

// Status is the read-only observable state consumed by presentation code.
type Status struct {
	IsOnline         bool      `json:"is_online"`
	IsSyncing        bool      `json:"is_syncing"`
	PendingSyncCount int       `json:"pending_sync_count"`
	LastSyncTime     time.Time `json:"last_sync_time"`
	SyncError        string    `json:"sync_error,omitempty"`
}

// Config holds configuration for the engine.
type Config struct {
	// UserID scopes the queue the engine drains.
	UserID string

	// SyncInterval is how often to check for pending items while running
	// (default: 5m). This catches items enqueued while already online,
	// e.g. after a failed pass.
	SyncInterval time.Duration

	// PruneInterval is how often to sweep synced queue history
	// (default: 24h).
	PruneInterval time.Duration

	// Retention is how long synced items are kept for audit before
	// pruning (default: 7 days). Unsynced items are never pruned.
	Retention time.Duration

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for the given user.
func DefaultConfig(userID string) *Config {
	return &Config{
		UserID:        userID,
		SyncInterval:  5 * time.Minute,
		PruneInterval: 24 * time.Hour,
		Retention:     7 * 24 * time.Hour,
		Logger:        log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine drains the sync queue and maintains the status surface.
//
// The Idle/Syncing guard is the engine's sole concurrency primitive: a
// drain pass starts only when the engine is idle and the monitor reports
// online, and TriggerSync calls arriving mid-pass are coalesced into
// no-ops rather than queued.
type Engine struct {
	store      *store.Store
	dispatcher Dispatcher
	monitor    *netmon.Monitor
	config     *Config

	mu      sync.Mutex
	syncing bool
	status  Status
	subs    map[chan Status]bool

	transitions chan netmon.State

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine. Call Start to begin background operation and Stop
// to shut it down.
func New(st *store.Store, dispatcher Dispatcher, monitor *netmon.Monitor, config *Config) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if config == nil || config.UserID == "" {
		return nil, fmt.Errorf("config with user id is required")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if config.SyncInterval == 0 {
		config.SyncInterval = 5 * time.Minute
	}
	if config.PruneInterval == 0 {
		config.PruneInterval = 24 * time.Hour
	}
	if config.Retention == 0 {
		config.Retention = 7 * 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:      st,
		dispatcher: dispatcher,
		monitor:    monitor,
		config:     config,
		subs:       make(map[chan Status]bool),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start initializes the status surface and launches the background tasks:
// the connectivity transition listener, the periodic pending check, and the
// retention prune sweep.
func (e *Engine) Start() error {
	if _, err := e.RefreshPendingCount(); err != nil {
		return fmt.Errorf("failed to read pending count: %w", err)
	}

	e.mu.Lock()
	e.status.IsOnline = e.monitor.Online()
	e.mu.Unlock()

	e.transitions = e.monitor.Subscribe()

	e.wg.Add(3)
	go e.transitionLoop()
	go e.periodicCheck()
	go e.pruneLoop()

	return nil
}

// Stop shuts down the background tasks and releases subscriptions. The
// cancel happens under the mutex so it is ordered against begin's stopped
// check: any trigger arriving after Stop can no longer start a pass.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()
	if e.transitions != nil {
		e.monitor.Unsubscribe(e.transitions)
	}
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
}

// Status returns a snapshot of the observable state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Subscribe registers for status snapshots. The returned channel receives a
// snapshot after every status change. Call Unsubscribe to release it.
func (e *Engine) Subscribe() chan Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Status, 16)
	e.subs[ch] = true
	return ch
}

// Unsubscribe releases a channel returned by Subscribe.
func (e *Engine) Unsubscribe(ch chan Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs[ch] {
		delete(e.subs, ch)
		close(ch)
	}
}

// TriggerSync requests a drain pass. It is a no-op when a pass is already
// running (coalesced, not queued) or the client is offline. The pass runs
// in the background; observe progress through Status or Subscribe.
func (e *Engine) TriggerSync() {
	if !e.begin() {
		return
	}
	go func() {
		defer e.wg.Done()
		e.drain(e.ctx)
	}()
}

// SyncOnce runs a drain pass synchronously. Used by the CLI's manual sync
// command. Returns ErrSyncInProgress or ErrOffline when the pass cannot
// start; per-item remote failures do not surface here, only through the
// queue items and SyncError.
func (e *Engine) SyncOnce(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return ErrSyncInProgress
	}
	if !e.monitor.Online() {
		e.mu.Unlock()
		return ErrOffline
	}
	e.syncing = true
	e.status.IsSyncing = true
	e.publishLocked()
	e.mu.Unlock()

	return e.drain(ctx)
}

// RefreshPendingCount re-reads the pending queue length and updates the
// status surface. Called on Start, after every drain pass, and on each
// periodic check.
func (e *Engine) RefreshPendingCount() (int, error) {
	count, err := e.store.PendingCount(e.ctx, e.config.UserID)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.status.PendingSyncCount = count
	e.publishLocked()
	e.mu.Unlock()

	return count, nil
}

// begin attempts the Idle -> Syncing transition. Returns false when a pass
// is already running, the client is offline, or the engine has been
// stopped. The stopped check keeps a late TriggerSync (e.g. from the status
// server's /sync handler during shutdown) from adding to the wait group
// while Stop is waiting on it.
func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx.Err() != nil {
		return false
	}
	if e.syncing || !e.monitor.Online() {
		return false
	}
	e.syncing = true
	e.status.IsSyncing = true
	// Registered here, under the same lock as the stopped check, so the
	// add cannot interleave with Stop's cancel-then-wait. The drain
	// goroutine spawned by TriggerSync calls Done.
	e.wg.Add(1)
	e.publishLocked()
	return true
}

// drain walks all pending items for the user in (timestamp, id) order,
// dispatching each to the remote service sequentially. A single item's
// remote failure is recorded on the item and the pass continues; a store
// failure aborts the pass entirely, leaving unprocessed items for the next
// trigger.
//
// The caller must have completed the Idle -> Syncing transition.
func (e *Engine) drain(ctx context.Context) error {
	defer e.finish()

	items, err := e.store.PendingItems(ctx, e.config.UserID)
	if err != nil {
		e.config.Logger.Printf("Drain aborted: %v", err)
		e.setSyncError("local store unavailable; will retry")
		return err
	}

	if len(items) == 0 {
		// Nothing to do; status (including LastSyncTime) stays untouched.
		return nil
	}

	e.config.Logger.Printf("Draining %d pending item(s)", len(items))

	var succeeded, failed int
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			e.config.Logger.Printf("Drain cancelled after %d item(s)", succeeded+failed)
			return err
		}

		if err := e.dispatcher.Dispatch(ctx, item); err != nil {
			failed++
			e.config.Logger.Printf("Item %d (%s %s %s) failed: %v",
				item.ID, item.Operation, item.EntityKind, item.EntityID, err)
			if merr := e.store.MarkFailed(ctx, item.ID, err.Error()); merr != nil {
				e.setSyncError("local store unavailable; will retry")
				return merr
			}
			continue
		}

		if merr := e.store.MarkSynced(ctx, item.ID); merr != nil {
			e.setSyncError("local store unavailable; will retry")
			return merr
		}
		succeeded++
	}

	e.config.Logger.Printf("Drain complete: synced=%d failed=%d", succeeded, failed)

	e.mu.Lock()
	e.status.LastSyncTime = time.Now()
	if failed > 0 {
		e.status.SyncError = fmt.Sprintf("%d item(s) failed to sync", failed)
	} else {
		e.status.SyncError = ""
	}
	e.publishLocked()
	e.mu.Unlock()

	if _, err := e.RefreshPendingCount(); err != nil {
		e.config.Logger.Printf("Failed to refresh pending count: %v", err)
	}
	return nil
}

// finish performs the Syncing -> Idle transition.
func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false
	e.status.IsSyncing = false
	e.publishLocked()
}

// setSyncError records an engine-level failure message on the status
// surface.
func (e *Engine) setSyncError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.SyncError = msg
	e.publishLocked()
}

// transitionLoop reacts to connectivity transitions. The monitor has
// already debounced reconnects, so an Online delivery triggers a drain
// directly.
func (e *Engine) transitionLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return

		case state, ok := <-e.transitions:
			if !ok {
				return
			}
			e.mu.Lock()
			e.status.IsOnline = state == netmon.Online
			e.publishLocked()
			e.mu.Unlock()

			if state == netmon.Online {
				e.TriggerSync()
			}
		}
	}
}

// periodicCheck refreshes the pending count on a fixed interval and
// requests a drain when items are waiting. The begin guard drops the
// request when a pass is already running or the client is offline.
func (e *Engine) periodicCheck() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return

		case <-ticker.C:
			count, err := e.RefreshPendingCount()
			if err != nil {
				e.config.Logger.Printf("Periodic check failed: %v", err)
				continue
			}
			if count > 0 {
				e.TriggerSync()
			}
		}
	}
}

// pruneLoop sweeps synced queue history past the retention window.
func (e *Engine) pruneLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return

		case <-ticker.C:
			n, err := e.store.PruneSynced(e.ctx, e.config.Retention)
			if err != nil {
				e.config.Logger.Printf("Prune failed: %v", err)
				continue
			}
			if n > 0 {
				e.config.Logger.Printf("Pruned %d synced item(s)", n)
			}
		}
	}
}

// publishLocked delivers the current status snapshot to all subscribers
// without blocking. Callers must hold e.mu.
func (e *Engine) publishLocked() {
	for ch := range e.subs {
		select {
		case ch <- e.status:
		default:
			// Subscriber is behind; it catches up on the next snapshot.
		}
	}
}

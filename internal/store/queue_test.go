package store

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelhealth/praxis/internal/model"
)

func testQueueItem(userID string, ts time.Time) *model.SyncQueueItem {
	return &model.SyncQueueItem{
		Operation:  model.OpCreate,
		EntityKind: model.KindClient,
		EntityID:   "cl-1",
		Payload:    []byte(`{"id":"cl-1"}`),
		UserID:     userID,
		Timestamp:  ts,
	}
}

func TestEnqueueValidation(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	item := testQueueItem("user-1", time.Now())
	item.Operation = "upsert"
	if _, err := st.Enqueue(ctx, item); err == nil {
		t.Error("expected error for unknown operation")
	}

	item = testQueueItem("user-1", time.Now())
	item.UserID = ""
	if _, err := st.Enqueue(ctx, item); err == nil {
		t.Error("expected error for missing user id")
	}
}

func TestPendingItemsOrderedOldestFirst(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	third := testQueueItem("user-1", base.Add(2*time.Minute))
	first := testQueueItem("user-1", base)
	second := testQueueItem("user-1", base.Add(time.Minute))

	// Insert out of order; timestamps decide the drain order.
	for _, item := range []*model.SyncQueueItem{third, first, second} {
		if _, err := st.Enqueue(ctx, item); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	items, err := st.PendingItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Timestamp.Before(items[i-1].Timestamp) {
			t.Errorf("items out of order: %v before %v", items[i-1].Timestamp, items[i].Timestamp)
		}
	}
}

func TestPendingItemsEqualTimestampsUseInsertionOrder(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	ts := time.Now()
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := st.Enqueue(ctx, testQueueItem("user-1", ts))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
	}

	items, err := st.PendingItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.ID != ids[i] {
			t.Errorf("position %d: expected id %d, got %d", i, ids[i], item.ID)
		}
	}
}

func TestPendingItemsWholeSecondSortsBeforeFractional(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	// A whole-second timestamp must still sort before a fractional one in
	// the same second; the stored text is compared lexically.
	base := time.Now().Truncate(time.Second)
	first, err := st.Enqueue(ctx, testQueueItem("user-1", base))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := st.Enqueue(ctx, testQueueItem("user-1", base.Add(500*time.Millisecond)))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := st.PendingItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != first || items[1].ID != second {
		t.Errorf("expected order [%d %d], got [%d %d]",
			first, second, items[0].ID, items[1].ID)
	}
}

func TestGetQueueItemMalformedTimestamp(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	id, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now()))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := st.RawDB().Exec(
		`UPDATE sync_queue SET timestamp = 'not-a-time' WHERE id = ?`, id,
	); err != nil {
		t.Fatalf("failed to corrupt row: %v", err)
	}

	// A row whose timestamp no longer parses is corrupt; it must surface
	// as an error, not a zero time that drains first.
	if _, err := st.GetQueueItem(ctx, id); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestPendingItemsScopedToUser(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := st.Enqueue(ctx, testQueueItem("user-2", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := st.PendingItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item for user-1, got %d", len(items))
	}
	if items[0].UserID != "user-1" {
		t.Errorf("expected user-1 item, got %s", items[0].UserID)
	}
}

func TestMarkSynced(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	id, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now()))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := st.MarkSynced(ctx, id); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	item, err := st.GetQueueItem(ctx, id)
	if err != nil {
		t.Fatalf("GetQueueItem failed: %v", err)
	}
	if !item.Synced {
		t.Error("expected item to be synced")
	}
	if item.Error != "" {
		t.Errorf("expected error cleared, got %q", item.Error)
	}

	count, err := st.PendingCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 pending, got %d", count)
	}

	// Marking again is a no-op.
	if err := st.MarkSynced(ctx, id); err != nil {
		t.Fatalf("second MarkSynced failed: %v", err)
	}
}

func TestMarkFailedKeepsItemPending(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	id, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now()))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := st.MarkFailed(ctx, id, "remote rejected payload"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	item, err := st.GetQueueItem(ctx, id)
	if err != nil {
		t.Fatalf("GetQueueItem failed: %v", err)
	}
	if item.Synced {
		t.Error("failed item must stay unsynced")
	}
	if item.Error != "remote rejected payload" {
		t.Errorf("expected failure message, got %q", item.Error)
	}

	// A later success clears the recorded failure.
	if err := st.MarkSynced(ctx, id); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	item, err = st.GetQueueItem(ctx, id)
	if err != nil {
		t.Fatalf("GetQueueItem failed: %v", err)
	}
	if item.Error != "" {
		t.Errorf("expected error cleared after sync, got %q", item.Error)
	}
}

func TestMarkFailedDoesNotTouchSyncedItems(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	id, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now()))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := st.MarkSynced(ctx, id); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	if err := st.MarkFailed(ctx, id, "late failure"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	item, err := st.GetQueueItem(ctx, id)
	if err != nil {
		t.Fatalf("GetQueueItem failed: %v", err)
	}
	if !item.Synced {
		t.Error("synced item must stay synced")
	}
	if item.Error != "" {
		t.Errorf("synced item must not record failures, got %q", item.Error)
	}
}

func TestGetQueueItemNotFound(t *testing.T) {
	st, _ := setupTestStore(t)

	if _, err := st.GetQueueItem(context.Background(), 999); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListQueueFilters(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now().Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
	}
	if err := st.MarkSynced(ctx, ids[0]); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	pending, err := st.ListQueue(ctx, ListQueueFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending items, got %d", len(pending))
	}

	all, err := st.ListQueue(ctx, ListQueueFilter{UserID: "user-1", IncludeSynced: true})
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 items with history, got %d", len(all))
	}

	limited, err := st.ListQueue(ctx, ListQueueFilter{UserID: "user-1", IncludeSynced: true, Limit: 1})
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 item with limit, got %d", len(limited))
	}
}

func TestPruneSyncedRemovesOldHistory(t *testing.T) {
	st, _ := setupTestStore(t)
	ctx := context.Background()

	oldSynced, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now().Add(-10*24*time.Hour)))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	recentSynced, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now().Add(-time.Hour)))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	oldPending, err := st.Enqueue(ctx, testQueueItem("user-1", time.Now().Add(-10*24*time.Hour)))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for _, id := range []int64{oldSynced, recentSynced} {
		if err := st.MarkSynced(ctx, id); err != nil {
			t.Fatalf("MarkSynced failed: %v", err)
		}
	}

	pruned, err := st.PruneSynced(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneSynced failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 item pruned, got %d", pruned)
	}

	if _, err := st.GetQueueItem(ctx, oldSynced); err != ErrNotFound {
		t.Errorf("expected old synced item pruned, got %v", err)
	}
	if _, err := st.GetQueueItem(ctx, recentSynced); err != nil {
		t.Errorf("recent synced item must survive: %v", err)
	}
	// Pending items are never pruned, however old.
	if _, err := st.GetQueueItem(ctx, oldPending); err != nil {
		t.Errorf("old pending item must survive: %v", err)
	}
}

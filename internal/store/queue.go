package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kestrelhealth/praxis/internal/model"
)

// Queue timestamps keep nanosecond precision and are stored fixed-width:
// the TEXT column is compared lexically by ORDER BY and the prune cutoff,
// so the fractional part must never vary in length (RFC3339Nano trims
// trailing zeros, which makes a whole-second time sort after a fractional
// one in the same second). The row id is the tiebreak for equal timestamps.
const queueTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Enqueue appends a mutation to the sync queue in its own transaction and
// returns the new item id.
//
// Entity write methods do NOT use this; they enqueue through the same
// transaction as the entity row. Enqueue exists for callers that record a
// mutation made outside the store (and for tests).
func (st *Store) Enqueue(ctx context.Context, item *model.SyncQueueItem) (int64, error) {
	if err := item.Validate(); err != nil {
		return 0, fmt.Errorf("invalid queue item: %w", err)
	}

	res, err := st.conn.ExecContext(ctx, `
		INSERT INTO sync_queue (operation, entity_kind, entity_id, payload, user_id, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		string(item.Operation),
		string(item.EntityKind),
		item.EntityID,
		string(item.Payload),
		item.UserID,
		item.Timestamp.UTC().Format(queueTimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s: %w", item.Operation, item.EntityKind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue item id: %w", err)
	}
	return id, nil
}

// enqueueTx appends a queue row inside an existing transaction so the queue
// entry shares the entity write's commit boundary.
func enqueueTx(ctx context.Context, tx *sql.Tx, op model.Operation, kind model.EntityKind, entityID string, payload []byte, userID string, now time.Time) error {
	item := &model.SyncQueueItem{
		Operation:  op,
		EntityKind: kind,
		EntityID:   entityID,
		Payload:    payload,
		UserID:     userID,
		Timestamp:  now,
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid queue item: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue (operation, entity_kind, entity_id, payload, user_id, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		string(op), string(kind), entityID, string(payload), userID,
		now.UTC().Format(queueTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", op, kind, err)
	}
	return nil
}

// PendingItems returns all unsynced queue items for the user, oldest first.
// Ordering is (timestamp, id) so equal timestamps fall back to insertion
// order.
func (st *Store) PendingItems(ctx context.Context, userID string) ([]*model.SyncQueueItem, error) {
	rows, err := st.conn.QueryContext(ctx, `
		SELECT id, operation, entity_kind, entity_id, payload, user_id, timestamp, synced, error
		FROM sync_queue
		WHERE user_id = ? AND synced = 0
		ORDER BY timestamp ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending items: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

// PendingCount returns the number of unsynced queue items for the user.
func (st *Store) PendingCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := st.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE user_id = ? AND synced = 0`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}

// GetQueueItem retrieves a single queue item by id.
// Returns ErrNotFound if the item doesn't exist.
func (st *Store) GetQueueItem(ctx context.Context, id int64) (*model.SyncQueueItem, error) {
	row := st.conn.QueryRowContext(ctx, `
		SELECT id, operation, entity_kind, entity_id, payload, user_id, timestamp, synced, error
		FROM sync_queue
		WHERE id = ?`,
		id,
	)

	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item %d: %w", id, err)
	}
	return item, nil
}

// ListQueueFilter configures the ListQueue query.
type ListQueueFilter struct {
	// UserID scopes the listing (required).
	UserID string
	// IncludeSynced includes already-synced history entries.
	IncludeSynced bool
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListQueue returns queue items for inspection, oldest first.
func (st *Store) ListQueue(ctx context.Context, filter ListQueueFilter) ([]*model.SyncQueueItem, error) {
	query := `
		SELECT id, operation, entity_kind, entity_id, payload, user_id, timestamp, synced, error
		FROM sync_queue
		WHERE user_id = ?`
	args := []interface{}{filter.UserID}

	if !filter.IncludeSynced {
		query += ` AND synced = 0`
	}
	query += ` ORDER BY timestamp ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := st.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

// MarkSynced records a successful remote replay for the item.
// Idempotent - marking an already-synced item is a no-op.
func (st *Store) MarkSynced(ctx context.Context, id int64) error {
	_, err := st.conn.ExecContext(ctx,
		`UPDATE sync_queue SET synced = 1, error = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item %d synced: %w", id, err)
	}
	return nil
}

// MarkFailed records the last failure message for the item and leaves it
// unsynced so a later drain pass retries it. Idempotent.
func (st *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	_, err := st.conn.ExecContext(ctx,
		`UPDATE sync_queue SET error = ? WHERE id = ? AND synced = 0`,
		message, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item %d failed: %w", id, err)
	}
	return nil
}

// PruneSynced deletes synced queue items whose timestamp predates the
// cutoff. Unsynced items are never removed regardless of age.
//
// Returns the number of items removed.
func (st *Store) PruneSynced(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(queueTimeFormat)

	res, err := st.conn.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE synced = 1 AND timestamp < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync queue: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueItem(row rowScanner) (*model.SyncQueueItem, error) {
	var item model.SyncQueueItem
	var op, kind, payload, ts string
	var synced int
	var errMsg sql.NullString

	err := row.Scan(
		&item.ID,
		&op,
		&kind,
		&item.EntityID,
		&payload,
		&item.UserID,
		&ts,
		&synced,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	item.Operation = model.Operation(op)
	item.EntityKind = model.EntityKind(kind)
	item.Payload = []byte(payload)
	item.Synced = synced != 0
	if errMsg.Valid {
		item.Error = errMsg.String
	}

	// Fractional-second parsing is lenient, so rows written before the
	// fixed-width format still round-trip.
	item.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("malformed queue timestamp %q: %w", ts, err)
	}

	return &item, nil
}

func scanQueueItems(rows *sql.Rows) ([]*model.SyncQueueItem, error) {
	var items []*model.SyncQueueItem

	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue items: %w", err)
	}

	return items, nil
}

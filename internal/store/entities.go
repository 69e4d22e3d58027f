package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelhealth/praxis/internal/model"
)

// Entity writes below follow the same shape: validate, open a transaction,
// upsert (or delete) the entity row, append the sync queue row, commit.
// The queue row carries the full entity JSON for create/update and the
// deletion payload (id plus parent ids) for delete.

// PutClient inserts or overwrites a client by id and records the mutation
// in the sync queue within the same transaction.
func (st *Store) PutClient(ctx context.Context, c *model.Client) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	op, err := upsertOp(ctx, tx, "clients", c.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clients (id, user_id, name, status, notes, date_of_birth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			status = excluded.status,
			notes = excluded.notes,
			date_of_birth = excluded.date_of_birth,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, c.Name, c.Status, c.Notes,
		timeToNullString(c.DateOfBirth),
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}

	if err := enqueueTx(ctx, tx, op, model.KindClient, c.ID, payload, c.UserID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client write: %w", err)
	}
	return nil
}

// GetClient retrieves a client by id.
// Returns ErrNotFound if the client doesn't exist.
func (st *Store) GetClient(ctx context.Context, id string) (*model.Client, error) {
	row := st.conn.QueryRowContext(ctx, `
		SELECT id, user_id, name, status, notes, date_of_birth, created_at, updated_at
		FROM clients
		WHERE id = ?`,
		id,
	)

	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %s: %w", id, err)
	}
	return c, nil
}

// ClientFilter configures the ListClients query.
type ClientFilter struct {
	// UserID filters by owning user (empty = all users).
	UserID string
	// Status filters by client status (empty = all statuses).
	Status string
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListClients retrieves clients matching the filter, ordered by name.
func (st *Store) ListClients(ctx context.Context, filter ClientFilter) ([]*model.Client, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, user_id, name, status, notes, date_of_birth, created_at, updated_at
		FROM clients`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := st.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}
	return clients, nil
}

// DeleteClient removes a client and records the deletion in the sync queue.
// Queue entries referencing the client remain independently.
// Returns ErrNotFound if the client doesn't exist.
func (st *Store) DeleteClient(ctx context.Context, id string) error {
	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM clients WHERE id = ?`, id).Scan(&userID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up client %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete client %s: %w", id, err)
	}

	payload, err := json.Marshal(model.ClientDeletion{ClientID: id, UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal client deletion: %w", err)
	}

	if err := enqueueTx(ctx, tx, model.OpDelete, model.KindClient, id, payload, userID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client delete: %w", err)
	}
	return nil
}

// PutProgram inserts or overwrites a program by id and records the mutation
// in the sync queue within the same transaction.
func (st *Store) PutProgram(ctx context.Context, p *model.Program) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid program: %w", err)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	op, err := upsertOp(ctx, tx, "programs", p.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs (id, client_id, user_id, name, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			user_id = excluded.user_id,
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		p.ID, p.ClientID, p.UserID, p.Name, p.Description, p.Status,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert program: %w", err)
	}

	if err := enqueueTx(ctx, tx, op, model.KindProgram, p.ID, payload, p.UserID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit program write: %w", err)
	}
	return nil
}

// GetProgram retrieves a program by id.
// Returns ErrNotFound if the program doesn't exist.
func (st *Store) GetProgram(ctx context.Context, id string) (*model.Program, error) {
	row := st.conn.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, name, description, status, created_at, updated_at
		FROM programs
		WHERE id = ?`,
		id,
	)

	p, err := scanProgram(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program %s: %w", id, err)
	}
	return p, nil
}

// ProgramFilter configures the ListPrograms query.
type ProgramFilter struct {
	UserID   string
	ClientID string
	Status   string
	Limit    int
}

// ListPrograms retrieves programs matching the filter, ordered by name.
func (st *Store) ListPrograms(ctx context.Context, filter ProgramFilter) ([]*model.Program, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, client_id, user_id, name, description, status, created_at, updated_at
		FROM programs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := st.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	var programs []*model.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating programs: %w", err)
	}
	return programs, nil
}

// DeleteProgram removes a program and records the deletion in the sync
// queue. The deletion payload carries the owning client id, which the
// remote delete operation is keyed by.
// Returns ErrNotFound if the program doesn't exist.
func (st *Store) DeleteProgram(ctx context.Context, id string) error {
	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var clientID, userID string
	err = tx.QueryRowContext(ctx,
		`SELECT client_id, user_id FROM programs WHERE id = ?`, id,
	).Scan(&clientID, &userID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up program %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete program %s: %w", id, err)
	}

	payload, err := json.Marshal(model.ProgramDeletion{ProgramID: id, ClientID: clientID, UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal program deletion: %w", err)
	}

	if err := enqueueTx(ctx, tx, model.OpDelete, model.KindProgram, id, payload, userID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit program delete: %w", err)
	}
	return nil
}

// PutSession inserts or overwrites a session by id and records the mutation
// in the sync queue within the same transaction.
//
// Sessions have no delete operation: the remote surface only supports save,
// and locally recorded sessions are never removed.
func (st *Store) PutSession(ctx context.Context, s *model.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	op, err := upsertOp(ctx, tx, "sessions", s.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, program_id, client_id, user_id, date,
			duration_minutes, correct_count, prompted_count, incorrect_count,
			notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			program_id = excluded.program_id,
			client_id = excluded.client_id,
			user_id = excluded.user_id,
			date = excluded.date,
			duration_minutes = excluded.duration_minutes,
			correct_count = excluded.correct_count,
			prompted_count = excluded.prompted_count,
			incorrect_count = excluded.incorrect_count,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		s.ID, s.ProgramID, s.ClientID, s.UserID,
		s.Date.UTC().Format(time.RFC3339),
		s.DurationMinutes, s.CorrectCount, s.PromptedCount, s.IncorrectCount,
		s.Notes,
		s.CreatedAt.UTC().Format(time.RFC3339),
		s.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if err := enqueueTx(ctx, tx, op, model.KindSession, s.ID, payload, s.UserID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session write: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
// Returns ErrNotFound if the session doesn't exist.
func (st *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := st.conn.QueryRowContext(ctx, `
		SELECT id, program_id, client_id, user_id, date, duration_minutes,
		       correct_count, prompted_count, incorrect_count, notes,
		       created_at, updated_at
		FROM sessions
		WHERE id = ?`,
		id,
	)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

// SessionFilter configures the ListSessions query.
type SessionFilter struct {
	UserID    string
	ClientID  string
	ProgramID string
	// From and To bound the session date range (zero = unbounded).
	From time.Time
	To   time.Time
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListSessions retrieves sessions matching the filter, newest first.
func (st *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, "program_id = ?")
		args = append(args, filter.ProgramID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	query := `
		SELECT id, program_id, client_id, user_id, date, duration_minutes,
		       correct_count, prompted_count, incorrect_count, notes,
		       created_at, updated_at
		FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := st.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// PutStimulus inserts or overwrites a stimulus by id and records the
// mutation in the sync queue within the same transaction.
func (st *Store) PutStimulus(ctx context.Context, s *model.Stimulus) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid stimulus: %w", err)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal stimulus: %w", err)
	}

	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	op, err := upsertOp(ctx, tx, "stimuli", s.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stimuli (id, program_id, user_id, label, position, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			program_id = excluded.program_id,
			user_id = excluded.user_id,
			label = excluded.label,
			position = excluded.position,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		s.ID, s.ProgramID, s.UserID, s.Label, s.Position, s.Status,
		s.CreatedAt.UTC().Format(time.RFC3339),
		s.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stimulus: %w", err)
	}

	if err := enqueueTx(ctx, tx, op, model.KindStimulus, s.ID, payload, s.UserID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stimulus write: %w", err)
	}
	return nil
}

// GetStimulus retrieves a stimulus by id.
// Returns ErrNotFound if the stimulus doesn't exist.
func (st *Store) GetStimulus(ctx context.Context, id string) (*model.Stimulus, error) {
	row := st.conn.QueryRowContext(ctx, `
		SELECT id, program_id, user_id, label, position, status, created_at, updated_at
		FROM stimuli
		WHERE id = ?`,
		id,
	)

	s, err := scanStimulus(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stimulus %s: %w", id, err)
	}
	return s, nil
}

// StimulusFilter configures the ListStimuli query.
type StimulusFilter struct {
	UserID    string
	ProgramID string
	Status    string
	Limit     int
}

// ListStimuli retrieves stimuli matching the filter, ordered by position.
func (st *Store) ListStimuli(ctx context.Context, filter StimulusFilter) ([]*model.Stimulus, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, "program_id = ?")
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, program_id, user_id, label, position, status, created_at, updated_at
		FROM stimuli`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY position ASC, label ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := st.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stimuli: %w", err)
	}
	defer rows.Close()

	var stimuli []*model.Stimulus
	for rows.Next() {
		s, err := scanStimulus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stimulus: %w", err)
		}
		stimuli = append(stimuli, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stimuli: %w", err)
	}
	return stimuli, nil
}

// DeleteStimulus removes a stimulus and records the deletion in the sync
// queue. The deletion payload carries the owning program id, which the
// remote delete operation is keyed by.
// Returns ErrNotFound if the stimulus doesn't exist.
func (st *Store) DeleteStimulus(ctx context.Context, id string) error {
	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var programID, userID string
	err = tx.QueryRowContext(ctx,
		`SELECT program_id, user_id FROM stimuli WHERE id = ?`, id,
	).Scan(&programID, &userID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up stimulus %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stimuli WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete stimulus %s: %w", id, err)
	}

	payload, err := json.Marshal(model.StimulusDeletion{StimulusID: id, ProgramID: programID, UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal stimulus deletion: %w", err)
	}

	if err := enqueueTx(ctx, tx, model.OpDelete, model.KindStimulus, id, payload, userID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stimulus delete: %w", err)
	}
	return nil
}

// upsertOp reports whether a put should be recorded as a create or an
// update, based on whether the row already exists.
func upsertOp(ctx context.Context, tx *sql.Tx, table, id string) (model.Operation, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table)
	if err := tx.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return "", fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	if count > 0 {
		return model.OpUpdate, nil
	}
	return model.OpCreate, nil
}

// parseRowTime parses a stored timestamp column. A row whose timestamp no
// longer parses is corrupt and must surface as an error, not a zero time.
func parseRowTime(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed %s %q: %w", column, value, err)
	}
	return t, nil
}

func scanClient(row rowScanner) (*model.Client, error) {
	var c model.Client
	var notes sql.NullString
	var dob sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Status, &notes, &dob, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Notes = notes.String
	if c.DateOfBirth, err = nullStringToTime(dob); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseRowTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseRowTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanProgram(row rowScanner) (*model.Program, error) {
	var p model.Program
	var description sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.ClientID, &p.UserID, &p.Name, &description, &p.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	if p.CreatedAt, err = parseRowTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseRowTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	var notes sql.NullString
	var date, createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.ProgramID, &s.ClientID, &s.UserID, &date,
		&s.DurationMinutes, &s.CorrectCount, &s.PromptedCount, &s.IncorrectCount,
		&notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Notes = notes.String
	if s.Date, err = parseRowTime("date", date); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseRowTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseRowTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanStimulus(row rowScanner) (*model.Stimulus, error) {
	var s model.Stimulus
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.ProgramID, &s.UserID, &s.Label, &s.Position, &s.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if s.CreatedAt, err = parseRowTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseRowTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

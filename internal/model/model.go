// Package model provides the data structures shared by the praxis sync layer.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind identifies one of the four domain record types handled by the
// sync layer. The sync layer routes by kind but never interprets entity
// contents beyond that.
type EntityKind string

const (
	// KindClient is a client (person receiving services).
	KindClient EntityKind = "client"
	// KindProgram is a program run for a client.
	KindProgram EntityKind = "program"
	// KindSession is a recorded session for a program.
	KindSession EntityKind = "session"
	// KindStimulus is a stimulus attached to a program.
	KindStimulus EntityKind = "stimulus"
)

// Valid reports whether the kind is one of the four known kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindClient, KindProgram, KindSession, KindStimulus:
		return true
	default:
		return false
	}
}

// Operation identifies the kind of mutation recorded in the sync queue.
type Operation string

const (
	// OpCreate records a new entity write.
	OpCreate Operation = "create"
	// OpUpdate records an overwrite of an existing entity.
	OpUpdate Operation = "update"
	// OpDelete records an entity removal.
	OpDelete Operation = "delete"
)

// Valid reports whether the operation is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// SyncQueueItem is a durable record of one pending or completed mutation
// awaiting remote replication.
//
// Items are processed per user in (Timestamp, ID) order. ID is assigned by
// the store and serves as the insertion-order tiebreak for equal timestamps.
type SyncQueueItem struct {
	ID         int64           `json:"id"`
	Operation  Operation       `json:"operation"`
	EntityKind EntityKind      `json:"entity_kind"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
	UserID     string          `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Synced     bool            `json:"synced"`
	Error      string          `json:"error,omitempty"`
}

// Validate checks the fields required before an item may be enqueued.
func (it *SyncQueueItem) Validate() error {
	if !it.Operation.Valid() {
		return fmt.Errorf("invalid operation %q", it.Operation)
	}
	if !it.EntityKind.Valid() {
		return fmt.Errorf("invalid entity kind %q", it.EntityKind)
	}
	if it.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if it.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if len(it.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if it.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// ClientDeletion is the replay payload for a client delete.
type ClientDeletion struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}

// ProgramDeletion is the replay payload for a program delete. The remote
// service keys program deletes by (userId, programId, clientId).
type ProgramDeletion struct {
	ProgramID string `json:"program_id"`
	ClientID  string `json:"client_id"`
	UserID    string `json:"user_id"`
}

// StimulusDeletion is the replay payload for a stimulus delete. The remote
// service keys stimulus deletes by (userId, programId, stimulusId).
type StimulusDeletion struct {
	StimulusID string `json:"stimulus_id"`
	ProgramID  string `json:"program_id"`
	UserID     string `json:"user_id"`
}

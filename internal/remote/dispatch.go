package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelhealth/praxis/internal/model"
)

// Dispatcher routes a queued mutation to the remote operation matching its
// (entity kind, operation) pair.
type Dispatcher struct {
	api API
}

// NewDispatcher creates a dispatcher over the given API.
func NewDispatcher(api API) *Dispatcher {
	return &Dispatcher{api: api}
}

// Dispatch replays one queue item against the remote service.
//
// Create and update of clients and sessions share the remote save
// operation; programs distinguish create from update; deletes unmarshal
// their context ids from the item payload.
func (d *Dispatcher) Dispatch(ctx context.Context, item *model.SyncQueueItem) error {
	switch item.EntityKind {
	case model.KindClient:
		switch item.Operation {
		case model.OpCreate, model.OpUpdate:
			return d.api.SaveClient(ctx, item.UserID, item.EntityID, item.Payload)
		case model.OpDelete:
			var del model.ClientDeletion
			if err := json.Unmarshal(item.Payload, &del); err != nil {
				return fmt.Errorf("malformed client deletion payload: %w", err)
			}
			return d.api.DeleteClient(ctx, item.UserID, del.ClientID)
		}

	case model.KindProgram:
		switch item.Operation {
		case model.OpCreate:
			return d.api.SaveProgram(ctx, item.UserID, item.Payload)
		case model.OpUpdate:
			return d.api.UpdateProgram(ctx, item.UserID, item.EntityID, item.Payload)
		case model.OpDelete:
			var del model.ProgramDeletion
			if err := json.Unmarshal(item.Payload, &del); err != nil {
				return fmt.Errorf("malformed program deletion payload: %w", err)
			}
			return d.api.DeleteProgram(ctx, item.UserID, del.ProgramID, del.ClientID)
		}

	case model.KindSession:
		switch item.Operation {
		case model.OpCreate, model.OpUpdate:
			return d.api.SaveSession(ctx, item.UserID, item.EntityID, item.Payload)
		}

	case model.KindStimulus:
		switch item.Operation {
		case model.OpCreate, model.OpUpdate:
			// Stimulus saves post under the owning program.
			var ref struct {
				ProgramID string `json:"program_id"`
			}
			if err := json.Unmarshal(item.Payload, &ref); err != nil {
				return fmt.Errorf("malformed stimulus payload: %w", err)
			}
			return d.api.SaveStimulus(ctx, item.UserID, ref.ProgramID, item.Payload)
		case model.OpDelete:
			var del model.StimulusDeletion
			if err := json.Unmarshal(item.Payload, &del); err != nil {
				return fmt.Errorf("malformed stimulus deletion payload: %w", err)
			}
			return d.api.DeleteStimulus(ctx, item.UserID, del.ProgramID, del.StimulusID)
		}
	}

	return fmt.Errorf("no remote operation for %s %s", item.Operation, item.EntityKind)
}

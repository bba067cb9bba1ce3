// Package store persists stations and their equipment-state history as
// human-readable JSON files. Writes are atomic; reads tolerate the legacy
// shapes older versions left on disk.
//
// There is no cross-process locking: one operator process at a time is
// assumed, and two concurrent writers can lose each other's updates.
package store

import (
	"context"

	"github.com/rendis/stationflow/pkg/schema"
)

// Stations is the station persistence contract used by the service layer.
type Stations interface {
	List(ctx context.Context) ([]schema.Station, error)
	Get(ctx context.Context, id string) (schema.Station, bool, error)
	Create(ctx context.Context, st schema.Station) error
	Update(ctx context.Context, st schema.Station) error
	Delete(ctx context.Context, id string) (bool, error)
	Invalidate()
}

// States is the snapshot history contract used by the service layer.
type States interface {
	LoadHistory(ctx context.Context, stationID string) ([]schema.Snapshot, error)
	SaveHistory(ctx context.Context, stationID string, snaps []schema.Snapshot) error
	AppendSnapshot(ctx context.Context, st schema.Station, states *schema.EquipmentStates) (schema.Snapshot, error)
	LatestState(ctx context.Context, stationID string) (schema.Snapshot, bool, error)
	DeleteStation(ctx context.Context, stationID string) (bool, error)
}

// Orderer supplies the canonical equipment order of a process type.
type Orderer interface {
	Order(processType string) ([]string, bool)
}

// DocValidator reports data-quality issues in a decoded stations document.
type DocValidator interface {
	ValidateStations(doc any) *schema.Report
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return schema.NewError(schema.ErrCodeCancelled, "operation cancelled").WithCause(err)
	}
	return nil
}

package store

import (
	"context"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// Tx is the write side of one atomic unit of work. Nothing written through a
// Tx is visible to readers until the TxFn that received it returns nil.
type Tx interface {
	// InsertAccreditation stores a new record together with its vehicles.
	InsertAccreditation(ctx context.Context, a types.Accreditation) error

	// LoadAccreditation returns types.ErrNotFound if id does not exist.
	LoadAccreditation(ctx context.Context, id string) (types.Accreditation, error)

	// LastMovement returns the newest movement of id, or nil.
	LastMovement(ctx context.Context, id string) (*types.ZoneMovement, error)

	// UpdateIfVersion writes next only if the stored version still equals
	// expected. It reports false when no row matched.
	UpdateIfVersion(ctx context.Context, next types.Accreditation, expected int64) (bool, error)

	// AppendMovement adds an entry to the movement log. There is no update
	// or delete counterpart.
	AppendMovement(ctx context.Context, m types.ZoneMovement) error

	RecordHistory(ctx context.Context, e types.HistoryEntry) error
}

type TxFn func(ctx context.Context, tx Tx) error

// OccupancyRow counts accreditations currently holding a status in a zone.
// Zone is empty for records with no zone assigned.
type OccupancyRow struct {
	Zone   types.Zone
	Status types.Status
	Count  int
}

type Store interface {
	// WithTx runs fn in a transaction, committing if it returns nil and
	// rolling back every write otherwise.
	WithTx(ctx context.Context, fn TxFn) error

	Get(ctx context.Context, id string) (types.Accreditation, error)
	List(ctx context.Context, f types.ListFilter) ([]types.Accreditation, error)

	// Movements returns the full movement log of id ordered by timestamp
	// ascending, insertion order breaking ties.
	Movements(ctx context.Context, id string) ([]types.ZoneMovement, error)

	History(ctx context.Context, id string) ([]types.HistoryEntry, error)

	Occupancy(ctx context.Context) ([]OccupancyRow, error)

	Ping(ctx context.Context) error
}

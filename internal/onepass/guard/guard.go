// Package guard applies accreditation mutations under optimistic
// concurrency control.
//
// Every mutation carries the version the caller last saw. Inside one store
// transaction the guard reloads the record, requires an exact version match,
// lets the planner validate and describe the change, then writes it with a
// conditional update on the old version together with the movement log and
// history entries. Any failure rolls back the whole unit; nothing is retried.
package guard

import (
	"context"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/history"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/statemachine"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// PlanFn validates a mutation against the persisted record and the newest
// movement, and returns its effect. It must not perform I/O.
type PlanFn func(cur types.Accreditation, last *types.ZoneMovement, now time.Time) (statemachine.Outcome, error)

// Result is what an accepted mutation committed.
type Result struct {
	Accreditation types.Accreditation
	Movements     []types.ZoneMovement
	History       []types.HistoryEntry
}

type Guard struct {
	store store.Store
	now   func() time.Time
}

type Option func(*Guard)

// WithClock overrides the time source used to stamp movements and history.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func New(s store.Store, opts ...Option) *Guard {
	g := &Guard{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Apply runs plan against accreditation id if its version is still
// version. It returns types.ErrNotFound, a *types.ConflictError, or whatever
// plan rejected with; on any error nothing has been written.
func (g *Guard) Apply(ctx context.Context, id string, version int64, actor string, plan PlanFn) (Result, error) {
	var res Result

	err := g.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.LoadAccreditation(ctx, id)
		if err != nil {
			return err
		}
		if cur.Version != version {
			return &types.ConflictError{ID: id, Expected: version, Actual: cur.Version}
		}

		last, err := tx.LastMovement(ctx, id)
		if err != nil {
			return err
		}

		now := g.now()
		out, err := plan(cur, last, now)
		if err != nil {
			return err
		}

		next := out.Next
		next.ID = cur.ID
		next.Version = cur.Version + 1
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = now

		ok, err := tx.UpdateIfVersion(ctx, next, cur.Version)
		if err != nil {
			return err
		}
		if !ok {
			return &types.ConflictError{ID: id, Expected: version}
		}

		for _, m := range out.Movements {
			m.AccreditationID = id
			if err := tx.AppendMovement(ctx, m); err != nil {
				return err
			}
		}

		entries := history.Diff(out.Kind, actor, cur, next, now)
		if err := history.RecordAll(ctx, tx, entries); err != nil {
			return err
		}

		res = Result{Accreditation: next, Movements: out.Movements, History: entries}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Create inserts a new accreditation at version 1 with its creation entry.
func (g *Guard) Create(ctx context.Context, a types.Accreditation, actor string) (types.Accreditation, error) {
	now := g.now()
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now

	err := g.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertAccreditation(ctx, a); err != nil {
			return err
		}
		return tx.RecordHistory(ctx, history.Created(actor, a))
	})
	if err != nil {
		return types.Accreditation{}, err
	}
	return a, nil
}

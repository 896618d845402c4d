// Package memory is an in-process store for tests and single-node demos.
// Transactions are serialized behind one mutex and rolled back by restoring a
// snapshot taken when they began.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

type Store struct {
	mu             sync.RWMutex
	accreditations map[string]types.Accreditation
	order          []string
	movements      map[string][]types.ZoneMovement
	history        map[string][]types.HistoryEntry
	nextMovementID int64
	nextHistoryID  int64
}

func New() *Store {
	return &Store{
		accreditations: make(map[string]types.Accreditation),
		movements:      make(map[string][]types.ZoneMovement),
		history:        make(map[string][]types.HistoryEntry),
	}
}

var _ store.Store = (*Store)(nil)

type snapshot struct {
	accreditations map[string]types.Accreditation
	order          []string
	movements      map[string][]types.ZoneMovement
	history        map[string][]types.HistoryEntry
	nextMovementID int64
	nextHistoryID  int64
}

func (s *Store) WithTx(ctx context.Context, fn store.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// snapshot copies the top-level containers. Slices are only ever appended
// to, so keeping the old headers is enough to undo appends.
func (s *Store) snapshot() snapshot {
	return snapshot{
		accreditations: maps.Clone(s.accreditations),
		order:          s.order[:len(s.order):len(s.order)],
		movements:      maps.Clone(s.movements),
		history:        maps.Clone(s.history),
		nextMovementID: s.nextMovementID,
		nextHistoryID:  s.nextHistoryID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.accreditations = snap.accreditations
	s.order = snap.order
	s.movements = snap.movements
	s.history = snap.history
	s.nextMovementID = snap.nextMovementID
	s.nextHistoryID = snap.nextHistoryID
}

func (s *Store) Get(_ context.Context, id string) (types.Accreditation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accreditations[id]
	if !ok {
		return types.Accreditation{}, types.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) List(_ context.Context, f types.ListFilter) ([]types.Accreditation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Accreditation, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.accreditations[s.order[i]]
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Zone != "" && (a.CurrentZone == nil || *a.CurrentZone != f.Zone) {
			continue
		}
		out = append(out, a.Clone())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Movements(_ context.Context, id string) ([]types.ZoneMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accreditations[id]; !ok {
		return nil, types.ErrNotFound
	}
	out := append([]types.ZoneMovement(nil), s.movements[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (s *Store) History(_ context.Context, id string) ([]types.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accreditations[id]; !ok {
		return nil, types.ErrNotFound
	}
	return append([]types.HistoryEntry(nil), s.history[id]...), nil
}

func (s *Store) Occupancy(_ context.Context) ([]store.OccupancyRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		zone   types.Zone
		status types.Status
	}
	counts := map[key]int{}
	for _, a := range s.accreditations {
		var z types.Zone
		if a.CurrentZone != nil {
			z = *a.CurrentZone
		}
		counts[key{z, a.Status}]++
	}

	out := make([]store.OccupancyRow, 0, len(counts))
	for k, n := range counts {
		out = append(out, store.OccupancyRow{Zone: k.zone, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Zone != out[j].Zone {
			return out[i].Zone < out[j].Zone
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// tx operates on the store while WithTx holds the write lock.
type tx struct {
	s *Store
}

func (t *tx) InsertAccreditation(_ context.Context, a types.Accreditation) error {
	if _, dup := t.s.accreditations[a.ID]; dup {
		return types.ErrConflict
	}
	t.s.accreditations[a.ID] = a.Clone()
	t.s.order = append(t.s.order, a.ID)
	return nil
}

func (t *tx) LoadAccreditation(_ context.Context, id string) (types.Accreditation, error) {
	a, ok := t.s.accreditations[id]
	if !ok {
		return types.Accreditation{}, types.ErrNotFound
	}
	return a.Clone(), nil
}

func (t *tx) LastMovement(_ context.Context, id string) (*types.ZoneMovement, error) {
	ms := t.s.movements[id]
	if len(ms) == 0 {
		return nil, nil
	}
	m := ms[len(ms)-1]
	return &m, nil
}

// UpdateIfVersion always stores expected+1 as the new version.
func (t *tx) UpdateIfVersion(_ context.Context, next types.Accreditation, expected int64) (bool, error) {
	cur, ok := t.s.accreditations[next.ID]
	if !ok || cur.Version != expected {
		return false, nil
	}
	stored := next.Clone()
	stored.Version = expected + 1
	t.s.accreditations[next.ID] = stored
	return true, nil
}

func (t *tx) AppendMovement(_ context.Context, m types.ZoneMovement) error {
	if _, ok := t.s.accreditations[m.AccreditationID]; !ok {
		return types.ErrNotFound
	}
	t.s.nextMovementID++
	m.ID = t.s.nextMovementID
	t.s.movements[m.AccreditationID] = append(t.s.movements[m.AccreditationID], m)
	return nil
}

func (t *tx) RecordHistory(_ context.Context, e types.HistoryEntry) error {
	if _, ok := t.s.accreditations[e.AccreditationID]; !ok {
		return types.ErrNotFound
	}
	t.s.nextHistoryID++
	e.ID = t.s.nextHistoryID
	t.s.history[e.AccreditationID] = append(t.s.history[e.AccreditationID], e)
	return nil
}

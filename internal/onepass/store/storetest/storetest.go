// Package storetest holds the behaviour every store backend must share. Each
// backend's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// Factory returns an empty store scoped to t.
type Factory func(t *testing.T) store.Store

// Base is millisecond aligned so every backend round-trips it exactly.
var Base = time.Date(2026, 5, 14, 8, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("UpdateIfVersion", func(t *testing.T) { testUpdateIfVersion(t, newStore(t)) })
	t.Run("RollbackDiscardsEverything", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("MovementsOrdered", func(t *testing.T) { testMovementsOrdered(t, newStore(t)) })
	t.Run("LastMovement", func(t *testing.T) { testLastMovement(t, newStore(t)) })
	t.Run("History", func(t *testing.T) { testHistory(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("Occupancy", func(t *testing.T) { testOccupancy(t, newStore(t)) })
}

// Seed inserts a in its own transaction.
func Seed(t *testing.T, s store.Store, a types.Accreditation) {
	t.Helper()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccreditation(ctx, a)
	})
	require.NoError(t, err)
}

// NewAccreditation returns a version 1 record with sensible defaults.
func NewAccreditation(id string, status types.Status) types.Accreditation {
	return types.Accreditation{
		ID:        id,
		Status:    status,
		Version:   1,
		Company:   "Riviera Events",
		Stand:     "A-01",
		Event:     "Festival de Cannes",
		CreatedAt: Base,
		UpdatedAt: Base,
	}
}

func testInsertAndGet(t *testing.T, s store.Store) {
	bocca := types.ZoneLaBocca
	entry := Base.Add(time.Hour)

	a := NewAccreditation("acc-1", types.StatusAttente)
	a.CurrentZone = &bocca
	a.EntryAt = &entry
	a.Message = "arrive by the north gate"
	a.Vehicles = []types.Vehicle{
		{Plate: "AB-123-CD", Kind: "porteur", DriverName: "Luc", DriverPhone: "+33600000000"},
		{Plate: "EF-456-GH", Kind: "semi"},
	}
	Seed(t, s, a)

	got, err := s.Get(context.Background(), "acc-1")
	require.NoError(t, err)

	assert.Equal(t, "acc-1", got.ID)
	assert.Equal(t, types.StatusAttente, got.Status)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.CurrentZone)
	assert.Equal(t, types.ZoneLaBocca, *got.CurrentZone)
	require.NotNil(t, got.EntryAt)
	assert.True(t, entry.Equal(*got.EntryAt))
	assert.Nil(t, got.ExitAt)
	assert.Equal(t, "Riviera Events", got.Company)
	assert.Equal(t, "arrive by the north gate", got.Message)
	assert.Equal(t, a.Vehicles, got.Vehicles)
	assert.True(t, Base.Equal(got.CreatedAt))
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)

	err = s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.LoadAccreditation(ctx, "nope")
		return err
	})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Movements(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testUpdateIfVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, NewAccreditation("acc-1", types.StatusNouveau))

	next := NewAccreditation("acc-1", types.StatusRefus)
	next.Version = 2
	next.Vehicles = []types.Vehicle{{Plate: "ZZ-999-ZZ"}}

	var ok bool
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ok, err = tx.UpdateIfVersion(ctx, next, 1)
		return err
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, types.StatusRefus, got.Status)
	assert.Equal(t, []types.Vehicle{{Plate: "ZZ-999-ZZ"}}, got.Vehicles)

	stale := next
	stale.Version = 3
	stale.Message = "lost update"
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ok, err = tx.UpdateIfVersion(ctx, stale, 1)
		return err
	})
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not match")

	got, err = s.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Empty(t, got.Message)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, NewAccreditation("acc-1", types.StatusNouveau))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		next := NewAccreditation("acc-1", types.StatusAttente)
		next.Version = 2
		if _, err := tx.UpdateIfVersion(ctx, next, 1); err != nil {
			return err
		}
		if err := tx.AppendMovement(ctx, types.NewEntry("acc-1", nil, types.ZoneLaBocca, Base)); err != nil {
			return err
		}
		if err := tx.RecordHistory(ctx, types.HistoryEntry{AccreditationID: "acc-1", Kind: types.HistoryStatusChange,
			Field: "status", OldValue: "NOUVEAU", NewValue: "ATTENTE", Actor: "agent", At: Base}); err != nil {
			return err
		}
		if err := tx.InsertAccreditation(ctx, NewAccreditation("acc-2", types.StatusNouveau)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, types.StatusNouveau, got.Status)

	ms, err := s.Movements(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, ms)

	hs, err := s.History(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, hs)

	_, err = s.Get(ctx, "acc-2")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testMovementsOrdered(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, NewAccreditation("acc-1", types.StatusEntree))
	bocca := types.ZoneLaBocca

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// Appended out of timestamp order on purpose.
		for _, m := range []types.ZoneMovement{
			types.NewExit("acc-1", bocca, Base.Add(30*time.Minute)),
			types.NewEntry("acc-1", nil, bocca, Base),
			types.NewEntry("acc-1", &bocca, types.ZonePalaisDesFestivals, Base.Add(45*time.Minute)),
		} {
			if err := tx.AppendMovement(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ms, err := s.Movements(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, ms, 3)

	assert.Equal(t, types.ActionEntry, ms[0].Action)
	assert.Nil(t, ms[0].FromZone)
	assert.True(t, Base.Equal(ms[0].At))

	assert.Equal(t, types.ActionExit, ms[1].Action)
	require.NotNil(t, ms[1].FromZone)
	assert.Equal(t, bocca, *ms[1].FromZone)
	assert.Equal(t, bocca, ms[1].ToZone)

	assert.Equal(t, types.ZonePalaisDesFestivals, ms[2].ToZone)
	assert.Equal(t, bocca, *ms[2].FromZone)
	for _, m := range ms {
		assert.NotZero(t, m.ID)
		assert.Equal(t, "acc-1", m.AccreditationID)
	}
}

func testLastMovement(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, NewAccreditation("acc-1", types.StatusAttente))

	var last *types.ZoneMovement
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		last, err = tx.LastMovement(ctx, "acc-1")
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, last)

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.AppendMovement(ctx, types.NewEntry("acc-1", nil, types.ZoneMace, Base)); err != nil {
			return err
		}
		if err := tx.AppendMovement(ctx, types.NewExit("acc-1", types.ZoneMace, Base.Add(time.Minute))); err != nil {
			return err
		}
		var err error
		last, err = tx.LastMovement(ctx, "acc-1")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, types.ActionExit, last.Action)
	assert.Equal(t, types.ZoneMace, last.ToZone)
}

func testHistory(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s, NewAccreditation("acc-1", types.StatusNouveau))

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, e := range []types.HistoryEntry{
			{AccreditationID: "acc-1", Kind: types.HistoryStatusChange, Field: "status", OldValue: "NOUVEAU", NewValue: "ATTENTE", Actor: "alice", At: Base},
			{AccreditationID: "acc-1", Kind: types.HistoryZoneChange, Field: "current_zone", NewValue: "LA_BOCCA", Actor: "alice", At: Base},
		} {
			if err := tx.RecordHistory(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	hs, err := s.History(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "status", hs[0].Field)
	assert.Equal(t, "NOUVEAU", hs[0].OldValue)
	assert.Equal(t, "ATTENTE", hs[0].NewValue)
	assert.Equal(t, "alice", hs[0].Actor)
	assert.Equal(t, types.HistoryZoneChange, hs[1].Kind)
	assert.Empty(t, hs[1].OldValue)
	assert.True(t, Base.Equal(hs[1].At))
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	mace := types.ZoneMace

	a := NewAccreditation("acc-1", types.StatusNouveau)
	b := NewAccreditation("acc-2", types.StatusAttente)
	b.CurrentZone = &mace
	b.CreatedAt = Base.Add(time.Minute)
	c := NewAccreditation("acc-3", types.StatusAttente)
	c.CreatedAt = Base.Add(2 * time.Minute)
	Seed(t, s, a)
	Seed(t, s, b)
	Seed(t, s, c)

	all, err := s.List(ctx, types.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "acc-3", all[0].ID, "newest first")

	waiting, err := s.List(ctx, types.ListFilter{Status: types.StatusAttente})
	require.NoError(t, err)
	assert.Len(t, waiting, 2)

	atMace, err := s.List(ctx, types.ListFilter{Zone: types.ZoneMace})
	require.NoError(t, err)
	require.Len(t, atMace, 1)
	assert.Equal(t, "acc-2", atMace[0].ID)

	limited, err := s.List(ctx, types.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testOccupancy(t *testing.T, s store.Store) {
	ctx := context.Background()
	bocca := types.ZoneLaBocca

	for i, id := range []string{"a", "b", "c"} {
		acc := NewAccreditation(id, types.StatusAttente)
		acc.CreatedAt = Base.Add(time.Duration(i) * time.Minute)
		if id != "c" {
			acc.CurrentZone = &bocca
		}
		Seed(t, s, acc)
	}

	rows, err := s.Occupancy(ctx)
	require.NoError(t, err)

	counts := map[types.Zone]int{}
	for _, r := range rows {
		assert.Equal(t, types.StatusAttente, r.Status)
		counts[r.Zone] += r.Count
	}
	assert.Equal(t, 2, counts[types.ZoneLaBocca])
	assert.Equal(t, 1, counts[""])
}

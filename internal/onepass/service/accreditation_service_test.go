package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store/memory"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/zone"
)

type fixture struct {
	svc   *service.AccreditationService
	store *memory.Store
	now   time.Time
}

func newFixture(t *testing.T, gate service.Gate) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		now:   time.Date(2026, 5, 14, 8, 0, 0, 0, time.UTC),
	}
	f.svc = service.NewAccreditationService(service.Config{
		Store:    f.store,
		Graph:    zone.Default(),
		Gate:     gate,
		Location: time.UTC,
		Clock:    func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) at(hh, mm int) {
	f.now = time.Date(2026, 5, 14, hh, mm, 0, 0, time.UTC)
}

func (f *fixture) create(t *testing.T, status string) types.Accreditation {
	t.Helper()
	a, err := f.svc.Create(context.Background(), "agent", types.CreateRequest{
		Status:   status,
		Company:  "Acme Events",
		Stand:    "B12",
		Vehicles: []types.Vehicle{{Plate: " ab-123-cd ", Kind: "van"}},
	})
	require.NoError(t, err)
	return a
}

func strPtr(s string) *string { return &s }

// ═══════════════════════════════════════════════════════════════════════════
// Scenarios
// ═══════════════════════════════════════════════════════════════════════════

func TestScenario_NewRequestValidatedIntoWaitingZone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, "")
	assert.Equal(t, types.StatusNouveau, a.Status)
	assert.Nil(t, a.CurrentZone)
	assert.Equal(t, int64(1), a.Version)

	f.at(8, 30)
	a, err := f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{
		Status: "ATTENTE", Zone: "la_bocca", Version: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusAttente, a.Status)
	require.NotNil(t, a.CurrentZone)
	assert.Equal(t, types.ZoneLaBocca, *a.CurrentZone)
	assert.Equal(t, int64(2), a.Version)

	ms, err := f.svc.Movements(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, types.ActionEntry, ms[0].Action)
	assert.Nil(t, ms[0].FromZone)
	assert.Equal(t, types.ZoneLaBocca, ms[0].ToZone)
	assert.Equal(t, f.now, ms[0].At)
}

func TestScenario_FullCycleWithTransfer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, "")
	a, err := f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{
		Status: "ATTENTE", Zone: "LA_BOCCA", Version: a.Version,
	})
	require.NoError(t, err)

	f.at(9, 0)
	a, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{
		Status: "ENTREE", Version: a.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusEntree, a.Status)

	f.at(10, 30)
	a, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{
		Status: "SORTIE", Version: a.Version,
	})
	require.NoError(t, err)

	f.at(10, 45)
	a, err = f.svc.Transfer(ctx, "agent", a.ID, types.TransferRequest{
		TargetZone: "PALAIS_DES_FESTIVALS", Version: a.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusEntree, a.Status)
	assert.Equal(t, types.ZonePalaisDesFestivals, *a.CurrentZone)
	assert.Equal(t, int64(5), a.Version)

	ms, err := f.svc.Movements(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	require.NoError(t, types.CheckAlternation(ms))
	assert.Equal(t, types.ActionExit, ms[1].Action)
	assert.Equal(t, types.ZoneLaBocca, ms[1].ToZone)
	require.NotNil(t, ms[2].FromZone)
	assert.Equal(t, types.ZoneLaBocca, *ms[2].FromZone)

	f.at(11, 0)
	report, err := f.svc.TimeSlots(ctx, a.ID)
	require.NoError(t, err)

	slots := report.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, types.ZoneLaBocca, slots[0].Zone)
	require.NotNil(t, slots[0].DurationMinutes)
	assert.Equal(t, 150, *slots[0].DurationMinutes)
	assert.Equal(t, types.ZonePalaisDesFestivals, slots[1].Zone)
	assert.True(t, slots[1].Open)
	assert.Equal(t, 15, slots[1].LiveMinutes)

	transfers := report.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, 15, transfers[0].TransitMinutes)
	assert.Equal(t, types.ZoneLaBocca, transfers[0].FromZone)
	assert.Equal(t, types.ZonePalaisDesFestivals, transfers[0].ToZone)
	assert.Empty(t, report.Warnings)
}

func TestScenario_StaleVersionConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, "")
	for a.Version < 5 {
		var err error
		a, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{
			Status:  "NOUVEAU",
			Version: a.Version,
			Fields:  types.Fields{Message: strPtr(fmt.Sprintf("edit %d", a.Version))},
		})
		require.NoError(t, err)
	}
	require.Equal(t, int64(5), a.Version)

	historyBefore, err := f.svc.History(ctx, a.ID)
	require.NoError(t, err)

	// Client A wins.
	a6, err := f.svc.ChangeStatus(ctx, "client-a", a.ID, types.ChangeStatusRequest{
		Status: "ATTENTE", Zone: "MACE", Version: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), a6.Version)

	historyAfterA, err := f.svc.History(ctx, a.ID)
	require.NoError(t, err)
	movementsAfterA, err := f.svc.Movements(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, historyAfterA, len(historyBefore)+2)

	// Client B still holds version 5.
	_, err = f.svc.ChangeStatus(ctx, "client-b", a.ID, types.ChangeStatusRequest{
		Status: "REFUS", Version: 5,
	})
	require.ErrorIs(t, err, types.ErrConflict)

	var conflict *types.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(5), conflict.Expected)
	assert.Equal(t, int64(6), conflict.Actual)

	historyAfterB, err := f.svc.History(ctx, a.ID)
	require.NoError(t, err)
	movementsAfterB, err := f.svc.Movements(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, historyAfterA, historyAfterB)
	assert.Equal(t, movementsAfterA, movementsAfterB)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAttente, got.Status)
	assert.Equal(t, int64(6), got.Version)
}

// ═══════════════════════════════════════════════════════════════════════════
// Create
// ═══════════════════════════════════════════════════════════════════════════

func TestCreate_NormalizesAndRecordsHistory(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, "attente")

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, types.StatusAttente, a.Status)
	assert.Nil(t, a.CurrentZone)
	require.Len(t, a.Vehicles, 1)
	assert.Equal(t, "AB-123-CD", a.Vehicles[0].Plate)

	hs, err := f.svc.History(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, types.HistoryCreated, hs[0].Kind)
	assert.Equal(t, "agent", hs[0].Actor)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "agent", types.CreateRequest{Status: "ENTREE"})
	assert.ErrorIs(t, err, types.ErrInvalidStatus)

	_, err = f.svc.Create(ctx, "agent", types.CreateRequest{Status: "PARKED"})
	assert.ErrorIs(t, err, types.ErrInvalidStatus)

	_, err = f.svc.Create(ctx, "agent", types.CreateRequest{Vehicles: []types.Vehicle{{Plate: "  "}}})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	list, err := f.svc.List(ctx, types.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ═══════════════════════════════════════════════════════════════════════════
// Mutations
// ═══════════════════════════════════════════════════════════════════════════

func TestChangeStatus_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.create(t, "")

	_, err := f.svc.ChangeStatus(ctx, "agent", "missing", types.ChangeStatusRequest{Status: "ATTENTE", Zone: "MACE", Version: 1})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "BOGUS", Version: 1})
	assert.ErrorIs(t, err, types.ErrInvalidStatus)

	_, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "SORTIE", Version: 1})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "ATTENTE", Zone: "NICE", Version: 1})
	assert.ErrorIs(t, err, types.ErrInvalidZone)

	_, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "ATTENTE", Version: 1})
	assert.ErrorIs(t, err, types.ErrInvalidZone)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestZoneAction_EntryThenExit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, "ATTENTE")
	a, err := f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{
		Status: "ATTENTE", Zone: "PANTIERO", Version: a.Version,
	})
	require.NoError(t, err)

	ms, err := f.svc.Movements(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ms, "reassignment while waiting appends nothing")

	f.at(9, 0)
	a, err = f.svc.ZoneAction(ctx, "gate-1", a.ID, types.ZoneActionRequest{Action: "entry", Zone: "PANTIERO", Version: a.Version})
	require.NoError(t, err)
	assert.Equal(t, types.StatusEntree, a.Status)

	_, err = f.svc.ZoneAction(ctx, "gate-1", a.ID, types.ZoneActionRequest{Action: "EXIT", Zone: "MACE", Version: a.Version})
	assert.ErrorIs(t, err, types.ErrInvalidZone)

	_, err = f.svc.ZoneAction(ctx, "gate-1", a.ID, types.ZoneActionRequest{Action: "LEAVE", Zone: "PANTIERO", Version: a.Version})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	f.at(9, 40)
	a, err = f.svc.ZoneAction(ctx, "gate-1", a.ID, types.ZoneActionRequest{Action: "EXIT", Zone: "PANTIERO", Version: a.Version})
	require.NoError(t, err)
	assert.Equal(t, types.StatusSortie, a.Status)

	ms, err = f.svc.Movements(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.NoError(t, types.CheckAlternation(ms))

	hs, err := f.svc.History(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.HistoryZoneAction, hs[len(hs)-1].Kind)
	assert.Equal(t, "gate-1", hs[len(hs)-1].Actor)
}

func TestTransfer_FinalDestinationIsAbsorbing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, "")
	steps := []types.ChangeStatusRequest{
		{Status: "ATTENTE", Zone: "PALM_BEACH"},
		{Status: "ENTREE"},
		{Status: "SORTIE"},
	}
	for _, req := range steps {
		req.Version = a.Version
		var err error
		a, err = f.svc.ChangeStatus(ctx, "agent", a.ID, req)
		require.NoError(t, err)
	}

	_, err := f.svc.Transfer(ctx, "agent", a.ID, types.TransferRequest{TargetZone: "MACE", Version: a.Version})
	assert.ErrorIs(t, err, types.ErrInvalidZone, "PALM_BEACH cannot transfer to MACE")

	a, err = f.svc.Transfer(ctx, "agent", a.ID, types.TransferRequest{TargetZone: "palais_des_festivals", Version: a.Version})
	require.NoError(t, err)
	a, err = f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "SORTIE", Version: a.Version})
	require.NoError(t, err)

	assert.Empty(t, f.svc.Graph().TransferTargets(*a.CurrentZone))
	for _, z := range f.svc.Graph().AllZones() {
		_, err = f.svc.Transfer(ctx, "agent", a.ID, types.TransferRequest{TargetZone: string(z), Version: a.Version})
		assert.ErrorIs(t, err, types.ErrInvalidZone, "transfer to %s", z)
	}
}

func TestGate_DeniedActorWritesNothing(t *testing.T) {
	f := newFixture(t, service.NewActorPolicy(false, []string{"agent"}))
	ctx := context.Background()
	a := f.create(t, "")

	_, err := f.svc.Create(ctx, "intruder", types.CreateRequest{Company: "x"})
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = f.svc.ChangeStatus(ctx, "intruder", a.ID, types.ChangeStatusRequest{Status: "REFUS", Version: 1})
	assert.ErrorIs(t, err, types.ErrForbidden)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNouveau, got.Status)

	list, err := f.svc.List(ctx, types.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// Reads
// ═══════════════════════════════════════════════════════════════════════════

func TestList_Filters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, "")
	f.create(t, "")
	_, err := f.svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "ATTENTE", Zone: "MACE", Version: 1})
	require.NoError(t, err)

	got, err := f.svc.List(ctx, types.ListFilter{Zone: types.ZoneMace})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	got, err = f.svc.List(ctx, types.ListFilter{Status: types.StatusNouveau})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.List(ctx, types.ListFilter{Zone: "NICE"})
	assert.ErrorIs(t, err, types.ErrInvalidZone)
	_, err = f.svc.List(ctx, types.ListFilter{Status: "PARKED"})
	assert.ErrorIs(t, err, types.ErrInvalidStatus)
}

func TestTimeSlots_UnknownAccreditation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.TimeSlots(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTimeSlots_EmptyLog(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, "")

	report, err := f.svc.TimeSlots(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Days)
	assert.Zero(t, report.GrandTotalMinutes)
}

func TestZones_DescribesGraph(t *testing.T) {
	f := newFixture(t, nil)
	zs := f.svc.Zones()
	require.Len(t, zs, 5)

	var final int
	for _, z := range zs {
		if z.Final {
			final++
			assert.Equal(t, types.ZonePalaisDesFestivals, z.Zone)
			assert.Empty(t, z.TransferTargets)
		}
	}
	assert.Equal(t, 1, final)
}

// ═══════════════════════════════════════════════════════════════════════════
// Change parsing
// ═══════════════════════════════════════════════════════════════════════════

func TestUnchanged(t *testing.T) {
	cur := types.Accreditation{
		ID:          "a",
		Status:      types.StatusAttente,
		CurrentZone: types.ZonePtr(types.ZoneMace),
		Company:     "Acme",
		Vehicles:    []types.Vehicle{{Plate: "AB-1"}},
	}

	parse := func(req types.ChangeStatusRequest) bool {
		t.Helper()
		change, err := service.ParseChange(req)
		require.NoError(t, err)
		return service.Unchanged(cur, change)
	}

	assert.True(t, parse(types.ChangeStatusRequest{Status: "ATTENTE"}))
	assert.True(t, parse(types.ChangeStatusRequest{Status: "attente", Zone: "mace"}))
	assert.True(t, parse(types.ChangeStatusRequest{Status: "ATTENTE", Fields: types.Fields{Company: strPtr("Acme")}}))
	assert.True(t, parse(types.ChangeStatusRequest{Status: "ATTENTE",
		Fields: types.Fields{Vehicles: &[]types.Vehicle{{Plate: "ab-1"}}}}))

	assert.False(t, parse(types.ChangeStatusRequest{Status: "ENTREE"}))
	assert.False(t, parse(types.ChangeStatusRequest{Status: "ATTENTE", Zone: "LA_BOCCA"}))
	assert.False(t, parse(types.ChangeStatusRequest{Status: "ATTENTE", Fields: types.Fields{Stand: strPtr("C3")}}))
	assert.False(t, parse(types.ChangeStatusRequest{Status: "ATTENTE", Fields: types.Fields{Vehicles: &[]types.Vehicle{}}}))
}

func TestParseChange_RejectsBadInput(t *testing.T) {
	_, err := service.ParseChange(types.ChangeStatusRequest{Status: ""})
	assert.ErrorIs(t, err, types.ErrInvalidStatus)

	_, err = service.ParseChange(types.ChangeStatusRequest{Status: "ATTENTE",
		Fields: types.Fields{Vehicles: &[]types.Vehicle{{Plate: ""}}}})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

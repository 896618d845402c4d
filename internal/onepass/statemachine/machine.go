// Package statemachine validates accreditation lifecycle transitions and
// plans their effects. It never touches storage: callers pass the persisted
// record and the latest movement log entry, and persist the returned Outcome
// themselves.
package statemachine

import (
	"fmt"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/zone"
)

// Outcome is the planned effect of an accepted transition.
type Outcome struct {
	Next      types.Accreditation
	Movements []types.ZoneMovement
	Kind      types.HistoryKind
}

// ChangeRequest asks for a new status, optionally with a zone, plus any
// descriptive fields saved alongside.
type ChangeRequest struct {
	Status types.Status
	Zone   *types.Zone
	Fields types.Fields
}

type Machine struct {
	graph *zone.Graph
}

func New(g *zone.Graph) *Machine {
	return &Machine{graph: g}
}

func (m *Machine) Graph() *zone.Graph { return m.graph }

// ChangeStatus plans a status and/or zone change. last is the newest movement
// of the accreditation, nil when the log is empty.
func (m *Machine) ChangeStatus(cur types.Accreditation, last *types.ZoneMovement, req ChangeRequest, now time.Time) (Outcome, error) {
	if !req.Status.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", types.ErrInvalidStatus, req.Status)
	}
	if req.Zone != nil {
		if err := m.checkKnown(*req.Zone); err != nil {
			return Outcome{}, err
		}
	}

	next := cur.Clone()
	req.Fields.ApplyTo(&next)

	if req.Status == cur.Status {
		zoneChanged := req.Zone != nil && (cur.CurrentZone == nil || *req.Zone != *cur.CurrentZone)
		switch {
		case zoneChanged && cur.Status == types.StatusAttente:
			// Reassigned before arrival: no movement.
			next.CurrentZone = types.ZonePtr(*req.Zone)
			return Outcome{Next: next, Kind: types.HistoryZoneChange}, nil
		case zoneChanged:
			return Outcome{}, &types.TransitionError{From: cur.Status, To: req.Status,
				Reason: "zone can only be reassigned while waiting"}
		case req.Fields.Empty():
			return Outcome{}, &types.TransitionError{From: cur.Status, To: req.Status, Reason: "nothing to change"}
		default:
			return Outcome{Next: next, Kind: types.HistoryFieldEdit}, nil
		}
	}

	switch {
	case cur.Status == types.StatusNouveau && req.Status == types.StatusAttente:
		if req.Zone == nil {
			return Outcome{}, &types.ZoneError{Reason: "a waiting zone is required to validate a request"}
		}
		return m.assign(cur, next, last, *req.Zone, now), nil

	case cur.Status == types.StatusNouveau && req.Status == types.StatusRefus,
		cur.Status == types.StatusAttente && req.Status == types.StatusAbsent:
		if err := sameZone(cur, req.Zone); err != nil {
			return Outcome{}, err
		}
		next.Status = req.Status
		return Outcome{Next: next, Kind: types.HistoryStatusChange}, nil

	case cur.Status == types.StatusAttente && req.Status == types.StatusEntree:
		return m.arrive(cur, next, last, req.Zone, now, types.HistoryStatusChange)

	case cur.Status == types.StatusEntree && req.Status == types.StatusSortie:
		return m.depart(cur, next, last, req.Zone, now, types.HistoryStatusChange)

	case cur.Status == types.StatusSortie && req.Status == types.StatusEntree:
		if req.Zone == nil {
			return Outcome{}, &types.ZoneError{Reason: "re-entry requires a transfer target zone"}
		}
		return m.transfer(cur, next, *req.Zone, now)
	}

	return Outcome{}, &types.TransitionError{From: cur.Status, To: req.Status}
}

// ZoneAction plans a gate event: ENTRY records arrival (or re-entry after a
// transfer), EXIT records departure from the current zone.
func (m *Machine) ZoneAction(cur types.Accreditation, last *types.ZoneMovement, action types.Action, z types.Zone, now time.Time) (Outcome, error) {
	if z == "" {
		return Outcome{}, &types.ZoneError{Reason: "zone is required"}
	}
	if err := m.checkKnown(z); err != nil {
		return Outcome{}, err
	}

	next := cur.Clone()

	switch action {
	case types.ActionEntry:
		switch cur.Status {
		case types.StatusAttente:
			return m.arrive(cur, next, last, &z, now, types.HistoryZoneAction)
		case types.StatusSortie:
			return m.transfer(cur, next, z, now)
		}
		return Outcome{}, &types.TransitionError{From: cur.Status, To: types.StatusEntree,
			Reason: "ENTRY is only accepted while waiting or after an exit"}

	case types.ActionExit:
		if cur.Status != types.StatusEntree {
			return Outcome{}, &types.TransitionError{From: cur.Status, To: types.StatusSortie,
				Reason: "EXIT is only accepted while on site"}
		}
		if cur.CurrentZone == nil {
			return Outcome{}, &types.ZoneError{Zone: z, Reason: "vehicle has no zone assigned"}
		}
		return m.depart(cur, next, last, &z, now, types.HistoryZoneAction)
	}

	return Outcome{}, fmt.Errorf("%w: unknown action %q", types.ErrInvalidInput, action)
}

// Transfer plans a move from the zone just exited to target.
func (m *Machine) Transfer(cur types.Accreditation, target types.Zone, now time.Time) (Outcome, error) {
	if target == "" {
		return Outcome{}, &types.ZoneError{Reason: "target zone is required"}
	}
	if err := m.checkKnown(target); err != nil {
		return Outcome{}, err
	}
	if cur.Status != types.StatusSortie {
		return Outcome{}, &types.TransitionError{From: cur.Status, To: types.StatusEntree,
			Reason: "a transfer starts from SORTIE"}
	}
	return m.transfer(cur, cur.Clone(), target, now)
}

// assign handles NOUVEAU -> ATTENTE. The first-ever zone assignment opens the
// movement log with ENTRY(null -> zone).
func (m *Machine) assign(cur, next types.Accreditation, last *types.ZoneMovement, z types.Zone, now time.Time) Outcome {
	next.Status = types.StatusAttente
	next.CurrentZone = types.ZonePtr(z)

	out := Outcome{Next: next, Kind: types.HistoryStatusChange}
	if cur.CurrentZone == nil && last == nil {
		out.Movements = []types.ZoneMovement{types.NewEntry(cur.ID, nil, z, now)}
	}
	return out
}

// arrive handles ATTENTE -> ENTREE. Without any zone it falls back to the
// legacy entry timestamp.
func (m *Machine) arrive(cur, next types.Accreditation, last *types.ZoneMovement, z *types.Zone, now time.Time, kind types.HistoryKind) (Outcome, error) {
	target := cur.CurrentZone
	if z != nil {
		switch {
		case target == nil:
			target = types.ZonePtr(*z)
		case *z != *target:
			return Outcome{}, &types.ZoneError{Zone: *z,
				Reason: fmt.Sprintf("vehicle is assigned to %s", *target)}
		}
	}

	next.Status = types.StatusEntree
	out := Outcome{Next: next, Kind: kind}

	if target == nil {
		if out.Next.EntryAt == nil {
			out.Next.EntryAt = &now
		}
		return out, nil
	}

	out.Next.CurrentZone = types.ZonePtr(*target)

	switch {
	case last.OpenEntry() && last.ToZone == *target:
		// Entry already logged when the zone was first assigned.
	case last.OpenEntry():
		// Zone reassigned while waiting: close the stale slot so the log
		// keeps alternating, and the last-assigned zone wins.
		stale := last.ToZone
		out.Movements = []types.ZoneMovement{
			types.NewExit(cur.ID, stale, now),
			types.NewEntry(cur.ID, &stale, *target, now),
		}
	default:
		out.Movements = []types.ZoneMovement{types.NewEntry(cur.ID, nil, *target, now)}
	}
	return out, nil
}

// depart handles ENTREE -> SORTIE.
func (m *Machine) depart(cur, next types.Accreditation, last *types.ZoneMovement, z *types.Zone, now time.Time, kind types.HistoryKind) (Outcome, error) {
	next.Status = types.StatusSortie
	out := Outcome{Next: next, Kind: kind}

	if cur.CurrentZone == nil {
		if z != nil {
			return Outcome{}, &types.ZoneError{Zone: *z, Reason: "vehicle has no zone assigned"}
		}
		out.Next.ExitAt = &now
		return out, nil
	}

	here := *cur.CurrentZone
	if z != nil && *z != here {
		return Outcome{}, &types.ZoneError{Zone: *z, Reason: fmt.Sprintf("vehicle is in %s", here)}
	}
	if !last.OpenEntry() || last.ToZone != here {
		return Outcome{}, fmt.Errorf("%w: no open ENTRY into %s for accreditation %s",
			types.ErrStructuralViolation, here, cur.ID)
	}

	out.Movements = []types.ZoneMovement{types.NewExit(cur.ID, here, now)}
	return out, nil
}

// transfer handles SORTIE -> ENTREE into a new zone.
func (m *Machine) transfer(cur, next types.Accreditation, target types.Zone, now time.Time) (Outcome, error) {
	if cur.CurrentZone == nil {
		return Outcome{}, &types.ZoneError{Zone: target, Reason: "vehicle has no zone to transfer from"}
	}
	from := *cur.CurrentZone

	if m.graph.IsFinalDestination(from) {
		return Outcome{}, &types.ZoneError{Zone: target,
			Reason: fmt.Sprintf("vehicle already left the final destination %s", from)}
	}
	if !m.graph.CanTransfer(from, target) {
		return Outcome{}, &types.ZoneError{Zone: target,
			Reason: fmt.Sprintf("not a transfer target of %s", from)}
	}

	next.Status = types.StatusEntree
	next.CurrentZone = types.ZonePtr(target)

	return Outcome{
		Next:      next,
		Movements: []types.ZoneMovement{types.NewEntry(cur.ID, &from, target, now)},
		Kind:      types.HistoryTransfer,
	}, nil
}

func (m *Machine) checkKnown(z types.Zone) error {
	if !m.graph.Valid(z) {
		return &types.ZoneError{Zone: z, Reason: "unknown zone"}
	}
	return nil
}

// sameZone rejects a zone on transitions that do not move the vehicle,
// unless it restates the current one.
func sameZone(cur types.Accreditation, z *types.Zone) error {
	if z == nil {
		return nil
	}
	if cur.CurrentZone == nil || *cur.CurrentZone != *z {
		return &types.ZoneError{Zone: *z, Reason: "this transition does not change zone"}
	}
	return nil
}

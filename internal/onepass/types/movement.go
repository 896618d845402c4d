package types

import (
	"fmt"
	"time"
)

// ZoneMovement is one immutable entry of the movement log. For EXIT both
// FromZone and ToZone hold the zone being left.
type ZoneMovement struct {
	ID              int64     `json:"id"`
	AccreditationID string    `json:"accreditation_id"`
	Action          Action    `json:"action"`
	FromZone        *Zone     `json:"from_zone"`
	ToZone          Zone      `json:"to_zone"`
	At              time.Time `json:"at"`
}

func NewEntry(accreditationID string, from *Zone, to Zone, at time.Time) ZoneMovement {
	var f *Zone
	if from != nil {
		z := *from
		f = &z
	}
	return ZoneMovement{
		AccreditationID: accreditationID,
		Action:          ActionEntry,
		FromZone:        f,
		ToZone:          to,
		At:              at,
	}
}

func NewExit(accreditationID string, zone Zone, at time.Time) ZoneMovement {
	return ZoneMovement{
		AccreditationID: accreditationID,
		Action:          ActionExit,
		FromZone:        ZonePtr(zone),
		ToZone:          zone,
		At:              at,
	}
}

// OpenEntry reports whether m is an ENTRY not yet matched by an EXIT, given
// that m is the latest movement of its accreditation.
func (m *ZoneMovement) OpenEntry() bool {
	return m != nil && m.Action == ActionEntry
}

// CheckAlternation verifies that ms alternates ENTRY, EXIT, ENTRY, ... and
// that every EXIT leaves the zone its preceding ENTRY entered.
func CheckAlternation(ms []ZoneMovement) error {
	var open *Zone
	for i, m := range ms {
		switch m.Action {
		case ActionEntry:
			if open != nil {
				return fmt.Errorf("%w: movement %d: ENTRY into %s while %s is still open",
					ErrStructuralViolation, i, m.ToZone, *open)
			}
			z := m.ToZone
			open = &z
		case ActionExit:
			if open == nil {
				return fmt.Errorf("%w: movement %d: EXIT from %s without matching ENTRY",
					ErrStructuralViolation, i, m.ToZone)
			}
			if *open != m.ToZone {
				return fmt.Errorf("%w: movement %d: EXIT from %s but open zone is %s",
					ErrStructuralViolation, i, m.ToZone, *open)
			}
			open = nil
		default:
			return fmt.Errorf("%w: movement %d: unknown action %q", ErrStructuralViolation, i, m.Action)
		}
	}
	return nil
}

// Package timeslot rebuilds per-zone occupancy slots and the transit times
// between them from an accreditation's movement log. Nothing here is
// persisted; reports are recomputed on every read.
package timeslot

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

const dayLayout = "2006-01-02"

// Anomaly markers set on slots and transfers built from an inconsistent log.
const (
	AnomalyClamped      = "clamped"
	AnomalyImplicitExit = "implicit_exit"
)

// Slot is one continuous stay in a zone.
type Slot struct {
	Step            int        `json:"step" yaml:"step"`
	Zone            types.Zone `json:"zone" yaml:"zone"`
	EntryAt         time.Time  `json:"entry_at" yaml:"entry_at"`
	ExitAt          *time.Time `json:"exit_at" yaml:"exit_at"`
	DurationMinutes *int       `json:"duration_minutes" yaml:"duration_minutes"`
	Open            bool       `json:"open" yaml:"open"`
	LiveMinutes     int        `json:"live_minutes,omitempty" yaml:"live_minutes,omitempty"`
	Anomaly         string     `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

// Minutes is the closed duration, or the live duration of an open slot.
func (s Slot) Minutes() int {
	if s.DurationMinutes != nil {
		return *s.DurationMinutes
	}
	return s.LiveMinutes
}

// Transfer is the gap between leaving one zone and entering the next.
type Transfer struct {
	FromZone       types.Zone `json:"from_zone" yaml:"from_zone"`
	ToZone         types.Zone `json:"to_zone" yaml:"to_zone"`
	DepartureAt    time.Time  `json:"departure_at" yaml:"departure_at"`
	ArrivalAt      time.Time  `json:"arrival_at" yaml:"arrival_at"`
	TransitMinutes int        `json:"transit_minutes" yaml:"transit_minutes"`
	// DestinationOpen is set while the vehicle is still in the zone it
	// transferred to.
	DestinationOpen bool   `json:"destination_open" yaml:"destination_open"`
	Anomaly         string `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

type DayGroup struct {
	Date         string     `json:"date" yaml:"date"`
	Slots        []Slot     `json:"slots" yaml:"slots"`
	Transfers    []Transfer `json:"transfers" yaml:"transfers"`
	TotalMinutes int        `json:"total_minutes" yaml:"total_minutes"`
}

// Warning describes a movement log inconsistency the report worked around.
type Warning struct {
	At      time.Time `json:"at" yaml:"at"`
	Message string    `json:"message" yaml:"message"`
}

type Report struct {
	Days              []DayGroup `json:"days" yaml:"days"`
	GrandTotalMinutes int        `json:"grand_total_minutes" yaml:"grand_total_minutes"`
	Warnings          []Warning  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Slots flattens the report back into step order.
func (r Report) Slots() []Slot {
	var out []Slot
	for _, d := range r.Days {
		out = append(out, d.Slots...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// Transfers flattens the report in departure order.
func (r Report) Transfers() []Transfer {
	var out []Transfer
	for _, d := range r.Days {
		out = append(out, d.Transfers...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	return out
}

// Aggregate builds the report for one accreditation. Days are calendar days
// in loc; now drives the live duration of an open slot.
func Aggregate(movements []types.ZoneMovement, loc *time.Location, now time.Time) Report {
	if loc == nil {
		loc = time.UTC
	}

	ms := make([]types.ZoneMovement, len(movements))
	copy(ms, movements)
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].At.Before(ms[j].At) })

	var (
		slots    []Slot
		warnings []Warning
		open     = -1
	)

	for _, m := range ms {
		switch m.Action {
		case types.ActionEntry:
			if open >= 0 {
				closeSlot(&slots[open], m.At, true)
				warnings = append(warnings, Warning{
					At: m.At,
					Message: fmt.Sprintf("ENTRY into %s while %s was still open; %s closed with zero duration",
						m.ToZone, slots[open].Zone, slots[open].Zone),
				})
			}
			slots = append(slots, Slot{Step: len(slots) + 1, Zone: m.ToZone, EntryAt: m.At})
			open = len(slots) - 1

		case types.ActionExit:
			if open < 0 {
				warnings = append(warnings, Warning{At: m.At,
					Message: fmt.Sprintf("EXIT from %s without a matching ENTRY ignored", m.ToZone)})
				continue
			}
			if slots[open].Zone != m.ToZone {
				warnings = append(warnings, Warning{At: m.At,
					Message: fmt.Sprintf("EXIT from %s while %s is open ignored", m.ToZone, slots[open].Zone)})
				continue
			}
			if closeSlot(&slots[open], m.At, false) {
				warnings = append(warnings, Warning{At: m.At,
					Message: fmt.Sprintf("slot %d in %s exits before it enters; duration clamped to zero",
						slots[open].Step, slots[open].Zone)})
			}
			open = -1

		default:
			warnings = append(warnings, Warning{At: m.At, Message: fmt.Sprintf("unknown action %q ignored", m.Action)})
		}
	}

	if open >= 0 {
		s := &slots[open]
		s.Open = true
		s.LiveMinutes = max(0, minutes(now.Sub(s.EntryAt)))
	}

	var transfers []Transfer
	for i := 0; i+1 < len(slots); i++ {
		cur, next := slots[i], slots[i+1]
		if cur.ExitAt == nil {
			continue
		}
		tr := Transfer{
			FromZone:        cur.Zone,
			ToZone:          next.Zone,
			DepartureAt:     *cur.ExitAt,
			ArrivalAt:       next.EntryAt,
			TransitMinutes:  minutes(next.EntryAt.Sub(*cur.ExitAt)),
			DestinationOpen: next.Open,
		}
		if tr.TransitMinutes < 0 {
			tr.TransitMinutes = 0
			tr.Anomaly = AnomalyClamped
			warnings = append(warnings, Warning{At: tr.ArrivalAt,
				Message: fmt.Sprintf("transfer %s -> %s arrives before it departs; transit clamped to zero",
					tr.FromZone, tr.ToZone)})
		}
		transfers = append(transfers, tr)
	}

	return group(slots, transfers, warnings, loc)
}

// closeSlot sets the exit of s. implicit closes with zero duration. It
// reports whether the duration had to be clamped.
func closeSlot(s *Slot, exit time.Time, implicit bool) bool {
	e := exit
	s.ExitAt = &e

	d := 0
	clamped := false
	switch {
	case implicit:
		s.Anomaly = AnomalyImplicitExit
	default:
		d = minutes(exit.Sub(s.EntryAt))
		if d < 0 {
			d = 0
			clamped = true
			s.Anomaly = AnomalyClamped
		}
	}
	s.DurationMinutes = &d
	return clamped
}

func group(slots []Slot, transfers []Transfer, warnings []Warning, loc *time.Location) Report {
	byDay := map[string]*DayGroup{}
	day := func(t time.Time) *DayGroup {
		k := t.In(loc).Format(dayLayout)
		g, ok := byDay[k]
		if !ok {
			g = &DayGroup{Date: k, Slots: []Slot{}, Transfers: []Transfer{}}
			byDay[k] = g
		}
		return g
	}

	for _, s := range slots {
		g := day(s.EntryAt)
		g.Slots = append(g.Slots, s)
		g.TotalMinutes += s.Minutes()
	}
	for _, tr := range transfers {
		g := day(tr.DepartureAt)
		g.Transfers = append(g.Transfers, tr)
	}

	r := Report{Days: make([]DayGroup, 0, len(byDay)), Warnings: warnings}
	for _, g := range byDay {
		r.Days = append(r.Days, *g)
		r.GrandTotalMinutes += g.TotalMinutes
	}
	sort.Slice(r.Days, func(i, j int) bool { return r.Days[i].Date < r.Days[j].Date })
	return r
}

func minutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

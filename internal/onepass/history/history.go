// Package history turns accepted mutations into audit entries.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// Recorder persists one entry inside the transaction of the mutation it
// documents. Every store transaction implements it.
type Recorder interface {
	RecordHistory(ctx context.Context, e types.HistoryEntry) error
}

// Field names used in history entries.
const (
	FieldStatus      = "status"
	FieldCurrentZone = "current_zone"
	FieldEntryAt     = "entry_at"
	FieldExitAt      = "exit_at"
	FieldCompany     = "company"
	FieldStand       = "stand"
	FieldEvent       = "event"
	FieldMessage     = "message"
	FieldVehicles    = "vehicles"
)

// Diff returns one entry per field that differs between before and after.
// Zone changes made by a transfer keep the transfer kind; a plain zone edit
// is a ZONE_CHANGE whatever kind the caller passed.
func Diff(kind types.HistoryKind, actor string, before, after types.Accreditation, at time.Time) []types.HistoryEntry {
	var out []types.HistoryEntry

	add := func(k types.HistoryKind, field, oldV, newV string) {
		if oldV == newV {
			return
		}
		out = append(out, types.HistoryEntry{
			AccreditationID: after.ID,
			Kind:            k,
			Field:           field,
			OldValue:        oldV,
			NewValue:        newV,
			Actor:           actor,
			At:              at,
		})
	}

	statusKind := kind
	if kind == types.HistoryFieldEdit || kind == types.HistoryZoneChange {
		statusKind = types.HistoryStatusChange
	}
	zoneKind := kind
	if kind != types.HistoryTransfer {
		zoneKind = types.HistoryZoneChange
	}

	add(statusKind, FieldStatus, string(before.Status), string(after.Status))
	add(zoneKind, FieldCurrentZone, types.ZoneString(before.CurrentZone), types.ZoneString(after.CurrentZone))
	add(statusKind, FieldEntryAt, formatTime(before.EntryAt), formatTime(after.EntryAt))
	add(statusKind, FieldExitAt, formatTime(before.ExitAt), formatTime(after.ExitAt))
	add(types.HistoryFieldEdit, FieldCompany, before.Company, after.Company)
	add(types.HistoryFieldEdit, FieldStand, before.Stand, after.Stand)
	add(types.HistoryFieldEdit, FieldEvent, before.Event, after.Event)
	add(types.HistoryFieldEdit, FieldMessage, before.Message, after.Message)
	add(types.HistoryFieldEdit, FieldVehicles, describeVehicles(before.Vehicles), describeVehicles(after.Vehicles))

	return out
}

// Created is the single entry written alongside a new accreditation.
func Created(actor string, a types.Accreditation) types.HistoryEntry {
	return types.HistoryEntry{
		AccreditationID: a.ID,
		Kind:            types.HistoryCreated,
		Field:           FieldStatus,
		NewValue:        string(a.Status),
		Actor:           actor,
		At:              a.CreatedAt,
	}
}

// RecordAll writes entries in order, stopping at the first failure.
func RecordAll(ctx context.Context, r Recorder, entries []types.HistoryEntry) error {
	for _, e := range entries {
		if err := r.RecordHistory(ctx, e); err != nil {
			return fmt.Errorf("record history %s: %w", e.Field, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func describeVehicles(vs []types.Vehicle) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		p := v.Plate
		if v.Kind != "" {
			p += " (" + v.Kind + ")"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

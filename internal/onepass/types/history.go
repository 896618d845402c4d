package types

import "time"

// HistoryKind classifies the mutation a history entry documents.
type HistoryKind string

const (
	HistoryCreated      HistoryKind = "CREATED"
	HistoryStatusChange HistoryKind = "STATUS_CHANGE"
	HistoryZoneChange   HistoryKind = "ZONE_CHANGE"
	HistoryZoneAction   HistoryKind = "ZONE_ACTION"
	HistoryTransfer     HistoryKind = "TRANSFER"
	HistoryFieldEdit    HistoryKind = "FIELD_EDIT"
)

// HistoryEntry is a write-once audit record of one changed field.
type HistoryEntry struct {
	ID              int64       `json:"id"`
	AccreditationID string      `json:"accreditation_id"`
	Kind            HistoryKind `json:"kind"`
	Field           string      `json:"field"`
	OldValue        string      `json:"old_value"`
	NewValue        string      `json:"new_value"`
	Actor           string      `json:"actor"`
	At              time.Time   `json:"at"`
}

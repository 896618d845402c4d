package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// tx implements store.Tx on top of a worker-owned *sql.Tx.
type tx struct {
	tx *sql.Tx
}

func (t *tx) InsertAccreditation(ctx context.Context, a types.Accreditation) error {
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO accreditations(`+accreditationColumns+`
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		a.ID, string(a.Status), nullZone(a.CurrentZone), a.Version, nullMs(a.EntryAt), nullMs(a.ExitAt),
		a.Company, a.Stand, a.Event, a.Message, a.CreatedAt.UTC().UnixMilli(), a.UpdatedAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("InsertAccreditation: %w", err)
	}
	return replaceVehicles(ctx, t.tx, a.ID, a.Vehicles)
}

func (t *tx) LoadAccreditation(ctx context.Context, id string) (types.Accreditation, error) {
	return loadAccreditation(ctx, t.tx, id)
}

func (t *tx) LastMovement(ctx context.Context, id string) (*types.ZoneMovement, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, accreditation_id, action, from_zone, to_zone, at_ms
FROM zone_movements
WHERE accreditation_id = ?
ORDER BY at_ms DESC, id DESC
LIMIT 1;
`, id)

	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LastMovement: %w", err)
	}
	return &m, nil
}

// UpdateIfVersion always writes expected+1 as the new version, whatever
// next.Version says.
func (t *tx) UpdateIfVersion(ctx context.Context, next types.Accreditation, expected int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
UPDATE accreditations SET
  status = ?,
  current_zone = ?,
  version = ?,
  entry_at_ms = ?,
  exit_at_ms = ?,
  company = ?,
  stand = ?,
  event = ?,
  message = ?,
  updated_at_ms = ?
WHERE id = ? AND version = ?;
`,
		string(next.Status), nullZone(next.CurrentZone), expected+1, nullMs(next.EntryAt), nullMs(next.ExitAt),
		next.Company, next.Stand, next.Event, next.Message, next.UpdatedAt.UTC().UnixMilli(),
		next.ID, expected,
	)
	if err != nil {
		return false, fmt.Errorf("UpdateIfVersion: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("UpdateIfVersion rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := replaceVehicles(ctx, t.tx, next.ID, next.Vehicles); err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) AppendMovement(ctx context.Context, m types.ZoneMovement) error {
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO zone_movements(accreditation_id, action, from_zone, to_zone, at_ms)
VALUES (?, ?, ?, ?, ?);
`, m.AccreditationID, string(m.Action), nullZone(m.FromZone), string(m.ToZone), m.At.UTC().UnixMilli()); err != nil {
		return fmt.Errorf("AppendMovement: %w", err)
	}
	return nil
}

func (t *tx) RecordHistory(ctx context.Context, e types.HistoryEntry) error {
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO history_entries(accreditation_id, kind, field, old_value, new_value, actor, at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, e.AccreditationID, string(e.Kind), e.Field, e.OldValue, e.NewValue, e.Actor, e.At.UTC().UnixMilli()); err != nil {
		return fmt.Errorf("RecordHistory: %w", err)
	}
	return nil
}

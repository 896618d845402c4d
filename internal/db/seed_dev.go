package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DevAccreditationID is the fixed id of the seeded demo accreditation.
const DevAccreditationID = "00000000-0000-4000-8000-000000000001"

type SeedDevOptions struct {
	// Zone the demo vehicle waits in. Defaults to LA_BOCCA.
	Zone string
}

// SeedDev inserts a waiting demo accreditation with one vehicle and its
// opening movement. Re-running it leaves existing rows alone.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	if opt.Zone == "" {
		opt.Zone = "LA_BOCCA"
	}
	now := time.Now().UTC().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO accreditations(
  id, status, current_zone, version,
  company, stand, event, message,
  created_at_ms, updated_at_ms
) VALUES (?, 'ATTENTE', ?, 2, 'Dev Logistics', 'DEV-01', 'Dev Event', 'seeded', ?, ?);
`, DevAccreditationID, opt.Zone, now, now)
	if err != nil {
		return fmt.Errorf("seed accreditation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO vehicles(accreditation_id, position, plate, kind)
VALUES (?, 0, 'DV-001-AA', 'porteur');
`, DevAccreditationID); err != nil {
		return fmt.Errorf("seed vehicle: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO zone_movements(accreditation_id, action, from_zone, to_zone, at_ms)
VALUES (?, 'ENTRY', NULL, ?, ?);
`, DevAccreditationID, opt.Zone, now); err != nil {
		return fmt.Errorf("seed movement: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO history_entries(accreditation_id, kind, field, old_value, new_value, actor, at_ms)
VALUES (?, 'CREATED', 'status', '', 'ATTENTE', 'seed', ?);
`, DevAccreditationID, now); err != nil {
		return fmt.Errorf("seed history: %w", err)
	}

	return tx.Commit()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// replaceVehicles swaps the vehicle rows of an accreditation for vs, keeping
// their order.
//
// Must be called inside an existing transaction.
func replaceVehicles(ctx context.Context, tx *sql.Tx, accreditationID string, vs []types.Vehicle) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE accreditation_id = ?;`, accreditationID); err != nil {
		return fmt.Errorf("replaceVehicles %s delete: %w", accreditationID, err)
	}

	for i, v := range vs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO vehicles(accreditation_id, position, plate, kind, driver_name, driver_phone)
VALUES (?, ?, ?, ?, ?, ?);
`, accreditationID, i, v.Plate, v.Kind, v.DriverName, v.DriverPhone); err != nil {
			return fmt.Errorf("replaceVehicles %s insert: %w", accreditationID, err)
		}
	}
	return nil
}

func loadVehicles(ctx context.Context, q querier, accreditationID string) ([]types.Vehicle, error) {
	rows, err := q.QueryContext(ctx, `
SELECT plate, kind, driver_name, driver_phone
FROM vehicles
WHERE accreditation_id = ?
ORDER BY position ASC;
`, accreditationID)
	if err != nil {
		return nil, fmt.Errorf("loadVehicles %s: %w", accreditationID, err)
	}
	defer rows.Close()

	var out []types.Vehicle
	for rows.Next() {
		var v types.Vehicle
		if err := rows.Scan(&v.Plate, &v.Kind, &v.DriverName, &v.DriverPhone); err != nil {
			return nil, fmt.Errorf("loadVehicles %s scan: %w", accreditationID, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

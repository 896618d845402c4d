package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/Techtrust201/cannes-one-pass/internal/db"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// Store reads through db directly and sends every transaction through the
// single writer goroutine.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

var _ store.Store = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, fn store.TxFn) error {
	return s.writer.Do(ctx, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx})
	})
}

const accreditationColumns = `
  id, status, current_zone, version, entry_at_ms, exit_at_ms,
  company, stand, event, message, created_at_ms, updated_at_ms`

func (s *Store) Get(ctx context.Context, id string) (types.Accreditation, error) {
	return loadAccreditation(ctx, s.db, id)
}

func (s *Store) List(ctx context.Context, f types.ListFilter) ([]types.Accreditation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Zone != "" {
		where = append(where, "current_zone = ?")
		args = append(args, string(f.Zone))
	}

	q := "SELECT" + accreditationColumns + "\nFROM accreditations"
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY created_at_ms DESC, rowid DESC"
	if f.Limit > 0 {
		q += "\nLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}

	var out []types.Accreditation
	for rows.Next() {
		a, err := scanAccreditation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("List rows: %w", err)
	}
	rows.Close()

	// Vehicles are loaded after the cursor is closed: the pool holds a
	// single connection.
	for i := range out {
		vs, err := loadVehicles(ctx, s.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Vehicles = vs
	}
	return out, nil
}

func (s *Store) Movements(ctx context.Context, id string) ([]types.ZoneMovement, error) {
	if err := ensureExists(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, accreditation_id, action, from_zone, to_zone, at_ms
FROM zone_movements
WHERE accreditation_id = ?
ORDER BY at_ms ASC, id ASC;
`, id)
	if err != nil {
		return nil, fmt.Errorf("Movements query: %w", err)
	}
	defer rows.Close()

	var out []types.ZoneMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("Movements scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, id string) ([]types.HistoryEntry, error) {
	if err := ensureExists(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, accreditation_id, kind, field, old_value, new_value, actor, at_ms
FROM history_entries
WHERE accreditation_id = ?
ORDER BY id ASC;
`, id)
	if err != nil {
		return nil, fmt.Errorf("History query: %w", err)
	}
	defer rows.Close()

	var out []types.HistoryEntry
	for rows.Next() {
		var (
			e    types.HistoryEntry
			kind string
			atMs int64
		)
		if err := rows.Scan(&e.ID, &e.AccreditationID, &kind, &e.Field, &e.OldValue, &e.NewValue, &e.Actor, &atMs); err != nil {
			return nil, fmt.Errorf("History scan: %w", err)
		}
		e.Kind = types.HistoryKind(kind)
		e.At = fromMs(atMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Occupancy(ctx context.Context) ([]store.OccupancyRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT COALESCE(current_zone, ''), status, COUNT(*)
FROM accreditations
GROUP BY 1, 2
ORDER BY 1, 2;
`)
	if err != nil {
		return nil, fmt.Errorf("Occupancy query: %w", err)
	}
	defer rows.Close()

	var out []store.OccupancyRow
	for rows.Next() {
		var zone, status string
		var n int
		if err := rows.Scan(&zone, &status, &n); err != nil {
			return nil, fmt.Errorf("Occupancy scan: %w", err)
		}
		out = append(out, store.OccupancyRow{Zone: types.Zone(zone), Status: types.Status(status), Count: n})
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM accreditations WHERE id = ?;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup accreditation %s: %w", id, err)
	}
	return nil
}

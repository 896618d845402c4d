// Package postgres stores accreditations in PostgreSQL through a pgx pool.
// Concurrent writers are arbitrated by the conditional version update: a
// second UPDATE on the same row waits for the first to commit and then
// matches no row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accreditationColumns = `
  id, status, current_zone, version, entry_at, exit_at,
  company, stand, event, message, created_at, updated_at`

func (s *Store) WithTx(ctx context.Context, fn store.TxFn) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (types.Accreditation, error) {
	return loadAccreditation(ctx, s.pool, id)
}

func (s *Store) List(ctx context.Context, f types.ListFilter) ([]types.Accreditation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Zone != "" {
		args = append(args, string(f.Zone))
		where = append(where, fmt.Sprintf("current_zone = $%d", len(args)))
	}

	q := "SELECT" + accreditationColumns + "\nFROM accreditations"
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []types.Accreditation
	for rows.Next() {
		a, err := scanAccreditation(rows)
		if err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List rows: %w", err)
	}
	rows.Close()

	for i := range out {
		if out[i].Vehicles, err = loadVehicles(ctx, s.pool, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) Movements(ctx context.Context, id string) ([]types.ZoneMovement, error) {
	if err := ensureExists(ctx, s.pool, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, accreditation_id, action, from_zone, to_zone, at
FROM zone_movements
WHERE accreditation_id = $1
ORDER BY at ASC, id ASC`, id)
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
	if err := ensureExists(ctx, s.pool, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, accreditation_id, kind, field, old_value, new_value, actor, at
FROM history_entries
WHERE accreditation_id = $1
ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("History query: %w", err)
	}
	defer rows.Close()

	var out []types.HistoryEntry
	for rows.Next() {
		var (
			e    types.HistoryEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.AccreditationID, &kind, &e.Field, &e.OldValue, &e.NewValue, &e.Actor, &e.At); err != nil {
			return nil, fmt.Errorf("History scan: %w", err)
		}
		e.Kind = types.HistoryKind(kind)
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Occupancy(ctx context.Context) ([]store.OccupancyRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT COALESCE(current_zone, ''), status, COUNT(*)
FROM accreditations
GROUP BY 1, 2
ORDER BY 1, 2`)
	if err != nil {
		return nil, fmt.Errorf("Occupancy query: %w", err)
	}
	defer rows.Close()

	var out []store.OccupancyRow
	for rows.Next() {
		var (
			zone, status string
			n            int64
		)
		if err := rows.Scan(&zone, &status, &n); err != nil {
			return nil, fmt.Errorf("Occupancy scan: %w", err)
		}
		out = append(out, store.OccupancyRow{Zone: types.Zone(zone), Status: types.Status(status), Count: int(n)})
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// tx implements store.Tx on a pgx transaction.
type tx struct {
	tx pgx.Tx
}

func (t *tx) InsertAccreditation(ctx context.Context, a types.Accreditation) error {
	if _, err := t.tx.Exec(ctx, `
INSERT INTO accreditations(`+accreditationColumns+`
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, string(a.Status), zoneArg(a.CurrentZone), a.Version, a.EntryAt, a.ExitAt,
		a.Company, a.Stand, a.Event, a.Message, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("InsertAccreditation: %w", err)
	}
	return replaceVehicles(ctx, t.tx, a.ID, a.Vehicles)
}

func (t *tx) LoadAccreditation(ctx context.Context, id string) (types.Accreditation, error) {
	return loadAccreditation(ctx, t.tx, id)
}

func (t *tx) LastMovement(ctx context.Context, id string) (*types.ZoneMovement, error) {
	m, err := scanMovement(t.tx.QueryRow(ctx, `
SELECT id, accreditation_id, action, from_zone, to_zone, at
FROM zone_movements
WHERE accreditation_id = $1
ORDER BY at DESC, id DESC
LIMIT 1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LastMovement: %w", err)
	}
	return &m, nil
}

func (t *tx) UpdateIfVersion(ctx context.Context, next types.Accreditation, expected int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
UPDATE accreditations SET
  status = $1,
  current_zone = $2,
  version = $3,
  entry_at = $4,
  exit_at = $5,
  company = $6,
  stand = $7,
  event = $8,
  message = $9,
  updated_at = $10
WHERE id = $11 AND version = $12`,
		string(next.Status), zoneArg(next.CurrentZone), expected+1, next.EntryAt, next.ExitAt,
		next.Company, next.Stand, next.Event, next.Message, next.UpdatedAt.UTC(),
		next.ID, expected,
	)
	if err != nil {
		return false, fmt.Errorf("UpdateIfVersion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := replaceVehicles(ctx, t.tx, next.ID, next.Vehicles); err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) AppendMovement(ctx context.Context, m types.ZoneMovement) error {
	if _, err := t.tx.Exec(ctx, `
INSERT INTO zone_movements(accreditation_id, action, from_zone, to_zone, at)
VALUES ($1, $2, $3, $4, $5)`,
		m.AccreditationID, string(m.Action), zoneArg(m.FromZone), string(m.ToZone), m.At.UTC(),
	); err != nil {
		return fmt.Errorf("AppendMovement: %w", err)
	}
	return nil
}

func (t *tx) RecordHistory(ctx context.Context, e types.HistoryEntry) error {
	if _, err := t.tx.Exec(ctx, `
INSERT INTO history_entries(accreditation_id, kind, field, old_value, new_value, actor, at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.AccreditationID, string(e.Kind), e.Field, e.OldValue, e.NewValue, e.Actor, e.At.UTC(),
	); err != nil {
		return fmt.Errorf("RecordHistory: %w", err)
	}
	return nil
}

func replaceVehicles(ctx context.Context, t pgx.Tx, accreditationID string, vs []types.Vehicle) error {
	if _, err := t.Exec(ctx, `DELETE FROM vehicles WHERE accreditation_id = $1`, accreditationID); err != nil {
		return fmt.Errorf("replaceVehicles %s delete: %w", accreditationID, err)
	}
	if len(vs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, v := range vs {
		batch.Queue(`
INSERT INTO vehicles(accreditation_id, position, plate, kind, driver_name, driver_phone)
VALUES ($1, $2, $3, $4, $5, $6)`, accreditationID, i, v.Plate, v.Kind, v.DriverName, v.DriverPhone)
	}
	if err := t.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("replaceVehicles %s insert: %w", accreditationID, err)
	}
	return nil
}

func loadAccreditation(ctx context.Context, q querier, id string) (types.Accreditation, error) {
	a, err := scanAccreditation(q.QueryRow(ctx, "SELECT"+accreditationColumns+"\nFROM accreditations WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Accreditation{}, types.ErrNotFound
	}
	if err != nil {
		return types.Accreditation{}, fmt.Errorf("load accreditation %s: %w", id, err)
	}
	if a.Vehicles, err = loadVehicles(ctx, q, id); err != nil {
		return types.Accreditation{}, err
	}
	return a, nil
}

func loadVehicles(ctx context.Context, q querier, accreditationID string) ([]types.Vehicle, error) {
	rows, err := q.Query(ctx, `
SELECT plate, kind, driver_name, driver_phone
FROM vehicles
WHERE accreditation_id = $1
ORDER BY position ASC`, accreditationID)
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

func ensureExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM accreditations WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup accreditation %s: %w", id, err)
	}
	return nil
}

func scanAccreditation(row pgx.Row) (types.Accreditation, error) {
	var (
		a      types.Accreditation
		status string
		zone   *string
	)
	if err := row.Scan(
		&a.ID, &status, &zone, &a.Version, &a.EntryAt, &a.ExitAt,
		&a.Company, &a.Stand, &a.Event, &a.Message, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return types.Accreditation{}, err
	}
	a.Status = types.Status(status)
	if zone != nil {
		a.CurrentZone = types.ZonePtr(types.Zone(*zone))
	}
	a.EntryAt = utcPtr(a.EntryAt)
	a.ExitAt = utcPtr(a.ExitAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func scanMovement(row pgx.Row) (types.ZoneMovement, error) {
	var (
		m      types.ZoneMovement
		action string
		from   *string
		to     string
	)
	if err := row.Scan(&m.ID, &m.AccreditationID, &action, &from, &to, &m.At); err != nil {
		return types.ZoneMovement{}, err
	}
	m.Action = types.Action(action)
	if from != nil {
		m.FromZone = types.ZonePtr(types.Zone(*from))
	}
	m.ToZone = types.Zone(to)
	m.At = m.At.UTC()
	return m, nil
}

func zoneArg(z *types.Zone) *string {
	if z == nil {
		return nil
	}
	s := string(*z)
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

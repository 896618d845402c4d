package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func loadAccreditation(ctx context.Context, q querier, id string) (types.Accreditation, error) {
	row := q.QueryRowContext(ctx, "SELECT"+accreditationColumns+"\nFROM accreditations WHERE id = ?;", id)

	a, err := scanAccreditation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Accreditation{}, types.ErrNotFound
	}
	if err != nil {
		return types.Accreditation{}, fmt.Errorf("load accreditation %s: %w", id, err)
	}

	a.Vehicles, err = loadVehicles(ctx, q, id)
	if err != nil {
		return types.Accreditation{}, err
	}
	return a, nil
}

func scanAccreditation(sc scanner) (types.Accreditation, error) {
	var (
		a                  types.Accreditation
		status             string
		zone               sql.NullString
		entryMs, exitMs    sql.NullInt64
		createdMs, updated int64
	)
	if err := sc.Scan(
		&a.ID, &status, &zone, &a.Version, &entryMs, &exitMs,
		&a.Company, &a.Stand, &a.Event, &a.Message, &createdMs, &updated,
	); err != nil {
		return types.Accreditation{}, err
	}

	a.Status = types.Status(status)
	if zone.Valid {
		a.CurrentZone = types.ZonePtr(types.Zone(zone.String))
	}
	a.EntryAt = msPtr(entryMs)
	a.ExitAt = msPtr(exitMs)
	a.CreatedAt = fromMs(createdMs)
	a.UpdatedAt = fromMs(updated)
	return a, nil
}

func scanMovement(sc scanner) (types.ZoneMovement, error) {
	var (
		m      types.ZoneMovement
		action string
		from   sql.NullString
		to     string
		atMs   int64
	)
	if err := sc.Scan(&m.ID, &m.AccreditationID, &action, &from, &to, &atMs); err != nil {
		return types.ZoneMovement{}, err
	}
	m.Action = types.Action(action)
	if from.Valid {
		m.FromZone = types.ZonePtr(types.Zone(from.String))
	}
	m.ToZone = types.Zone(to)
	m.At = fromMs(atMs)
	return m, nil
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func msPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}

func nullMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func nullZone(z *types.Zone) any {
	if z == nil {
		return nil
	}
	return string(*z)
}

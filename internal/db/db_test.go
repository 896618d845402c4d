package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Techtrust201/cannes-one-pass/internal/db"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", db.MemoryDSN("test_"+t.Name()))
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx, conn))
	require.NoError(t, db.Migrate(ctx, conn))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrate_MovementsAreAppendOnly(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn))
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{}))

	_, err := conn.ExecContext(ctx, `UPDATE zone_movements SET to_zone = 'MACE'`)
	assert.Error(t, err)

	_, err = conn.ExecContext(ctx, `DELETE FROM zone_movements`)
	assert.Error(t, err)
}

func TestSeedDev_RerunIsNoop(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn))

	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{Zone: "MACE"}))
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{Zone: "MACE"}))

	var movements, vehicles int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM zone_movements`).Scan(&movements))
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&vehicles))
	assert.Equal(t, 1, movements)
	assert.Equal(t, 1, vehicles)
}

func TestWorker_RollsBackOnError(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn))

	w := db.NewWorker(conn)
	defer w.Close()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO accreditations(id, status, created_at_ms, updated_at_ms) VALUES ('x', 'NOUVEAU', 0, 0)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM accreditations`).Scan(&n))
	assert.Zero(t, n)
}

func TestWorker_RecoversPanic(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()

	w := db.NewWorker(conn)
	defer w.Close()

	err := w.Do(ctx, func(context.Context, *sql.Tx) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// Worker is still serving.
	assert.NoError(t, w.Do(ctx, func(context.Context, *sql.Tx) error { return nil }))
}

func TestWorker_DoAfterClose(t *testing.T) {
	conn := openMemoryDB(t)
	w := db.NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, db.ErrWorkerClosed)
}

package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/guard"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/statemachine"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	sqlitestore "github.com/Techtrust201/cannes-one-pass/internal/onepass/store/sqlite"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store/storetest"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

func newStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()
	conn := openTestDB(t)
	return sqlitestore.New(conn, newTestWriter(t, conn)), conn
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newStore(t)
		return s
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// Column encoding
// ═══════════════════════════════════════════════════════════════════════════

func TestSQLiteStore_MillisecondColumns(t *testing.T) {
	s, conn := newStore(t)
	ctx := context.Background()

	a := storetest.NewAccreditation("acc-1", types.StatusEntree)
	storetest.Seed(t, s, a)

	at := storetest.Base.Add(90 * time.Second)
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.AppendMovement(ctx, types.NewEntry("acc-1", nil, types.ZoneLaBocca, at))
	})
	require.NoError(t, err)

	var (
		fromZone sql.NullString
		atMs     int64
	)
	err = conn.QueryRowContext(ctx,
		`SELECT from_zone, at_ms FROM zone_movements WHERE accreditation_id = ?`, "acc-1",
	).Scan(&fromZone, &atMs)
	require.NoError(t, err)

	assert.False(t, fromZone.Valid, "first entry has NULL from_zone")
	assert.Equal(t, at.UnixMilli(), atMs)
}

func TestSQLiteStore_VersionWrittenAsExpectedPlusOne(t *testing.T) {
	s, conn := newStore(t)
	ctx := context.Background()
	storetest.Seed(t, s, storetest.NewAccreditation("acc-1", types.StatusNouveau))

	next := storetest.NewAccreditation("acc-1", types.StatusRefus)
	next.Version = 42
	var ok bool
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ok, err = tx.UpdateIfVersion(ctx, next, 1)
		return err
	})
	require.NoError(t, err)
	require.True(t, ok)

	var v int64
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT version FROM accreditations WHERE id = 'acc-1'`).Scan(&v))
	assert.Equal(t, int64(2), v)
}

func TestSQLiteStore_MovementForUnknownAccreditationFails(t *testing.T) {
	s, _ := newStore(t)

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.AppendMovement(ctx, types.NewEntry("ghost", nil, types.ZoneLaBocca, storetest.Base))
	})
	assert.Error(t, err, "foreign key must reject orphan movements")
}

func TestSQLiteStore_ConcurrentWritersExactlyOneWins(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	storetest.Seed(t, s, storetest.NewAccreditation("acc-1", types.StatusNouveau))

	g := guard.New(s)
	const writers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Apply(ctx, "acc-1", 1, "writer",
				func(cur types.Accreditation, _ *types.ZoneMovement, _ time.Time) (statemachine.Outcome, error) {
					next := cur.Clone()
					next.Status = types.StatusRefus
					return statemachine.Outcome{Next: next, Kind: types.HistoryStatusChange}, nil
				})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, types.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)

	got, err := s.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	hs, err := s.History(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, hs, 1, "only the winner recorded history")
}

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Techtrust201/cannes-one-pass/internal/metrics"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store/memory"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/zone"
)

func TestOccupancyCollector_DisabledWhenIntervalZero(t *testing.T) {
	c := service.NewOccupancyCollector(memory.New(), metrics.New(), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	c.Stop()
}

func TestOccupancyCollector_Collect(t *testing.T) {
	ms := memory.New()
	m := metrics.New()
	svc := service.NewAccreditationService(service.Config{Store: ms, Graph: zone.Default()})
	ctx := context.Background()

	a, err := svc.Create(ctx, "agent", types.CreateRequest{Company: "Acme"})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, "agent", a.ID, types.ChangeStatusRequest{Status: "ATTENTE", Zone: "MACE", Version: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "agent", types.CreateRequest{Company: "Other"})
	require.NoError(t, err)

	c := service.NewOccupancyCollector(ms, m, time.Hour, nil)
	c.Collect(ctx)

	n, err := testutil.GatherAndCount(m.Registry(), "onepass_zone_occupancy")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "MACE/ATTENTE and none/NOUVEAU")
}

func TestOccupancyCollector_StopAfterCancel(t *testing.T) {
	c := service.NewOccupancyCollector(memory.New(), metrics.New(), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
)

func TestActorPolicy(t *testing.T) {
	ctx := context.Background()

	open := service.NewActorPolicy(true, nil)
	assert.True(t, open.Allow(ctx, "anyone", service.OpTransfer))

	closed := service.NewActorPolicy(false, []string{" agent-1 ", "", "gate-2"})
	assert.Len(t, closed.AllowedActors, 2)
	assert.True(t, closed.Allow(ctx, "agent-1", service.OpCreate))
	assert.True(t, closed.Allow(ctx, "gate-2", service.OpZoneAction))
	assert.False(t, closed.Allow(ctx, "anonymous", service.OpChangeStatus))
	assert.False(t, closed.Allow(ctx, "", service.OpChangeStatus))

	var zero service.ActorPolicy
	assert.False(t, zero.Allow(ctx, "agent-1", service.OpCreate))
}

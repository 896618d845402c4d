package service

import (
	"context"
	"strings"
)

// Operation names a mutating action submitted to the Gate.
type Operation string

const (
	OpCreate       Operation = "create"
	OpChangeStatus Operation = "change_status"
	OpZoneAction   Operation = "zone_action"
	OpTransfer     Operation = "transfer"
)

// Gate is the external authorization check. It only answers yes or no;
// who the actor is has already been established upstream.
type Gate interface {
	Allow(ctx context.Context, actor string, op Operation) bool
}

// ActorPolicy allows every actor when AllowAll is set, otherwise only the
// actors listed in AllowedActors.
type ActorPolicy struct {
	AllowAll      bool
	AllowedActors map[string]struct{}
}

// NewActorPolicy builds a policy from a list of actor names. Blank names
// are ignored.
func NewActorPolicy(allowAll bool, actors []string) ActorPolicy {
	p := ActorPolicy{AllowAll: allowAll, AllowedActors: make(map[string]struct{}, len(actors))}
	for _, a := range actors {
		if a = strings.TrimSpace(a); a != "" {
			p.AllowedActors[a] = struct{}{}
		}
	}
	return p
}

func (p ActorPolicy) Allow(_ context.Context, actor string, _ Operation) bool {
	if p.AllowAll {
		return true
	}
	_, ok := p.AllowedActors[strings.TrimSpace(actor)]
	return ok
}

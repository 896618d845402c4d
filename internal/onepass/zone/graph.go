// Package zone holds the static site topology: which zones exist, which one
// is the final destination, and where a vehicle may be transferred next.
package zone

import (
	"fmt"
	"slices"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// Graph is immutable after construction and safe for concurrent use.
type Graph struct {
	order   []types.Zone
	final   types.Zone
	targets map[types.Zone][]types.Zone
}

// Default is the Cannes site layout: vehicles wait at La Bocca or one of the
// satellite lots and finish at the Palais des Festivals.
func Default() *Graph {
	g, err := New(types.ZonePalaisDesFestivals, []Edge{
		{From: types.ZoneLaBocca, To: []types.Zone{types.ZonePantiero, types.ZoneMace, types.ZonePalmBeach, types.ZonePalaisDesFestivals}},
		{From: types.ZonePantiero, To: []types.Zone{types.ZoneLaBocca, types.ZonePalaisDesFestivals}},
		{From: types.ZoneMace, To: []types.Zone{types.ZoneLaBocca, types.ZonePalaisDesFestivals}},
		{From: types.ZonePalmBeach, To: []types.Zone{types.ZoneLaBocca, types.ZonePalaisDesFestivals}},
		{From: types.ZonePalaisDesFestivals},
	})
	if err != nil {
		panic(err)
	}
	return g
}

// Edge lists the transfer targets of one zone.
type Edge struct {
	From types.Zone
	To   []types.Zone
}

// New validates the table and builds a Graph. Every zone must appear as an
// Edge.From exactly once; final must be one of them.
func New(final types.Zone, edges []Edge) (*Graph, error) {
	g := &Graph{
		final:   final,
		targets: make(map[types.Zone][]types.Zone, len(edges)),
	}

	for _, e := range edges {
		if e.From == "" {
			return nil, fmt.Errorf("zone graph: empty zone name")
		}
		if _, dup := g.targets[e.From]; dup {
			return nil, fmt.Errorf("zone graph: zone %s declared twice", e.From)
		}
		g.order = append(g.order, e.From)
		g.targets[e.From] = slices.Clone(e.To)
	}

	if _, ok := g.targets[final]; !ok {
		return nil, fmt.Errorf("zone graph: final destination %s is not a declared zone", final)
	}

	for from, to := range g.targets {
		if from == final {
			if len(to) > 0 {
				return nil, fmt.Errorf("zone graph: final destination %s cannot have transfer targets", final)
			}
			continue
		}
		seen := make(map[types.Zone]struct{}, len(to))
		hasFinal := false
		for _, z := range to {
			if z == from {
				return nil, fmt.Errorf("zone graph: %s lists itself as a transfer target", from)
			}
			if _, ok := g.targets[z]; !ok {
				return nil, fmt.Errorf("zone graph: %s lists unknown target %s", from, z)
			}
			if _, dup := seen[z]; dup {
				return nil, fmt.Errorf("zone graph: %s lists %s twice", from, z)
			}
			seen[z] = struct{}{}
			if z == final {
				hasFinal = true
			}
		}
		if !hasFinal {
			return nil, fmt.Errorf("zone graph: %s must list final destination %s", from, final)
		}
	}

	return g, nil
}

// AllZones returns every zone in declaration order.
func (g *Graph) AllZones() []types.Zone {
	return slices.Clone(g.order)
}

func (g *Graph) Final() types.Zone { return g.final }

func (g *Graph) Valid(z types.Zone) bool {
	_, ok := g.targets[z]
	return ok
}

func (g *Graph) IsFinalDestination(z types.Zone) bool {
	return z == g.final
}

// TransferTargets returns the zones reachable from z. It is empty for the
// final destination and for unknown zones.
func (g *Graph) TransferTargets(z types.Zone) []types.Zone {
	if z == g.final {
		return []types.Zone{}
	}
	return slices.Clone(g.targets[z])
}

// CanTransfer reports whether to is a legal transfer target of from.
func (g *Graph) CanTransfer(from, to types.Zone) bool {
	return slices.Contains(g.TransferTargets(from), to)
}

// Describe lists every zone with its targets, for display.
func (g *Graph) Describe() []types.ZoneInfo {
	out := make([]types.ZoneInfo, 0, len(g.order))
	for _, z := range g.order {
		out = append(out, types.ZoneInfo{
			Zone:            z,
			Final:           z == g.final,
			TransferTargets: g.TransferTargets(z),
		})
	}
	return out
}

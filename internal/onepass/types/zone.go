package types

import (
	"fmt"
	"strings"
)

// Zone identifies a physical waiting or processing area of the site.
// Which values are legal is decided by the zone graph.
type Zone string

const (
	ZoneLaBocca            Zone = "LA_BOCCA"
	ZonePantiero           Zone = "PANTIERO"
	ZoneMace               Zone = "MACE"
	ZonePalmBeach          Zone = "PALM_BEACH"
	ZonePalaisDesFestivals Zone = "PALAIS_DES_FESTIVALS"
)

// NormalizeZone upper-cases and trims v. It does not check legality.
func NormalizeZone(v string) Zone {
	return Zone(strings.ToUpper(strings.TrimSpace(v)))
}

// ZonePtr is a small helper for optional zone fields.
func ZonePtr(z Zone) *Zone { return &z }

// ZoneString renders an optional zone, empty when nil.
func ZoneString(z *Zone) string {
	if z == nil {
		return ""
	}
	return string(*z)
}

// Action is the kind of a zone movement.
type Action string

const (
	ActionEntry Action = "ENTRY"
	ActionExit  Action = "EXIT"
)

func ParseAction(v string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(v)))
	if a != ActionEntry && a != ActionExit {
		return "", fmt.Errorf("%w: action must be ENTRY or EXIT, got %q", ErrInvalidInput, v)
	}
	return a, nil
}

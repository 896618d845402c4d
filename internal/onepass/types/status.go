package types

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an accreditation.
type Status string

const (
	StatusNouveau Status = "NOUVEAU"
	StatusAttente Status = "ATTENTE"
	StatusEntree  Status = "ENTREE"
	StatusSortie  Status = "SORTIE"
	StatusRefus   Status = "REFUS"
	StatusAbsent  Status = "ABSENT"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusNouveau, StatusAttente, StatusEntree, StatusSortie, StatusRefus, StatusAbsent}
}

func (s Status) Valid() bool {
	switch s {
	case StatusNouveau, StatusAttente, StatusEntree, StatusSortie, StatusRefus, StatusAbsent:
		return true
	}
	return false
}

// Terminal reports whether no transition can ever leave s.
func (s Status) Terminal() bool {
	return s == StatusRefus || s == StatusAbsent
}

// ParseStatus accepts the canonical upper-case names, ignoring surrounding
// whitespace and case.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

package types

import "time"

// Accreditation is a vehicle delivery request and its progress through the
// site.
type Accreditation struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	CurrentZone *Zone      `json:"current_zone,omitempty"`
	Version     int64      `json:"version"`
	EntryAt     *time.Time `json:"entry_at,omitempty"`
	ExitAt      *time.Time `json:"exit_at,omitempty"`

	Company string `json:"company"`
	Stand   string `json:"stand"`
	Event   string `json:"event"`
	Message string `json:"message"`

	Vehicles []Vehicle `json:"vehicles"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so planners can mutate freely.
func (a Accreditation) Clone() Accreditation {
	out := a
	if a.CurrentZone != nil {
		z := *a.CurrentZone
		out.CurrentZone = &z
	}
	if a.EntryAt != nil {
		t := *a.EntryAt
		out.EntryAt = &t
	}
	if a.ExitAt != nil {
		t := *a.ExitAt
		out.ExitAt = &t
	}
	out.Vehicles = append([]Vehicle(nil), a.Vehicles...)
	return out
}

// HasZone reports whether a waiting zone has been assigned.
func (a Accreditation) HasZone() bool { return a.CurrentZone != nil }

type Vehicle struct {
	Plate       string `json:"plate"`
	Kind        string `json:"kind,omitempty"`
	DriverName  string `json:"driver_name,omitempty"`
	DriverPhone string `json:"driver_phone,omitempty"`
}

// Fields holds the descriptive attributes edited directly by agents. Nil
// members are left untouched.
type Fields struct {
	Company  *string    `json:"company,omitempty"`
	Stand    *string    `json:"stand,omitempty"`
	Event    *string    `json:"event,omitempty"`
	Message  *string    `json:"message,omitempty"`
	Vehicles *[]Vehicle `json:"vehicles,omitempty"`
}

// Empty reports whether no descriptive field is set.
func (f Fields) Empty() bool {
	return f.Company == nil && f.Stand == nil && f.Event == nil && f.Message == nil && f.Vehicles == nil
}

// ApplyTo copies every set field onto a.
func (f Fields) ApplyTo(a *Accreditation) {
	if f.Company != nil {
		a.Company = *f.Company
	}
	if f.Stand != nil {
		a.Stand = *f.Stand
	}
	if f.Event != nil {
		a.Event = *f.Event
	}
	if f.Message != nil {
		a.Message = *f.Message
	}
	if f.Vehicles != nil {
		a.Vehicles = append([]Vehicle(nil), (*f.Vehicles)...)
	}
}

package types

// Wire types shared by the HTTP layer and the service.

type CreateRequest struct {
	// Status is NOUVEAU (default) or ATTENTE for staff-created requests.
	Status   string    `json:"status,omitempty"`
	Company  string    `json:"company"`
	Stand    string    `json:"stand"`
	Event    string    `json:"event"`
	Message  string    `json:"message"`
	Vehicles []Vehicle `json:"vehicles"`
}

type ChangeStatusRequest struct {
	Status  string `json:"status"`
	Zone    string `json:"zone,omitempty"`
	Version int64  `json:"version"`
	Fields
}

type ZoneActionRequest struct {
	Action  string `json:"action"`
	Zone    string `json:"zone"`
	Version int64  `json:"version"`
}

type TransferRequest struct {
	TargetZone string `json:"target_zone"`
	Version    int64  `json:"version"`
}

type ListFilter struct {
	Status Status
	Zone   Zone
	Limit  int
}

type ZoneInfo struct {
	Zone            Zone   `json:"zone" yaml:"zone"`
	Final           bool   `json:"final" yaml:"final"`
	TransferTargets []Zone `json:"transfer_targets" yaml:"transfer_targets"`
}

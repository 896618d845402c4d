package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Techtrust201/cannes-one-pass/internal/metrics"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/guard"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/statemachine"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/timeslot"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/zone"
)

const defaultListLimit = 100

// Config wires an AccreditationService. Store and Graph are required; every
// other member has a usable zero value.
type Config struct {
	Store    store.Store
	Graph    *zone.Graph
	Gate     Gate
	Location *time.Location
	Clock    func() time.Time
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

type AccreditationService struct {
	store   store.Store
	graph   *zone.Graph
	machine *statemachine.Machine
	guard   *guard.Guard
	gate    Gate
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewAccreditationService(cfg Config) *AccreditationService {
	if cfg.Graph == nil {
		cfg.Graph = zone.Default()
	}
	if cfg.Gate == nil {
		cfg.Gate = ActorPolicy{AllowAll: true}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &AccreditationService{
		store:   cfg.Store,
		graph:   cfg.Graph,
		machine: statemachine.New(cfg.Graph),
		guard:   guard.New(cfg.Store, guard.WithClock(cfg.Clock)),
		gate:    cfg.Gate,
		loc:     cfg.Location,
		now:     cfg.Clock,
		logger:  cfg.Logger.With("component", "accreditations"),
		metrics: cfg.Metrics,
	}
}

func (s *AccreditationService) Graph() *zone.Graph { return s.graph }

func (s *AccreditationService) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// Create registers a new request. Requests start in NOUVEAU unless staff
// create them directly in ATTENTE; either way without a zone.
func (s *AccreditationService) Create(ctx context.Context, actor string, req types.CreateRequest) (a types.Accreditation, err error) {
	defer func() { s.observe(OpCreate, a, err) }()

	status := types.StatusNouveau
	if strings.TrimSpace(req.Status) != "" {
		if status, err = types.ParseStatus(req.Status); err != nil {
			return types.Accreditation{}, err
		}
		if status != types.StatusNouveau && status != types.StatusAttente {
			return types.Accreditation{}, fmt.Errorf("%w: new requests start in NOUVEAU or ATTENTE, not %s",
				types.ErrInvalidStatus, status)
		}
	}
	vehicles, err := cleanVehicles(req.Vehicles)
	if err != nil {
		return types.Accreditation{}, err
	}
	if err := s.authorize(ctx, actor, OpCreate); err != nil {
		return types.Accreditation{}, err
	}

	return s.guard.Create(ctx, types.Accreditation{
		ID:       uuid.NewString(),
		Status:   status,
		Company:  strings.TrimSpace(req.Company),
		Stand:    strings.TrimSpace(req.Stand),
		Event:    strings.TrimSpace(req.Event),
		Message:  req.Message,
		Vehicles: vehicles,
	}, actor)
}

func (s *AccreditationService) Get(ctx context.Context, id string) (types.Accreditation, error) {
	return s.store.Get(ctx, id)
}

func (s *AccreditationService) List(ctx context.Context, f types.ListFilter) ([]types.Accreditation, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidStatus, f.Status)
	}
	if f.Zone != "" && !s.graph.Valid(f.Zone) {
		return nil, &types.ZoneError{Zone: f.Zone, Reason: "unknown zone"}
	}
	if f.Limit <= 0 || f.Limit > defaultListLimit {
		f.Limit = defaultListLimit
	}
	return s.store.List(ctx, f)
}

// ChangeStatus moves an accreditation to a new status, optionally assigning
// a zone and saving descriptive fields in the same version step.
func (s *AccreditationService) ChangeStatus(ctx context.Context, actor, id string, req types.ChangeStatusRequest) (a types.Accreditation, err error) {
	defer func() { s.observe(OpChangeStatus, a, err) }()

	change, err := ParseChange(req)
	if err != nil {
		return types.Accreditation{}, err
	}
	if err := s.authorize(ctx, actor, OpChangeStatus); err != nil {
		return types.Accreditation{}, err
	}

	res, err := s.guard.Apply(ctx, id, req.Version, actor,
		func(cur types.Accreditation, last *types.ZoneMovement, now time.Time) (statemachine.Outcome, error) {
			return s.machine.ChangeStatus(cur, last, change, now)
		})
	return res.Accreditation, err
}

// ZoneAction records a vehicle entering or leaving a zone.
func (s *AccreditationService) ZoneAction(ctx context.Context, actor, id string, req types.ZoneActionRequest) (a types.Accreditation, err error) {
	defer func() { s.observe(OpZoneAction, a, err) }()

	action, err := types.ParseAction(req.Action)
	if err != nil {
		return types.Accreditation{}, err
	}
	z := types.NormalizeZone(req.Zone)
	if err := s.authorize(ctx, actor, OpZoneAction); err != nil {
		return types.Accreditation{}, err
	}

	res, err := s.guard.Apply(ctx, id, req.Version, actor,
		func(cur types.Accreditation, last *types.ZoneMovement, now time.Time) (statemachine.Outcome, error) {
			return s.machine.ZoneAction(cur, last, action, z, now)
		})
	return res.Accreditation, err
}

// Transfer sends a vehicle that just left its zone on to target.
func (s *AccreditationService) Transfer(ctx context.Context, actor, id string, req types.TransferRequest) (a types.Accreditation, err error) {
	defer func() { s.observe(OpTransfer, a, err) }()

	target := types.NormalizeZone(req.TargetZone)
	if err := s.authorize(ctx, actor, OpTransfer); err != nil {
		return types.Accreditation{}, err
	}

	res, err := s.guard.Apply(ctx, id, req.Version, actor,
		func(cur types.Accreditation, _ *types.ZoneMovement, now time.Time) (statemachine.Outcome, error) {
			return s.machine.Transfer(cur, target, now)
		})
	return res.Accreditation, err
}

// TimeSlots recomputes the occupancy report of id from its movement log.
func (s *AccreditationService) TimeSlots(ctx context.Context, id string) (timeslot.Report, error) {
	ms, err := s.store.Movements(ctx, id)
	if err != nil {
		return timeslot.Report{}, err
	}
	report := timeslot.Aggregate(ms, s.loc, s.now())
	for _, w := range report.Warnings {
		s.logger.Warn("movement log anomaly", "id", id, "at", w.At, "warning", w.Message)
	}
	return report, nil
}

func (s *AccreditationService) Movements(ctx context.Context, id string) ([]types.ZoneMovement, error) {
	return s.store.Movements(ctx, id)
}

func (s *AccreditationService) History(ctx context.Context, id string) ([]types.HistoryEntry, error) {
	return s.store.History(ctx, id)
}

func (s *AccreditationService) Zones() []types.ZoneInfo {
	return s.graph.Describe()
}

// ParseChange validates the wire form of a status change.
func ParseChange(req types.ChangeStatusRequest) (statemachine.ChangeRequest, error) {
	status, err := types.ParseStatus(req.Status)
	if err != nil {
		return statemachine.ChangeRequest{}, err
	}
	change := statemachine.ChangeRequest{Status: status, Fields: req.Fields}
	if z := types.NormalizeZone(req.Zone); z != "" {
		change.Zone = &z
	}
	if req.Fields.Vehicles != nil {
		vs, err := cleanVehicles(*req.Fields.Vehicles)
		if err != nil {
			return statemachine.ChangeRequest{}, err
		}
		change.Fields.Vehicles = &vs
	}
	return change, nil
}

// Unchanged reports whether applying change to cur would alter nothing.
func Unchanged(cur types.Accreditation, change statemachine.ChangeRequest) bool {
	if change.Status != cur.Status {
		return false
	}
	if change.Zone != nil && (cur.CurrentZone == nil || *change.Zone != *cur.CurrentZone) {
		return false
	}
	next := cur.Clone()
	change.Fields.ApplyTo(&next)
	return next.Company == cur.Company &&
		next.Stand == cur.Stand &&
		next.Event == cur.Event &&
		next.Message == cur.Message &&
		sameVehicles(next.Vehicles, cur.Vehicles)
}

func (s *AccreditationService) authorize(ctx context.Context, actor string, op Operation) error {
	if s.gate.Allow(ctx, actor, op) {
		return nil
	}
	return fmt.Errorf("%w: %s may not %s", types.ErrForbidden, actor, op)
}

func (s *AccreditationService) observe(op Operation, a types.Accreditation, err error) {
	s.metrics.ObserveMutation(string(op), err)

	var conflict *types.ConflictError
	switch {
	case err == nil:
		s.logger.Info("accreditation updated", "op", op, "id", a.ID,
			"status", a.Status, "zone", types.ZoneString(a.CurrentZone), "version", a.Version)
	case errors.As(err, &conflict):
		s.logger.Info("version conflict", "op", op, "id", conflict.ID,
			"expected", conflict.Expected, "actual", conflict.Actual)
	case isClientError(err):
		s.logger.Debug("mutation rejected", "op", op, "err", err)
	default:
		s.logger.Error("mutation failed", "op", op, "err", err)
	}
}

func isClientError(err error) bool {
	for _, target := range []error{
		types.ErrNotFound, types.ErrInvalidTransition, types.ErrInvalidZone,
		types.ErrInvalidStatus, types.ErrInvalidInput, types.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func cleanVehicles(in []types.Vehicle) ([]types.Vehicle, error) {
	out := make([]types.Vehicle, 0, len(in))
	for i, v := range in {
		v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
		if v.Plate == "" {
			return nil, fmt.Errorf("%w: vehicle %d has no plate", types.ErrInvalidInput, i+1)
		}
		v.Kind = strings.TrimSpace(v.Kind)
		v.DriverName = strings.TrimSpace(v.DriverName)
		v.DriverPhone = strings.TrimSpace(v.DriverPhone)
		out = append(out, v)
	}
	return out, nil
}

func sameVehicles(a, b []types.Vehicle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

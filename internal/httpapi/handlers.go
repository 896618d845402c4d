package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

const anonymousActor = "anonymous"

// actor is the identity established upstream, passed through X-Actor.
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get("X-Actor")); a != "" {
		return a
	}
	return anonymousActor
}

// decodeJSON writes a 400 and returns false when the body is not a valid
// JSON object of the expected shape.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := s.svc.Create(r.Context(), actor(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/accreditations/"+a.ID)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f types.ListFilter
	if v := q.Get("status"); v != "" {
		st, err := types.ParseStatus(v)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		f.Status = st
	}
	f.Zone = types.NormalizeZone(q.Get("zone"))
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	list, err := s.svc.List(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []types.Accreditation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleChangeStatus answers a PATCH that would change nothing with the
// current record and no new version.
func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req types.ChangeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.PathValue("id")

	change, err := service.ParseChange(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	cur, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if cur.Version == req.Version && service.Unchanged(cur, change) {
		writeJSON(w, http.StatusOK, cur)
		return
	}

	a, err := s.svc.ChangeStatus(r.Context(), actor(r), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleZoneAction(w http.ResponseWriter, r *http.Request) {
	var req types.ZoneActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := s.svc.ZoneAction(r.Context(), actor(r), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req types.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := s.svc.Transfer(r.Context(), actor(r), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleTimeSlots(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.TimeSlots(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if wantsProtobuf(r) {
		msg, err := toStruct(report)
		if err != nil {
			s.writeServiceError(w, r, fmt.Errorf("encode time slots: %w", err))
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMovements(w http.ResponseWriter, r *http.Request) {
	ms, err := s.svc.Movements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if ms == nil {
		ms = []types.ZoneMovement{}
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hs, err := s.svc.History(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if hs == nil {
		hs = []types.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, hs)
}

type zonesResponse struct {
	Final types.Zone       `json:"final"`
	Zones []types.ZoneInfo `json:"zones"`
}

func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, zonesResponse{
		Final: s.svc.Graph().Final(),
		Zones: s.svc.Zones(),
	})
}

type healthResponse struct {
	Status         string `json:"status"`
	Storage        string `json:"storage"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.svc.Ping(r.Context())
	resp := healthResponse{
		Status:         "ok",
		Storage:        "up",
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Status = "degraded"
		resp.Storage = "down"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

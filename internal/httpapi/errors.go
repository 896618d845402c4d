package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// CurrentVersion is set on version conflicts so clients can reload.
	CurrentVersion *int64 `json:"current_version,omitempty"`
}

// errorStatus maps domain sentinels to HTTP status and error code. Order
// matters only for errors wrapping several sentinels.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{types.ErrNotFound, http.StatusNotFound, "not_found"},
	{types.ErrConflict, http.StatusConflict, "version_conflict"},
	{types.ErrForbidden, http.StatusForbidden, "forbidden"},
	{types.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{types.ErrInvalidZone, http.StatusBadRequest, "invalid_zone"},
	{types.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{types.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// writeServiceError renders a service error, logging anything unexpected.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *types.ConflictError
	if errors.As(err, &conflict) {
		resp := errorResponse{Error: "version_conflict", Message: err.Error()}
		if conflict.Actual > 0 {
			resp.CurrentVersion = &conflict.Actual
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.code, err.Error())
			return
		}
	}

	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

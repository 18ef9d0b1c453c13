package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/bridges/fujitsu"
	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/history"
)

// controlTimeout bounds a control request from the API. The bridge's own
// lock timeout normally fires first.
const controlTimeout = 5 * time.Second

// ClimateResponse is returned by GET /climate.
type ClimateResponse struct {
	BridgeID string        `json:"bridge_id"`
	State    climate.State `json:"state"`
}

// ControlResponse is returned by an accepted PUT /climate.
type ControlResponse struct {
	BridgeID string        `json:"bridge_id"`
	Status   string        `json:"status"`
	Desired  climate.State `json:"desired"`
}

// handleGetClimate returns the last reconciled climate state.
func (s *Server) handleGetClimate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ClimateResponse{
		BridgeID: s.bridge.ID(),
		State:    s.bridge.State(),
	})
}

// handleGetTraits returns the climate entity capabilities.
func (s *Server) handleGetTraits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Traits())
}

// handleSetClimate applies a control request.
//
// The body uses the same fields as an MQTT set command:
//
//	{"mode": "heat", "target_temperature": 21, "preset": "eco", "fan_mode": "low"}
//
// The request is accepted once it is queued for the protocol pump; the
// reported state follows on a later reconciliation.
func (s *Server) handleSetClimate(w http.ResponseWriter, r *http.Request) {
	var params fujitsu.CommandParameters
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	req, err := params.ToRequest()
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()

	err = s.bridge.Control(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, climate.ErrInvalidRequest):
		writeValidationError(w, err.Error())
		return
	case errors.Is(err, climate.ErrLockTimeout):
		writeUnavailable(w, ErrCodeLockTimeout, "heat pump state busy, retry")
		return
	default:
		s.logger.Error("control request failed", "error", err)
		writeInternalError(w, "control request failed")
		return
	}

	s.logger.Info("control request accepted",
		"bridge_id", s.bridge.ID(),
		"subject", r.Context().Value(ctxKeySubject),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	writeJSON(w, http.StatusAccepted, ControlResponse{
		BridgeID: s.bridge.ID(),
		Status:   string(fujitsu.AckAccepted),
		Desired:  overlay(s.bridge.State(), req),
	})
}

// overlay applies the set fields of req to state.
func overlay(state climate.State, req climate.Request) climate.State {
	if req.Mode != nil {
		state.Mode = *req.Mode
	}
	if req.TargetTemperature != nil {
		state.TargetTemperature = *req.TargetTemperature
	}
	if req.Preset != nil {
		state.Preset = *req.Preset
	}
	if req.FanMode != nil {
		state.FanMode = *req.FanMode
	}
	return state
}

// handleGetHistory returns recorded states, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, ErrCodeUnavailable, "state history unavailable")
		return
	}

	entries, err := s.history.List(r.Context(), s.bridge.ID(), limit)
	if err != nil {
		s.logger.Error("loading climate history failed", "error", err)
		writeInternalError(w, "failed to load climate history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bridge_id": s.bridge.ID(),
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter. Values above the
// store maximum are clamped.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return history.DefaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	return history.ClampLimit(limit), nil
}

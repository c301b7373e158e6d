package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sunbridge/sunbridge/pkg/log"
)

type forceChargingRequest struct {
	Enabled bool `json:"enabled"`
	// LimitW overrides the configured default charging limit when nonzero.
	LimitW int `json:"limitW,omitempty"`
}

func (s *Server) handleForceCharging(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req forceChargingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid command body", http.StatusBadRequest)
		return
	}

	if err := s.device.SetForceCharging(ctx, req.Enabled, req.LimitW); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "force charging command failed",
			slog.Bool("enabled", req.Enabled), slog.Any("error", err))
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}

	writeJSON(w, struct {
		Enabled bool `json:"enabled"`
	}{Enabled: req.Enabled})
}

type dischargeBlockRequest struct {
	Blocked bool `json:"blocked"`
}

func (s *Server) handleDischargeBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dischargeBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid command body", http.StatusBadRequest)
		return
	}

	if err := s.device.SetDischargeBlocked(ctx, req.Blocked); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "discharge block command failed",
			slog.Bool("blocked", req.Blocked), slog.Any("error", err))
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}

	writeJSON(w, struct {
		Blocked bool `json:"blocked"`
	}{Blocked: req.Blocked})
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/types"
)

type settingsResponse struct {
	types.Settings
	Version int `json:"version"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, version := s.device.Settings()
	writeJSON(w, settingsResponse{Settings: settings, Version: version})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var settings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSONError(w, "invalid settings body", http.StatusBadRequest)
		return
	}

	if err := s.device.ApplySettings(ctx, settings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to apply settings", slog.Any("error", err))
		writeJSONError(w, err.Error(), errorStatus(err))
		return
	}

	applied, version := s.device.Settings()
	writeJSON(w, settingsResponse{Settings: applied, Version: version})
}

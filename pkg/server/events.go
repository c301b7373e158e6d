package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sunbridge/sunbridge/pkg/types"
)

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	events := s.device.RecentEvents()
	if events == nil {
		events = []types.Event{}
	}
	writeJSON(w, events)
}

// handleEventHistory reads persisted events in a time range. Both bounds are
// RFC3339; a missing start means the beginning of time and a missing end
// means now.
func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start := time.Time{}
	end := time.Now()
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid end", http.StatusBadRequest)
			return
		}
	}

	events, err := s.storage.GetEventHistory(ctx, s.device.DeviceID(), start, end)
	if err != nil {
		writeJSONError(w, "failed to read event history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	writeJSON(w, events)
}

type batteryLevelTriggerRequest struct {
	Target float64             `json:"target"`
	Mode   types.ThresholdMode `json:"mode"`
}

func (s *Server) handleAddBatteryLevelTrigger(w http.ResponseWriter, r *http.Request) {
	var req batteryLevelTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid trigger body", http.StatusBadRequest)
		return
	}
	if req.Target < 0 || req.Target > 100 {
		writeJSONError(w, "target must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if req.Mode != types.ThresholdAbove && req.Mode != types.ThresholdBelow {
		writeJSONError(w, "mode must be above or below", http.StatusBadRequest)
		return
	}

	s.device.AddBatteryLevelTrigger(req.Target, req.Mode)
	w.WriteHeader(http.StatusNoContent)
}

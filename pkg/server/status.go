package server

import (
	"net/http"
	"time"

	"github.com/sunbridge/sunbridge/pkg/poller"
	"github.com/sunbridge/sunbridge/pkg/types"
)

type pollerStatus struct {
	NominalSeconds    float64    `json:"nominalSeconds"`
	ConsecutiveErrors int        `json:"consecutiveErrors"`
	LastSuccess       *time.Time `json:"lastSuccess,omitempty"`
}

type statusResponse struct {
	DeviceID string                    `json:"deviceID"`
	Channels map[types.Channel]float64 `json:"channels"`
	Grid     pollerStatus              `json:"grid"`
	Battery  pollerStatus              `json:"battery"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	grid, battery := s.device.PollerStates()
	writeJSON(w, statusResponse{
		DeviceID: s.device.DeviceID(),
		Channels: s.device.Snapshot(),
		Grid:     toPollerStatus(grid),
		Battery:  toPollerStatus(battery),
	})
}

func toPollerStatus(st poller.State) pollerStatus {
	out := pollerStatus{
		NominalSeconds:    st.Nominal.Seconds(),
		ConsecutiveErrors: st.ConsecutiveErrors,
	}
	if !st.LastSuccess.IsZero() {
		t := st.LastSuccess
		out.LastSuccess = &t
	}
	return out
}

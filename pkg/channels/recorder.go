package channels

import (
	"context"
	"sync"

	"github.com/sunbridge/sunbridge/pkg/types"
)

// Recorder is a Sink keeping the most recent events in memory for the local
// API to expose without a database round trip.
type Recorder struct {
	mu     sync.Mutex
	events []types.Event
	max    int
}

func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 100
	}
	return &Recorder{max: max}
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Emit(ctx context.Context, event types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if len(r.events) > r.max {
		r.events = r.events[len(r.events)-r.max:]
	}
}

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

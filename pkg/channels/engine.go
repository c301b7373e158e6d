package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/storage"
	"github.com/sunbridge/sunbridge/pkg/types"
)

// Sink receives events the engine emits. Sinks must not block; the engine
// calls them inline on the publishing goroutine.
type Sink interface {
	Emit(ctx context.Context, event types.Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event types.Event)

func (f SinkFunc) Emit(ctx context.Context, event types.Event) { f(ctx, event) }

// Update is one proposed channel value.
type Update struct {
	Channel types.Channel
	Value   float64
}

type levelTrigger struct {
	channel types.Channel
	target  float64
	mode    types.ThresholdMode
}

// Engine holds the last known value per channel and turns incoming samples
// into changes: a value is written and an event emitted only when it
// actually differs from the previous one. Republishing an identical sample
// is a no-op, so poll cycles are idempotent.
type Engine struct {
	db       storage.Database
	deviceID string

	mu       sync.Mutex
	snapshot types.Snapshot
	triggers []levelTrigger
	sinks    []Sink
}

func NewEngine(db storage.Database, deviceID string) *Engine {
	return &Engine{
		db:       db,
		deviceID: deviceID,
		snapshot: types.Snapshot{},
	}
}

// Restore loads the persisted snapshot so changes are computed against the
// values from before a restart instead of firing spuriously from zero.
func (e *Engine) Restore(ctx context.Context) error {
	snap, err := e.db.GetSnapshot(ctx, e.deviceID)
	if err != nil {
		return fmt.Errorf("restoring channel snapshot: %w", err)
	}
	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()
	log.Ctx(ctx).DebugContext(ctx, "restored channel snapshot", slog.Int("channels", len(snap)))
	return nil
}

// AddSink registers a sink for all future events.
func (e *Engine) AddSink(s Sink) {
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

// AddLevelTrigger registers a threshold on a channel. When a published value
// crosses the target in the given direction the engine emits a
// battery_level_changed event alongside the regular change handling.
func (e *Engine) AddLevelTrigger(channel types.Channel, target float64, mode types.ThresholdMode) {
	e.mu.Lock()
	e.triggers = append(e.triggers, levelTrigger{channel: channel, target: target, mode: mode})
	e.mu.Unlock()
}

// Snapshot returns a copy of the current channel values.
func (e *Engine) Snapshot() types.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Clone()
}

// Value returns the current value of one channel, zero if never set.
func (e *Engine) Value(c types.Channel) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Value(c)
}

// Publish applies a batch of updates one channel at a time. Each channel
// succeeds or fails on its own; the returned map holds an entry per failed
// channel and is empty on full success. A channel updates in a fixed order:
// validate, persist, then update memory and emit events, so a write failure
// leaves the in-memory value untouched and the change fires again next
// cycle.
func (e *Engine) Publish(ctx context.Context, updates []Update) map[types.Channel]error {
	failed := map[types.Channel]error{}
	for _, u := range updates {
		if err := e.publishOne(ctx, u); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "channel update failed",
				slog.String("channel", string(u.Channel)),
				slog.Float64("value", u.Value),
				slog.Any("error", err),
			)
			failed[u.Channel] = err
		}
	}
	return failed
}

func (e *Engine) publishOne(ctx context.Context, u Update) error {
	if !types.ValidChannelValue(u.Channel, u.Value) {
		return fmt.Errorf("%w: %s=%v", types.ErrValidationFailed, u.Channel, u.Value)
	}

	// a channel never seen reads as zero, so the first zero sample on a
	// fresh device is not a change
	e.mu.Lock()
	prev := e.snapshot.Value(u.Channel)
	e.mu.Unlock()

	if prev == u.Value {
		return nil
	}

	if err := e.db.SetChannelValue(ctx, e.deviceID, u.Channel, u.Value); err != nil {
		return err
	}

	e.mu.Lock()
	e.snapshot[u.Channel] = u.Value
	triggers := make([]levelTrigger, len(e.triggers))
	copy(triggers, e.triggers)
	e.mu.Unlock()

	log.Ctx(ctx).DebugContext(ctx, "channel changed",
		slog.String("channel", string(u.Channel)),
		slog.Float64("old", prev),
		slog.Float64("new", u.Value),
	)

	for _, ev := range e.eventsFor(u.Channel, prev, u.Value, triggers) {
		e.emit(ctx, ev)
	}
	return nil
}

// eventsFor maps one channel change onto the events it implies. A missing
// previous value counts as zero, which matches a fresh device: the first
// nonzero battery reading is a real change worth announcing.
func (e *Engine) eventsFor(c types.Channel, prev, cur float64, triggers []levelTrigger) []types.Event {
	now := time.Now()
	var events []types.Event

	switch {
	case c == types.ChannelForceCharging:
		kind := types.EventForceChargingStopped
		if cur == 1 {
			kind = types.EventForceChargingStarted
		}
		events = append(events, types.Event{Kind: kind, Channel: c, Old: prev, New: cur, At: now})
	case c == types.ChannelMaxChargePower:
		events = append(events, types.Event{Kind: types.EventMaxChargePowerChanged, Channel: c, Old: prev, New: cur, At: now})
	}

	for _, tr := range triggers {
		if tr.channel != c {
			continue
		}
		if CrossedThreshold(prev, cur, tr.target, tr.mode) {
			events = append(events, types.Event{Kind: types.EventBatteryLevelChanged, Channel: c, Old: prev, New: cur, At: now})
		}
	}
	return events
}

func (e *Engine) emit(ctx context.Context, ev types.Event) {
	if err := e.db.InsertEvent(ctx, e.deviceID, ev); err != nil {
		// the change already persisted; history is best-effort
		log.Ctx(ctx).WarnContext(ctx, "failed to persist event",
			slog.String("kind", string(ev.Kind)), slog.Any("error", err))
	}
	e.mu.Lock()
	sinks := make([]Sink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.Unlock()
	for _, s := range sinks {
		s.Emit(ctx, ev)
	}
}

// CrossedThreshold reports whether a change from prev to cur crossed the
// target in the given direction. Landing exactly on the target does not
// count; only passing it does, so a value hovering at the target cannot
// fire repeatedly.
func CrossedThreshold(prev, cur, target float64, mode types.ThresholdMode) bool {
	switch mode {
	case types.ThresholdAbove:
		return prev <= target && cur > target
	case types.ThresholdBelow:
		return prev >= target && cur < target
	}
	return false
}

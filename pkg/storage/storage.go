package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sunbridge/sunbridge/pkg/types"
)

var (
	// ErrVersionConflict is returned when a settings write carries a stale
	// version and would clobber a newer one.
	ErrVersionConflict = errors.New("settings version conflict")
)

// Database persists everything a device needs to survive a restart: its
// settings, the last value seen per channel, and the event history. Channel
// values are written one at a time since each updates on its own cadence.
type Database interface {
	// Settings
	GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error

	// Channel snapshot
	GetSnapshot(ctx context.Context, deviceID string) (types.Snapshot, error)
	SetChannelValue(ctx context.Context, deviceID string, channel types.Channel, value float64) error

	// Event history
	InsertEvent(ctx context.Context, deviceID string, event types.Event) error
	GetEventHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.Event, error)

	// Lifecycle
	Close() error
}

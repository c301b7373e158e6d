package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sunbridge/sunbridge/pkg/types"
)

// Memory is an in-process Database for tests and single-host runs where
// survival across restarts does not matter.
type Memory struct {
	mu       sync.Mutex
	settings map[string]memorySettings
	snapshot map[string]types.Snapshot
	events   map[string][]types.Event
}

type memorySettings struct {
	settings types.Settings
	version  int
}

func NewMemory() *Memory {
	return &Memory{
		settings: map[string]memorySettings{},
		snapshot: map[string]types.Snapshot{},
		events:   map[string][]types.Event{},
	}
}

var _ Database = (*Memory)(nil)

func (m *Memory) GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[deviceID]
	if !ok {
		return types.Settings{}, 0, nil
	}
	return s.settings, s.version, nil
}

func (m *Memory) SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.settings[deviceID]; ok && version < cur.version {
		return ErrVersionConflict
	}
	m.settings[deviceID] = memorySettings{settings: settings, version: version}
	return nil
}

func (m *Memory) GetSnapshot(ctx context.Context, deviceID string) (types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot[deviceID].Clone(), nil
}

func (m *Memory) SetChannelValue(ctx context.Context, deviceID string, channel types.Channel, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshot[deviceID]
	if !ok {
		snap = types.Snapshot{}
		m.snapshot[deviceID] = snap
	}
	snap[channel] = value
	return nil
}

func (m *Memory) InsertEvent(ctx context.Context, deviceID string, event types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[deviceID] = append(m.events[deviceID], event)
	return nil
}

func (m *Memory) GetEventHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Event
	for _, ev := range m.events[deviceID] {
		if !ev.At.Before(start) && ev.At.Before(end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

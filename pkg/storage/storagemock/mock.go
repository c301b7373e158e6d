package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/sunbridge/sunbridge/pkg/storage"
	"github.com/sunbridge/sunbridge/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error) {
	args := m.Called(ctx, deviceID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error {
	args := m.Called(ctx, deviceID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetSnapshot(ctx context.Context, deviceID string) (types.Snapshot, error) {
	args := m.Called(ctx, deviceID)
	if len(args) > 0 {
		return args.Get(0).(types.Snapshot), args.Error(1)
	}
	return types.Snapshot{}, nil
}

func (m *MockDatabase) SetChannelValue(ctx context.Context, deviceID string, channel types.Channel, value float64) error {
	args := m.Called(ctx, deviceID, channel, value)
	return args.Error(0)
}

func (m *MockDatabase) InsertEvent(ctx context.Context, deviceID string, event types.Event) error {
	args := m.Called(ctx, deviceID, event)
	return args.Error(0)
}

func (m *MockDatabase) GetEventHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.Event, error) {
	args := m.Called(ctx, deviceID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.Event), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}

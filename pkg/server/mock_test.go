package server

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/sunbridge/sunbridge/pkg/poller"
	"github.com/sunbridge/sunbridge/pkg/types"
)

type mockController struct {
	mock.Mock
}

var _ Controller = (*mockController)(nil)

func (m *mockController) DeviceID() string {
	return "dev"
}

func (m *mockController) Snapshot() types.Snapshot {
	args := m.Called()
	if len(args) > 0 {
		return args.Get(0).(types.Snapshot)
	}
	return types.Snapshot{}
}

func (m *mockController) PollerStates() (poller.State, poller.State) {
	args := m.Called()
	if len(args) > 0 {
		return args.Get(0).(poller.State), args.Get(1).(poller.State)
	}
	return poller.State{}, poller.State{}
}

func (m *mockController) RecentEvents() []types.Event {
	args := m.Called()
	if len(args) > 0 {
		return args.Get(0).([]types.Event)
	}
	return nil
}

func (m *mockController) Settings() (types.Settings, int) {
	args := m.Called()
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1)
	}
	return types.Settings{}, 0
}

func (m *mockController) ApplySettings(ctx context.Context, settings types.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *mockController) SetForceCharging(ctx context.Context, on bool, limitW int) error {
	args := m.Called(ctx, on, limitW)
	return args.Error(0)
}

func (m *mockController) SetDischargeBlocked(ctx context.Context, blocked bool) error {
	args := m.Called(ctx, blocked)
	return args.Error(0)
}

func (m *mockController) AddBatteryLevelTrigger(target float64, mode types.ThresholdMode) {
	m.Called(target, mode)
}

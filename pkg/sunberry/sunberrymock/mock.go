package sunberrymock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/sunbridge/sunbridge/pkg/sunberry"
	"github.com/sunbridge/sunbridge/pkg/types"
)

type MockInverter struct {
	mock.Mock
}

var _ sunberry.Inverter = (*MockInverter)(nil)

func (m *MockInverter) GetGridValues(ctx context.Context) (types.GridSample, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.GridSample), args.Error(1)
	}
	return types.GridSample{}, nil
}

func (m *MockInverter) GetBatteryValues(ctx context.Context) (types.BatterySample, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.BatterySample), args.Error(1)
	}
	return types.BatterySample{}, nil
}

func (m *MockInverter) EnableForceCharging(ctx context.Context, limitW int) error {
	args := m.Called(ctx, limitW)
	return args.Error(0)
}

func (m *MockInverter) DisableForceCharging(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInverter) BlockBatteryDischarge(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInverter) EnableBatteryDischarge(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInverter) SetAddress(address string) error {
	args := m.Called(address)
	return args.Error(0)
}

package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sunbridge/sunbridge/pkg/storage"
	"github.com/sunbridge/sunbridge/pkg/sunberry/sunberrymock"
	"github.com/sunbridge/sunbridge/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func newTestDevice(t *testing.T, inv *sunberrymock.MockInverter) (*Device, *storage.Memory) {
	t.Helper()
	ctx := context.Background()
	db := storage.NewMemory()
	require.NoError(t, db.SetSettings(ctx, "dev", types.Settings{
		Address:             "192.168.1.40",
		PollIntervalSeconds: 10,
		ForceChargeLimitW:   5000,
	}, 1))

	d := &Device{deviceID: "dev", db: db, inv: inv}
	require.NoError(t, d.Init(ctx))
	return d, db
}

func TestInitRejectsBadAddress(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemory()
	require.NoError(t, db.SetSettings(ctx, "dev", types.Settings{Address: "not a host"}, 1))

	d := &Device{deviceID: "dev", db: db, inv: &sunberrymock.MockInverter{}}
	err := d.Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAddressInvalid)
}

func TestPollGrid(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("GetGridValues", mock.Anything).Return(types.GridSample{
		L1: ptr(-250), L2: ptr(120), L3: ptr(0), Total: ptr(-130),
	}, nil).Once()

	require.NoError(t, d.pollGrid(ctx))
	snap := d.Snapshot()
	assert.Equal(t, -250.0, snap.Value(types.ChannelPowerL1))
	assert.Equal(t, -130.0, snap.Value(types.ChannelPowerTotal))
	inv.AssertExpectations(t)
}

func TestPollGridIncomplete(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("GetGridValues", mock.Anything).Return(types.GridSample{
		L1: ptr(-250), L2: ptr(120), L3: ptr(0),
	}, nil).Once()

	err := d.pollGrid(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtractionIncomplete)
	// nothing published from an incomplete page
	assert.Empty(t, d.Snapshot())
}

func TestPollBattery(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("GetBatteryValues", mock.Anything).Return(types.BatterySample{
		ActualKWh:       ptr(5.0),
		ActualPercent:   ptr(50.0),
		MaxChargePowerW: ptr(6000.0),
	}, nil).Once()

	require.NoError(t, d.pollBattery(ctx))
	snap := d.Snapshot()
	assert.Equal(t, 5.0, snap.Value(types.ChannelBatteryKWh))
	assert.Equal(t, 50.0, snap.Value(types.ChannelBatteryPercent))
	assert.Equal(t, 6000.0, snap.Value(types.ChannelMaxChargePower))
	assert.Equal(t, 5.0, snap.Value(types.ChannelRemainingKWh))
}

func TestPollBatteryFullSkipsRemaining(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("GetBatteryValues", mock.Anything).Return(types.BatterySample{
		ActualKWh:       ptr(10.0),
		ActualPercent:   ptr(100.0),
		MaxChargePowerW: ptr(6000.0),
	}, nil).Once()

	require.NoError(t, d.pollBattery(ctx))
	assert.Equal(t, 0.0, d.Snapshot().Value(types.ChannelRemainingKWh))
}

func TestSetForceCharging(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	// the device reported a 6000W ceiling on the last battery poll
	inv.On("GetBatteryValues", mock.Anything).Return(types.BatterySample{
		ActualKWh: ptr(5.0), ActualPercent: ptr(50.0), MaxChargePowerW: ptr(6000.0),
	}, nil).Once()
	require.NoError(t, d.pollBattery(ctx))

	inv.On("EnableForceCharging", mock.Anything, 5000).Return(nil).Once()
	require.NoError(t, d.SetForceCharging(ctx, true, 0))
	assert.Equal(t, 1.0, d.Snapshot().Value(types.ChannelForceCharging))

	events := d.RecentEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, types.EventForceChargingStarted, events[len(events)-1].Kind)

	inv.On("DisableForceCharging", mock.Anything).Return(nil).Once()
	require.NoError(t, d.SetForceCharging(ctx, false, 0))
	assert.Equal(t, 0.0, d.Snapshot().Value(types.ChannelForceCharging))
	inv.AssertExpectations(t)
}

func TestSetForceChargingExplicitLimit(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("EnableForceCharging", mock.Anything, 2000).Return(nil).Once()
	require.NoError(t, d.SetForceCharging(ctx, true, 2000))
	inv.AssertExpectations(t)
}

func TestSetForceChargingRejectsLimitAboveCeiling(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("GetBatteryValues", mock.Anything).Return(types.BatterySample{
		ActualKWh: ptr(5.0), ActualPercent: ptr(50.0), MaxChargePowerW: ptr(4000.0),
	}, nil).Once()
	require.NoError(t, d.pollBattery(ctx))

	// 5000W configured limit exceeds the 4000W ceiling; the device is never asked
	err := d.SetForceCharging(ctx, true, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrChargeLimitRejected)
	assert.Equal(t, 0.0, d.Snapshot().Value(types.ChannelForceCharging))
	inv.AssertExpectations(t)
}

func TestSetForceChargingCommandFailure(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("EnableForceCharging", mock.Anything, 5000).Return(errors.New("device offline")).Once()
	err := d.SetForceCharging(ctx, true, 0)
	require.Error(t, err)
	// the channel keeps reporting the truth
	assert.Equal(t, 0.0, d.Snapshot().Value(types.ChannelForceCharging))
	assert.Empty(t, d.RecentEvents())
}

func TestSetDischargeBlocked(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	inv.On("BlockBatteryDischarge", mock.Anything).Return(nil).Once()
	require.NoError(t, d.SetDischargeBlocked(ctx, true))
	assert.Equal(t, 1.0, d.Snapshot().Value(types.ChannelBlockDischarge))

	inv.On("EnableBatteryDischarge", mock.Anything).Return(nil).Once()
	require.NoError(t, d.SetDischargeBlocked(ctx, false))
	assert.Equal(t, 0.0, d.Snapshot().Value(types.ChannelBlockDischarge))
	inv.AssertExpectations(t)
}

func TestApplySettings(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, db := newTestDevice(t, inv)

	inv.On("SetAddress", "192.168.1.50").Return(nil).Once()
	require.NoError(t, d.ApplySettings(ctx, types.Settings{
		Address:             "192.168.1.50",
		PollIntervalSeconds: 30,
		ForceChargeLimitW:   3000,
	}))

	settings, version := d.Settings()
	assert.Equal(t, "192.168.1.50", settings.Address)
	assert.Equal(t, 2, version)

	stored, storedVersion, err := db.GetSettings(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, settings, stored)
	assert.Equal(t, 2, storedVersion)

	grid, battery := d.PollerStates()
	assert.Equal(t, 30*time.Second, grid.Nominal)
	assert.Equal(t, 30*time.Second, battery.Nominal)
	inv.AssertExpectations(t)
}

func TestApplySettingsRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	inv := &sunberrymock.MockInverter{}
	d, _ := newTestDevice(t, inv)

	err := d.ApplySettings(ctx, types.Settings{Address: "999.999.0.1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAddressInvalid)

	settings, version := d.Settings()
	assert.Equal(t, "192.168.1.40", settings.Address)
	assert.Equal(t, 1, version)
}

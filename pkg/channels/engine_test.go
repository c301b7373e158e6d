package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sunbridge/sunbridge/pkg/storage"
	"github.com/sunbridge/sunbridge/pkg/storage/storagemock"
	"github.com/sunbridge/sunbridge/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *Recorder) {
	t.Helper()
	e := NewEngine(storage.NewMemory(), "dev")
	rec := NewRecorder(10)
	e.AddSink(rec)
	return e, rec
}

func TestPublishOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	failed := e.Publish(ctx, []Update{
		{Channel: types.ChannelPowerL1, Value: -250},
		{Channel: types.ChannelPowerTotal, Value: -130},
	})
	assert.Empty(t, failed)
	assert.Equal(t, -250.0, e.Value(types.ChannelPowerL1))

	// the same sample again changes nothing and emits nothing
	failed = e.Publish(ctx, []Update{
		{Channel: types.ChannelPowerL1, Value: -250},
		{Channel: types.ChannelPowerTotal, Value: -130},
	})
	assert.Empty(t, failed)
	assert.Empty(t, rec.Events())
}

func TestPublishFirstZeroIsNotAChange(t *testing.T) {
	ctx := context.Background()
	db := &storagemock.MockDatabase{}
	e := NewEngine(db, "dev")

	// no SetChannelValue expectation: a zero on a fresh channel must not write
	failed := e.Publish(ctx, []Update{{Channel: types.ChannelPowerL1, Value: 0}})
	assert.Empty(t, failed)
	db.AssertExpectations(t)
}

func TestPublishValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	failed := e.Publish(ctx, []Update{
		{Channel: types.ChannelBatteryPercent, Value: 140},
		{Channel: types.ChannelBatteryKWh, Value: 6.5},
	})
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[types.ChannelBatteryPercent], types.ErrValidationFailed)
	// the valid channel of the batch still went through
	assert.Equal(t, 6.5, e.Value(types.ChannelBatteryKWh))
}

func TestPublishWriteFailureKeepsOldValue(t *testing.T) {
	ctx := context.Background()
	db := &storagemock.MockDatabase{}
	e := NewEngine(db, "dev")

	writeErr := errors.New("firestore down")
	db.On("SetChannelValue", mock.Anything, "dev", types.ChannelBatteryKWh, 6.5).Return(writeErr).Once()

	failed := e.Publish(ctx, []Update{{Channel: types.ChannelBatteryKWh, Value: 6.5}})
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[types.ChannelBatteryKWh], writeErr)
	assert.Equal(t, 0.0, e.Value(types.ChannelBatteryKWh))

	// next cycle retries the same change
	db.On("SetChannelValue", mock.Anything, "dev", types.ChannelBatteryKWh, 6.5).Return(nil).Once()
	db.On("InsertEvent", mock.Anything, "dev", mock.Anything).Return(nil)
	failed = e.Publish(ctx, []Update{{Channel: types.ChannelBatteryKWh, Value: 6.5}})
	assert.Empty(t, failed)
	assert.Equal(t, 6.5, e.Value(types.ChannelBatteryKWh))
	db.AssertExpectations(t)
}

func TestForceChargingEvents(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	e.Publish(ctx, []Update{{Channel: types.ChannelForceCharging, Value: 1}})
	e.Publish(ctx, []Update{{Channel: types.ChannelForceCharging, Value: 1}})
	e.Publish(ctx, []Update{{Channel: types.ChannelForceCharging, Value: 0}})

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventForceChargingStarted, events[0].Kind)
	assert.Equal(t, 0.0, events[0].Old)
	assert.Equal(t, 1.0, events[0].New)
	assert.Equal(t, types.EventForceChargingStopped, events[1].Kind)
}

func TestMaxChargePowerEvent(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)

	e.Publish(ctx, []Update{{Channel: types.ChannelMaxChargePower, Value: 3500}})
	e.Publish(ctx, []Update{{Channel: types.ChannelMaxChargePower, Value: 2000}})

	events := rec.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, types.EventMaxChargePowerChanged, ev.Kind)
	}
	assert.Equal(t, 3500.0, events[1].Old)
	assert.Equal(t, 2000.0, events[1].New)
}

func TestLevelTriggerFiresOncePerCrossing(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)
	e.AddLevelTrigger(types.ChannelBatteryPercent, 50, types.ThresholdAbove)

	for _, v := range []float64{45, 52, 60} {
		e.Publish(ctx, []Update{{Channel: types.ChannelBatteryPercent, Value: v}})
	}

	var crossings int
	for _, ev := range rec.Events() {
		if ev.Kind == types.EventBatteryLevelChanged {
			crossings++
			assert.Equal(t, 45.0, ev.Old)
			assert.Equal(t, 52.0, ev.New)
		}
	}
	assert.Equal(t, 1, crossings)
}

func TestLevelTriggerBelow(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine(t)
	e.AddLevelTrigger(types.ChannelBatteryPercent, 20, types.ThresholdBelow)

	for _, v := range []float64{30, 20, 19, 12} {
		e.Publish(ctx, []Update{{Channel: types.ChannelBatteryPercent, Value: v}})
	}

	var crossings int
	for _, ev := range rec.Events() {
		if ev.Kind == types.EventBatteryLevelChanged {
			crossings++
		}
	}
	// 30->20 lands on the target without crossing; 20->19 crosses
	assert.Equal(t, 1, crossings)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemory()
	require.NoError(t, db.SetChannelValue(ctx, "dev", types.ChannelBatteryPercent, 72))

	e := NewEngine(db, "dev")
	rec := NewRecorder(10)
	e.AddSink(rec)
	require.NoError(t, e.Restore(ctx))

	// the restored value is the baseline, so republishing it is a no-op
	failed := e.Publish(ctx, []Update{{Channel: types.ChannelBatteryPercent, Value: 72}})
	assert.Empty(t, failed)
	assert.Empty(t, rec.Events())
	assert.Equal(t, 72.0, e.Value(types.ChannelBatteryPercent))
}

func TestCrossedThreshold(t *testing.T) {
	assert.True(t, CrossedThreshold(45, 52, 50, types.ThresholdAbove))
	assert.False(t, CrossedThreshold(52, 60, 50, types.ThresholdAbove))
	assert.False(t, CrossedThreshold(45, 50, 50, types.ThresholdAbove))
	assert.True(t, CrossedThreshold(50, 51, 50, types.ThresholdAbove))
	assert.True(t, CrossedThreshold(50, 49, 50, types.ThresholdBelow))
	assert.False(t, CrossedThreshold(51, 50, 50, types.ThresholdBelow))
	assert.False(t, CrossedThreshold(49, 45, 50, types.ThresholdBelow))
}

package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sunbridge/sunbridge/pkg/channels"
	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/poller"
	"github.com/sunbridge/sunbridge/pkg/storage"
	"github.com/sunbridge/sunbridge/pkg/sunberry"
	"github.com/sunbridge/sunbridge/pkg/types"
)

const recentEvents = 200

// Device owns everything one inverter needs: the client talking to it, the
// channel engine tracking its state, and the two poll loops feeding the
// engine. It is constructed once at startup and reconfigured in place.
type Device struct {
	deviceID string
	db       storage.Database
	inv      sunberry.Inverter
	engine   *channels.Engine
	recorder *channels.Recorder

	gridPoller    *poller.Poller
	batteryPoller *poller.Poller

	mu       sync.Mutex
	settings types.Settings
	version  int
}

// Init loads settings, validates the address, restores the channel
// snapshot, and builds the poll loops. An invalid stored address is fatal:
// the device must not start polling a host it cannot trust.
func (d *Device) Init(ctx context.Context) error {
	settings, version, err := d.db.GetSettings(ctx, d.deviceID)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("stored settings invalid: %w", err)
	}
	d.settings = settings
	d.version = version
	log.SetDebug(settings.DebugLogs)

	if d.inv == nil {
		inv, err := sunberry.NewClient(settings.Address)
		if err != nil {
			return err
		}
		d.inv = inv
	}

	d.engine = channels.NewEngine(d.db, d.deviceID)
	d.recorder = channels.NewRecorder(recentEvents)
	d.engine.AddSink(d.recorder)
	if err := d.engine.Restore(ctx); err != nil {
		return err
	}

	interval := settings.PollInterval()
	d.gridPoller = poller.New("grid", interval, d.pollGrid)
	d.batteryPoller = poller.New("battery", interval, d.pollBattery)

	log.Ctx(ctx).InfoContext(ctx, "device initialized",
		slog.String("deviceID", d.deviceID),
		slog.String("address", settings.Address),
		slog.Duration("pollInterval", interval),
	)
	return nil
}

// Start launches both poll loops. Grid and battery poll independently so a
// failing page cannot stall the other.
func (d *Device) Start(ctx context.Context) {
	d.gridPoller.Start(ctx)
	d.batteryPoller.Start(ctx)
}

// Stop halts both loops and waits for in-flight cycles.
func (d *Device) Stop() {
	d.gridPoller.Stop()
	d.batteryPoller.Stop()
}

// DeviceID returns the identifier this device persists under.
func (d *Device) DeviceID() string {
	return d.deviceID
}

// AddBatteryLevelTrigger registers a threshold on the battery charge
// percentage. Crossing it in the given direction emits a
// battery_level_changed event.
func (d *Device) AddBatteryLevelTrigger(target float64, mode types.ThresholdMode) {
	d.engine.AddLevelTrigger(types.ChannelBatteryPercent, target, mode)
}

// Snapshot returns the current channel values.
func (d *Device) Snapshot() types.Snapshot {
	return d.engine.Snapshot()
}

// RecentEvents returns the most recent events, oldest first.
func (d *Device) RecentEvents() []types.Event {
	return d.recorder.Events()
}

// PollerStates reports the health of both loops.
func (d *Device) PollerStates() (grid, battery poller.State) {
	return d.gridPoller.State(), d.batteryPoller.State()
}

// Settings returns the current settings and their version.
func (d *Device) Settings() (types.Settings, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings, d.version
}

func (d *Device) pollGrid(ctx context.Context) error {
	s, err := d.inv.GetGridValues(ctx)
	if err != nil {
		return err
	}
	if !types.ValidGridSample(s) {
		return fmt.Errorf("%w: grid page", types.ErrExtractionIncomplete)
	}
	updates := []channels.Update{
		{Channel: types.ChannelPowerL1, Value: float64(*s.L1)},
		{Channel: types.ChannelPowerL2, Value: float64(*s.L2)},
		{Channel: types.ChannelPowerL3, Value: float64(*s.L3)},
		{Channel: types.ChannelPowerTotal, Value: float64(*s.Total)},
	}
	return failedErr(d.engine.Publish(ctx, updates))
}

func (d *Device) pollBattery(ctx context.Context) error {
	s, err := d.inv.GetBatteryValues(ctx)
	if err != nil {
		return err
	}
	if !types.ValidBatterySample(s) {
		return fmt.Errorf("%w: battery page", types.ErrExtractionIncomplete)
	}
	updates := []channels.Update{
		{Channel: types.ChannelBatteryKWh, Value: *s.ActualKWh},
		{Channel: types.ChannelBatteryPercent, Value: *s.ActualPercent},
		{Channel: types.ChannelMaxChargePower, Value: *s.MaxChargePowerW},
	}
	if remaining, ok := types.RemainingKWhToFull(*s.ActualKWh, *s.ActualPercent); ok {
		updates = append(updates, channels.Update{Channel: types.ChannelRemainingKWh, Value: remaining})
	}
	return failedErr(d.engine.Publish(ctx, updates))
}

func failedErr(failed map[types.Channel]error) error {
	for c, err := range failed {
		return fmt.Errorf("channel %s: %w", c, err)
	}
	return nil
}

// SetForceCharging turns forced charging on or off. A zero limitW falls
// back to the configured default. The device is told first and the channel
// flips only after it agrees, so a failed command leaves the reported state
// matching reality.
func (d *Device) SetForceCharging(ctx context.Context, on bool, limitW int) error {
	if on {
		limit := limitW
		if limit == 0 {
			d.mu.Lock()
			limit = d.settings.ForceChargeLimitW
			d.mu.Unlock()
		}
		ceiling := int(d.engine.Value(types.ChannelMaxChargePower))
		if err := types.ValidateChargeLimit(limit, ceiling); err != nil {
			return err
		}
		if err := d.inv.EnableForceCharging(ctx, limit); err != nil {
			return err
		}
	} else {
		if err := d.inv.DisableForceCharging(ctx); err != nil {
			return err
		}
	}
	return failedErr(d.engine.Publish(ctx, []channels.Update{
		{Channel: types.ChannelForceCharging, Value: boolValue(on)},
	}))
}

// SetDischargeBlocked blocks or unblocks battery discharge.
func (d *Device) SetDischargeBlocked(ctx context.Context, blocked bool) error {
	if blocked {
		if err := d.inv.BlockBatteryDischarge(ctx); err != nil {
			return err
		}
	} else {
		if err := d.inv.EnableBatteryDischarge(ctx); err != nil {
			return err
		}
	}
	return failedErr(d.engine.Publish(ctx, []channels.Update{
		{Channel: types.ChannelBlockDischarge, Value: boolValue(blocked)},
	}))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ApplySettings validates, persists, and applies new settings without a
// restart. The address moves the client to the new host, the interval
// reconfigures both loops, and the debug switch flips the log level.
func (d *Device) ApplySettings(ctx context.Context, settings types.Settings) error {
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.settings
	version := d.version + 1
	d.mu.Unlock()

	if settings.Address != prev.Address {
		if err := d.inv.SetAddress(settings.Address); err != nil {
			return err
		}
	}

	if err := d.db.SetSettings(ctx, d.deviceID, settings, version); err != nil {
		return fmt.Errorf("persisting settings: %w", err)
	}

	d.mu.Lock()
	d.settings = settings
	d.version = version
	d.mu.Unlock()

	interval := settings.PollInterval()
	d.gridPoller.Reconfigure(interval)
	d.batteryPoller.Reconfigure(interval)
	log.SetDebug(settings.DebugLogs)

	log.Ctx(ctx).InfoContext(ctx, "settings applied",
		slog.String("deviceID", d.deviceID),
		slog.String("address", settings.Address),
		slog.Duration("pollInterval", interval),
		slog.Int("version", version),
	)
	return nil
}

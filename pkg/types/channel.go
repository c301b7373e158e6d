package types

import "time"

// Channel is one named, independently-updated measurement or control value.
// The names are the capability identifiers the host platform expects; they
// are the boundary contract and never change.
type Channel string

const (
	ChannelPowerL1        Channel = "measure_L1"
	ChannelPowerL2        Channel = "measure_L2"
	ChannelPowerL3        Channel = "measure_L3"
	ChannelPowerTotal     Channel = "measure_total"
	ChannelBatteryKWh     Channel = "measure_battery_kWh"
	ChannelBatteryPercent Channel = "measure_battery_percent"
	ChannelRemainingKWh   Channel = "remaining_kWh_to_full"
	ChannelMaxChargePower Channel = "battery_max_charging_power"
	ChannelForceCharging  Channel = "force_charging"
	ChannelBlockDischarge Channel = "block_battery_discharge"
)

// Channels lists every channel in publish order.
var Channels = []Channel{
	ChannelPowerL1,
	ChannelPowerL2,
	ChannelPowerL3,
	ChannelPowerTotal,
	ChannelBatteryKWh,
	ChannelBatteryPercent,
	ChannelRemainingKWh,
	ChannelMaxChargePower,
	ChannelForceCharging,
	ChannelBlockDischarge,
}

// Bool reports whether the channel carries a boolean control state.
func (c Channel) Bool() bool {
	return c == ChannelForceCharging || c == ChannelBlockDischarge
}

// EventKind identifies an edge-triggered notification. The set is closed;
// the host adapter maps kinds onto its own trigger identifiers at the
// boundary and nowhere else.
type EventKind string

const (
	EventBatteryLevelChanged   EventKind = "battery_level_changed"
	EventMaxChargePowerChanged EventKind = "battery_max_charging_power_changed"
	EventForceChargingStarted  EventKind = "force_charging_started"
	EventForceChargingStopped  EventKind = "force_charging_stopped"
)

// Event is an edge-triggered notification raised on a state transition.
// Boolean transitions encode their state in the kind; Old and New then hold
// 0 or 1.
type Event struct {
	Kind    EventKind `json:"kind"`
	Channel Channel   `json:"channel"`
	Old     float64   `json:"old"`
	New     float64   `json:"new"`
	At      time.Time `json:"at"`
}

// ThresholdMode selects which direction a level trigger watches.
type ThresholdMode string

const (
	ThresholdAbove ThresholdMode = "above"
	ThresholdBelow ThresholdMode = "below"
)

// Snapshot is the last-published value per channel. It is owned by the
// change engine and persisted across restarts.
type Snapshot map[Channel]float64

// Value returns the published value for a channel, defaulting to zero the
// way the source app seeded its capability cache.
func (s Snapshot) Value(c Channel) float64 {
	return s[c]
}

// Clone returns a copy safe to hand across goroutines.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

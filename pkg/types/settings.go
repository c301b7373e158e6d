package types

import (
	"fmt"
	"time"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 2

const (
	// DefaultAddress is the hostname the inverter announces on the LAN.
	DefaultAddress = "sunberry.local"

	// MinPollIntervalSeconds is the floor for both polling cadences.
	MinPollIntervalSeconds = 5
	// DefaultPollIntervalSeconds is used when no interval is configured.
	DefaultPollIntervalSeconds = 10

	// MinChargePowerW is the smallest charging limit the inverter accepts.
	MinChargePowerW = 100
	// FallbackMaxChargePowerW bounds charging-limit requests when the device
	// has not reported a ceiling yet. The source app disagreed with itself
	// here (10000 in one revision, 12000 in another); we use the value that
	// shipped alongside the validator.
	FallbackMaxChargePowerW = 10000
	// DefaultForceChargeLimitW is the limit used when a force-charging
	// command does not carry one.
	DefaultForceChargeLimitW = 5000
)

// Settings represents the per-device configuration stored in the database.
// These are dynamic settings that can be changed without restarting.
type Settings struct {
	// Address is the inverter host: either the default hostname or a
	// dotted-quad IPv4 address.
	Address string `json:"address"`

	// PollIntervalSeconds drives both the grid and battery cadences.
	PollIntervalSeconds int `json:"pollIntervalSeconds"`

	// ForceChargeLimitW is the default charging limit (in watts) applied when
	// force charging is enabled without an explicit limit.
	ForceChargeLimitW int `json:"forceChargeLimitW"`

	// DebugLogs enables debug-level logging at runtime.
	DebugLogs bool `json:"debugLogs"`
}

// WithDefaults fills in zero-valued fields.
func (s Settings) WithDefaults() Settings {
	if s.Address == "" {
		s.Address = DefaultAddress
	}
	if s.PollIntervalSeconds == 0 {
		s.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if s.ForceChargeLimitW == 0 {
		s.ForceChargeLimitW = DefaultForceChargeLimitW
	}
	return s
}

// Validate checks the settings before they are installed on a device.
func (s Settings) Validate() error {
	if err := ValidateAddress(s.Address); err != nil {
		return err
	}
	if s.PollIntervalSeconds < 0 {
		return fmt.Errorf("%w: poll interval %d is negative", ErrValidationFailed, s.PollIntervalSeconds)
	}
	if s.ForceChargeLimitW != 0 {
		if err := ValidateChargeLimit(s.ForceChargeLimitW, 0); err != nil {
			return err
		}
	}
	return nil
}

// PollInterval returns the configured interval clamped to the floor.
func (s Settings) PollInterval() time.Duration {
	secs := s.PollIntervalSeconds
	if secs < MinPollIntervalSeconds {
		secs = MinPollIntervalSeconds
	}
	return time.Duration(secs) * time.Second
}

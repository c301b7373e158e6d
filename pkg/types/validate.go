package types

import (
	"fmt"
	"math"
	"regexp"
)

// ipv4Pattern is a strict dotted-quad matcher; no DNS resolution is ever
// attempted for addresses.
var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// ValidateAddress accepts the reserved default hostname literally or a
// strict 4-octet dotted-decimal IPv4 address.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty", ErrAddressInvalid)
	}
	if address == DefaultAddress {
		return nil
	}
	if !ipv4Pattern.MatchString(address) {
		return fmt.Errorf("%w: %q is not %s or an IPv4 address", ErrAddressInvalid, address, DefaultAddress)
	}
	return nil
}

// ValidGridSample reports whether every phase and the total were present in
// the page. Partial grid samples are never published.
func ValidGridSample(s GridSample) bool {
	return s.L1 != nil && s.L2 != nil && s.L3 != nil && s.Total != nil
}

// ValidBatterySample reports whether all battery fields were present and
// finite.
func ValidBatterySample(s BatterySample) bool {
	for _, f := range []*float64{s.ActualKWh, s.ActualPercent, s.MaxChargePowerW} {
		if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
			return false
		}
	}
	return true
}

// ValidChannelValue is the per-channel range check applied before any
// snapshot write. Power channels are unconstrained because grid phases go
// negative on net export.
func ValidChannelValue(c Channel, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if c.Bool() {
		return v == 0 || v == 1
	}
	switch c {
	case ChannelBatteryPercent:
		return v >= 0 && v <= 100
	case ChannelBatteryKWh, ChannelRemainingKWh:
		return v >= 0
	case ChannelPowerL1, ChannelPowerL2, ChannelPowerL3, ChannelPowerTotal, ChannelMaxChargePower:
		return true
	default:
		return false
	}
}

// ValidateChargeLimit checks a requested charging limit (in watts) against
// the floor and the device-reported ceiling. A ceiling of zero or less means
// the device has not reported one and the fallback applies.
func ValidateChargeLimit(limitW, ceilingW int) error {
	if limitW < MinChargePowerW {
		return fmt.Errorf("%w: %dW is below the %dW minimum", ErrChargeLimitRejected, limitW, MinChargePowerW)
	}
	if ceilingW <= 0 {
		ceilingW = FallbackMaxChargePowerW
	}
	if limitW > ceilingW {
		return fmt.Errorf("%w: %dW exceeds the %dW maximum charging power", ErrChargeLimitRejected, limitW, ceilingW)
	}
	return nil
}

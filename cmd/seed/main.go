package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/storage"
	"github.com/sunbridge/sunbridge/pkg/types"
)

// seeds a device into the firestore emulator so the API and dashboard have
// something to show during development.
func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	deviceID := lflag.String("device-id", "sunberry", "Device to seed")
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	settings := types.Settings{
		Address:             types.DefaultAddress,
		PollIntervalSeconds: types.DefaultPollIntervalSeconds,
		ForceChargeLimitW:   types.DefaultForceChargeLimitW,
	}
	if err := s.SetSettings(ctx, *deviceID, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	const (
		batteryCapacityKWh = 10.0
		solarPeakW         = 8000.0
		homeAvgW           = 1500.0
	)

	now := time.Now()
	start := now.Truncate(24 * time.Hour)

	// walk the day in 10 minute steps so battery level events land at
	// plausible times
	soc := 35.0
	prevBucket := int(soc / 10)
	for ts := start; ts.Before(now); ts = ts.Add(10 * time.Minute) {
		hour := float64(ts.Hour()) + float64(ts.Minute())/60
		// rough solar bell curve peaking at 13:00
		solarW := solarPeakW * math.Exp(-math.Pow(hour-13, 2)/8)
		loadW := homeAvgW + rng.Float64()*500
		surplusW := solarW - loadW

		soc += surplusW / 1000 / batteryCapacityKWh * 100 / 6
		soc = math.Max(5, math.Min(100, soc))

		if bucket := int(soc / 10); bucket != prevBucket {
			ev := types.Event{
				Kind:    types.EventBatteryLevelChanged,
				Channel: types.ChannelBatteryPercent,
				Old:     float64(prevBucket * 10),
				New:     math.Round(soc),
				At:      ts,
			}
			if err := s.InsertEvent(ctx, *deviceID, ev); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to seed event", "error", err)
				os.Exit(1)
			}
			prevBucket = bucket
		}
	}

	snapshot := simulatedSnapshot(soc, batteryCapacityKWh, rng)
	// write every channel so the snapshot collection is fully populated,
	// defaulting the ones the simulation does not model to zero
	for _, c := range types.Channels {
		if err := s.SetChannelValue(ctx, *deviceID, c, snapshot[c]); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed channel", "error", err)
			os.Exit(1)
		}
	}

	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeded mock data")
}

// simulatedSnapshot builds a value for every channel from the simulated state
// of charge. Power channels are rounded to whole watts; the kWh channel keeps
// its fraction since it is measured in whole kilowatt-hours.
func simulatedSnapshot(soc, capacityKWh float64, rng *rand.Rand) map[types.Channel]float64 {
	snapshot := map[types.Channel]float64{
		types.ChannelPowerL1:        math.Round(-400 + rng.Float64()*800),
		types.ChannelPowerL2:        math.Round(-400 + rng.Float64()*800),
		types.ChannelPowerL3:        math.Round(-400 + rng.Float64()*800),
		types.ChannelBatteryPercent: math.Round(soc),
		types.ChannelBatteryKWh:     math.Round(soc*capacityKWh) / 100,
		types.ChannelMaxChargePower: 6000,
	}
	snapshot[types.ChannelPowerTotal] = snapshot[types.ChannelPowerL1] +
		snapshot[types.ChannelPowerL2] + snapshot[types.ChannelPowerL3]
	for _, c := range types.Channels {
		if _, ok := snapshot[c]; !ok {
			snapshot[c] = 0
		}
	}
	return snapshot
}

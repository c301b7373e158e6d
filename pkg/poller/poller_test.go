package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextInterval(t *testing.T) {
	nominal := 10 * time.Second
	longGone := 10 * time.Minute

	assert.Equal(t, nominal, nextInterval(nominal, 0, longGone))
	// failures during a short blip keep the nominal cadence
	assert.Equal(t, nominal, nextInterval(nominal, 2, time.Minute))

	assert.Equal(t, 15*time.Second, nextInterval(nominal, 1, longGone))
	assert.Equal(t, 50625*time.Millisecond, nextInterval(nominal, 4, longGone))
	// the fifth failure would be 75.9s and hits the cap
	assert.Equal(t, time.Minute, nextInterval(nominal, 5, longGone))
	assert.Equal(t, time.Minute, nextInterval(nominal, 20, longGone))
}

func TestNominalFloor(t *testing.T) {
	p := New("grid", 2*time.Second, func(ctx context.Context) error { return nil })
	assert.Equal(t, 5*time.Second, p.State().Nominal)

	p.Reconfigure(30 * time.Second)
	assert.Equal(t, 30*time.Second, p.State().Nominal)
	p.Reconfigure(0)
	assert.Equal(t, 5*time.Second, p.State().Nominal)
}

func TestObserve(t *testing.T) {
	ctx := context.Background()
	p := New("battery", 10*time.Second, nil)

	p.observe(ctx, errors.New("down"))
	p.observe(ctx, errors.New("down"))
	assert.Equal(t, 2, p.State().ConsecutiveErrors)

	_, rebuild := p.next()
	assert.False(t, rebuild)

	p.observe(ctx, errors.New("down"))
	p.observe(ctx, errors.New("down"))
	_, rebuild = p.next()
	assert.True(t, rebuild)

	p.observe(ctx, nil)
	st := p.State()
	assert.Equal(t, 0, st.ConsecutiveErrors)
	assert.WithinDuration(t, time.Now(), st.LastSuccess, time.Second)
}

func TestFreshStartKeepsNominalCadence(t *testing.T) {
	ctx := context.Background()
	p := New("grid", 10*time.Second, nil)

	// a failure right after construction is a blip, not a degraded device
	p.observe(ctx, errors.New("down"))
	interval, rebuild := p.next()
	assert.Equal(t, 10*time.Second, interval)
	assert.False(t, rebuild)
}

func TestReconfigureRestartsRunningLoop(t *testing.T) {
	ran := make(chan struct{}, 2)
	p := New("battery", time.Hour, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	p.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}

	// the rebuilt loop fires immediately instead of waiting out the old hour
	p.Reconfigure(30 * time.Minute)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not restart after reconfigure")
	}
	p.Stop()
	assert.Equal(t, 30*time.Minute, p.State().Nominal)
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	p := New("grid", 10*time.Second, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	p.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}
	p.Stop()

	// stopping twice is fine
	p.Stop()
	require.Equal(t, 0, p.State().ConsecutiveErrors)
}

package poller

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/types"
)

const (
	// maxInterval caps backoff so a recovering device is noticed within a
	// minute no matter how long it was gone.
	maxInterval = time.Minute
	// degradeAfter is how long the device must go without a successful
	// cycle before backoff kicks in. Short blips keep the nominal cadence.
	degradeAfter = 5 * time.Minute
	// rebuildAfterErrors is the failure count past which the loop discards
	// its timer and builds a fresh one instead of resetting it.
	rebuildAfterErrors = 3
)

// Func performs one poll cycle.
type Func func(ctx context.Context) error

// Poller runs one cycle function on an adaptive cadence. Cycles run at the
// nominal interval while the device is healthy and stretch out
// exponentially once it has been unreachable for a while. Each measurement
// family gets its own Poller so a failing page does not slow a healthy one.
type Poller struct {
	name string
	fn   Func

	mu          sync.Mutex
	nominal     time.Duration
	errors      int
	lastSuccess time.Time

	parent  context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// State is a point-in-time view of a loop's health.
type State struct {
	Nominal           time.Duration
	ConsecutiveErrors int
	LastSuccess       time.Time
}

func New(name string, nominal time.Duration, fn Func) *Poller {
	// construction counts as a success so a device that is briefly
	// unreachable at startup gets the same grace period as one that just
	// went away
	p := &Poller{name: name, fn: fn, lastSuccess: time.Now()}
	p.setNominal(nominal)
	return p
}

func (p *Poller) setNominal(d time.Duration) {
	floor := time.Duration(types.MinPollIntervalSeconds) * time.Second
	if d < floor {
		d = floor
	}
	p.mu.Lock()
	p.nominal = d
	p.mu.Unlock()
}

// Reconfigure changes the nominal interval. A running loop is torn down and
// rebuilt so the new cadence applies immediately instead of after one last
// tick at the old one.
func (p *Poller) Reconfigure(nominal time.Duration) {
	p.setNominal(nominal)
	p.mu.Lock()
	running := p.cancel != nil
	parent := p.parent
	p.mu.Unlock()
	if running {
		p.Stop()
		p.Start(parent)
	}
}

// State returns the loop's current health for metrics and status reporting.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Nominal:           p.nominal,
		ConsecutiveErrors: p.errors,
		LastSuccess:       p.lastSuccess,
	}
}

// Start launches the loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	p.mu.Lock()
	p.parent = ctx
	p.cancel = cancel
	p.stopped = stopped
	p.mu.Unlock()
	go p.run(runCtx, stopped)
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	stopped := p.stopped
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (p *Poller) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := p.fn(ctx)
		if ctx.Err() != nil {
			return
		}
		p.observe(ctx, err)

		interval, rebuild := p.next()
		if rebuild {
			// after enough failures the timer itself is suspect; throw it
			// away rather than resetting it
			timer.Stop()
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
	}
}

func (p *Poller) observe(ctx context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errors++
		log.Ctx(ctx).WarnContext(ctx, "poll cycle failed",
			slog.String("poller", p.name),
			slog.Int("consecutiveErrors", p.errors),
			slog.Any("error", err),
		)
		return
	}
	if p.errors > 0 {
		log.Ctx(ctx).InfoContext(ctx, "poll cycle recovered",
			slog.String("poller", p.name),
			slog.Int("missedCycles", p.errors),
		)
	}
	p.errors = 0
	p.lastSuccess = time.Now()
}

func (p *Poller) next() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return nextInterval(p.nominal, p.errors, time.Since(p.lastSuccess)), p.errors > rebuildAfterErrors
}

// nextInterval computes the wait before the next cycle. Backoff multiplies
// the nominal interval by 1.5 per consecutive failure, capped at
// maxInterval, and applies only once the device has been unreachable for
// longer than degradeAfter.
func nextInterval(nominal time.Duration, errors int, sinceSuccess time.Duration) time.Duration {
	if errors == 0 || sinceSuccess <= degradeAfter {
		return nominal
	}
	d := time.Duration(float64(nominal) * math.Pow(1.5, float64(errors)))
	if d > maxInterval {
		d = maxInterval
	}
	return d
}

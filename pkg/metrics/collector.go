package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sunbridge/sunbridge/pkg/poller"
	"github.com/sunbridge/sunbridge/pkg/types"
)

// Source is what the collector reads on every scrape.
type Source interface {
	Snapshot() types.Snapshot
	PollerStates() (grid, battery poller.State)
}

// Collector exposes the channel snapshot and poll loop health as Prometheus
// metrics. Values are read live on scrape; nothing is cached.
type Collector struct {
	source Source

	channelDesc     *prometheus.Desc
	errorsDesc      *prometheus.Desc
	lastSuccessDesc *prometheus.Desc
	intervalDesc    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		channelDesc: prometheus.NewDesc(
			"sunbridge_channel_value",
			"Current value of a device channel",
			[]string{"channel"}, nil,
		),
		errorsDesc: prometheus.NewDesc(
			"sunbridge_poll_consecutive_errors",
			"Consecutive failed poll cycles per loop",
			[]string{"poller"}, nil,
		),
		lastSuccessDesc: prometheus.NewDesc(
			"sunbridge_poll_last_success_timestamp_seconds",
			"Unix time of the last successful poll cycle per loop",
			[]string{"poller"}, nil,
		),
		intervalDesc: prometheus.NewDesc(
			"sunbridge_poll_nominal_interval_seconds",
			"Configured poll interval per loop",
			[]string{"poller"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.channelDesc
	ch <- c.errorsDesc
	ch <- c.lastSuccessDesc
	ch <- c.intervalDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()
	for channel, value := range snap {
		ch <- prometheus.MustNewConstMetric(
			c.channelDesc, prometheus.GaugeValue, value, string(channel),
		)
	}

	grid, battery := c.source.PollerStates()
	for _, loop := range []struct {
		name  string
		state poller.State
	}{
		{"grid", grid},
		{"battery", battery},
	} {
		ch <- prometheus.MustNewConstMetric(
			c.errorsDesc, prometheus.GaugeValue, float64(loop.state.ConsecutiveErrors), loop.name,
		)
		ch <- prometheus.MustNewConstMetric(
			c.intervalDesc, prometheus.GaugeValue, loop.state.Nominal.Seconds(), loop.name,
		)
		if !loop.state.LastSuccess.IsZero() {
			ch <- prometheus.MustNewConstMetric(
				c.lastSuccessDesc, prometheus.GaugeValue, float64(loop.state.LastSuccess.Unix()), loop.name,
			)
		}
	}
}

package sunberry

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sunbridge/sunbridge/pkg/types"
)

const (
	gridValuesEndpoint    = "/grid/values"
	batteryValuesEndpoint = "/battery/values"
	batteryTimersEndpoint = "/battery_management/timers"
)

var weekdayFields = []string{"Mon_0", "Tue_0", "Wed_0", "Thu_0", "Fri_0", "Sat_0", "Sun_0"}

// weeklyTimerForm returns the all-day, all-week schedule skeleton every
// control post shares. Callers set the charging and discharge fields they
// need on top of it.
func weeklyTimerForm() url.Values {
	form := url.Values{}
	form.Set("start_0", "00:00")
	form.Set("stop_0", "23:59")
	for _, day := range weekdayFields {
		form.Set(day, day)
	}
	form.Set("submit", "")
	return form
}

// GetGridValues fetches and parses the grid page.
func (c *Client) GetGridValues(ctx context.Context) (types.GridSample, error) {
	body, err := c.do(ctx, http.MethodGet, gridValuesEndpoint, nil)
	if err != nil {
		return types.GridSample{}, err
	}
	return ParseGrid(body), nil
}

// GetBatteryValues fetches and parses the battery page.
func (c *Client) GetBatteryValues(ctx context.Context) (types.BatterySample, error) {
	body, err := c.do(ctx, http.MethodGet, batteryValuesEndpoint, nil)
	if err != nil {
		return types.BatterySample{}, err
	}
	return ParseBattery(body), nil
}

// EnableForceCharging turns forced charging on at the given limit in watts.
func (c *Client) EnableForceCharging(ctx context.Context, limitW int) error {
	form := weeklyTimerForm()
	form.Set("force_chg_enable_0", "on")
	form.Set("force_chg_power_0", strconv.Itoa(limitW))
	_, err := c.do(ctx, http.MethodPost, batteryTimersEndpoint, form)
	return err
}

// DisableForceCharging turns forced charging off. The device wants the
// power fields reset to their idle values rather than the enable flag
// simply omitted.
func (c *Client) DisableForceCharging(ctx context.Context) error {
	form := weeklyTimerForm()
	form.Set("force_chg_power_0", "100")
	form.Set("bat_chg_limit_power_0", "0")
	_, err := c.do(ctx, http.MethodPost, batteryTimersEndpoint, form)
	return err
}

// BlockBatteryDischarge stops the battery from discharging.
func (c *Client) BlockBatteryDischarge(ctx context.Context) error {
	form := weeklyTimerForm()
	form.Set("bat_chg_limit_power_0", "0")
	form.Set("block_bat_dis_0", "on")
	_, err := c.do(ctx, http.MethodPost, batteryTimersEndpoint, form)
	return err
}

// EnableBatteryDischarge lifts a discharge block.
func (c *Client) EnableBatteryDischarge(ctx context.Context) error {
	form := weeklyTimerForm()
	form.Set("force_chg_power_0", "100")
	form.Set("bat_chg_limit_power_0", "0")
	_, err := c.do(ctx, http.MethodPost, batteryTimersEndpoint, form)
	return err
}

// Inverter is the surface the poller and command dispatcher need from a
// device client.
type Inverter interface {
	GetGridValues(ctx context.Context) (types.GridSample, error)
	GetBatteryValues(ctx context.Context) (types.BatterySample, error)
	EnableForceCharging(ctx context.Context, limitW int) error
	DisableForceCharging(ctx context.Context) error
	BlockBatteryDischarge(ctx context.Context) error
	EnableBatteryDischarge(ctx context.Context) error
	SetAddress(address string) error
}

var _ Inverter = (*Client)(nil)

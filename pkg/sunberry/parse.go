package sunberry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sunbridge/sunbridge/pkg/types"
)

// fieldLocator describes where one measurement lives in the device's
// server-rendered HTML: a marker proving the field was rendered at all, and
// a value pattern capturing the number next to it. The page has no ids or
// classes worth anchoring on, so the markers are the visible labels and
// units themselves.
type fieldLocator struct {
	marker  string
	valueRe *regexp.Regexp
}

// adjacentField matches a labelled value where the number sits in the label
// element immediately after the one holding the text, as the grid page
// renders its phase powers.
func adjacentField(label, unit string) fieldLocator {
	return fieldLocator{
		marker:  label,
		valueRe: regexp.MustCompile(`<label[^>]*>` + regexp.QuoteMeta(label) + `\s*</label>\s*<label[^>]*>\s*(-?\d+)\s*` + unit),
	}
}

// bareField matches a value identified only by its unit, as the battery page
// renders stored energy and state of charge.
func bareField(unit string) fieldLocator {
	return fieldLocator{
		marker:  unit,
		valueRe: regexp.MustCompile(`<label[^>]*>\s*(\d+)\s*` + unit + `\s*</label>`),
	}
}

// spannedField matches a value whose label sits several nodes before it, as
// the battery page renders the charging ceiling. That gap is a fixed
// property of the page, not something to normalize away.
func spannedField(label, unit string) fieldLocator {
	return fieldLocator{
		marker:  label,
		valueRe: regexp.MustCompile(`(?s)` + regexp.QuoteMeta(label) + `[^<]*<.*?<label[^>]*>\s*(\d+)\s*` + unit + `\s*</label>`),
	}
}

// extract resolves a field against the page. A matched number is the value.
// A present marker with no matching number means the device rendered a
// placeholder, which the page defines as a zero reading. A missing marker
// means the field was not rendered and resolves to nil.
func (f fieldLocator) extract(page string) *float64 {
	if m := f.valueRe.FindStringSubmatch(page); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	if strings.Contains(page, f.marker) {
		zero := 0.0
		return &zero
	}
	return nil
}

var (
	gridL1    = adjacentField("L1:", "W")
	gridL2    = adjacentField("L2:", "W")
	gridL3    = adjacentField("L3:", "W")
	gridTotal = adjacentField("Celkem:", "W")

	batteryWh      = bareField("Wh")
	batteryPercent = bareField("%")
	batteryMaxChg  = spannedField("Max nabíjení:", "W")
)

// ParseGrid extracts the three phase powers and the total from the grid
// page. Any of the four may be nil when its label never rendered.
func ParseGrid(page string) types.GridSample {
	return types.GridSample{
		L1:    intField(gridL1, page),
		L2:    intField(gridL2, page),
		L3:    intField(gridL3, page),
		Total: intField(gridTotal, page),
	}
}

// ParseBattery extracts the battery page. Stored energy arrives in Wh and is
// reported in kWh.
func ParseBattery(page string) types.BatterySample {
	s := types.BatterySample{
		ActualPercent:   batteryPercent.extract(page),
		MaxChargePowerW: batteryMaxChg.extract(page),
	}
	if wh := batteryWh.extract(page); wh != nil {
		kwh := *wh / 1000
		s.ActualKWh = &kwh
	}
	return s
}

func intField(f fieldLocator, page string) *int {
	v := f.extract(page)
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

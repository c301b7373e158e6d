package types

// GridSample holds one reading of the three grid phase powers and their
// total, in watts. A nil field means the corresponding label was missing from
// the page entirely; the validator rejects such samples as a whole.
type GridSample struct {
	L1    *int `json:"l1"`
	L2    *int `json:"l2"`
	L3    *int `json:"l3"`
	Total *int `json:"total"`
}

// BatterySample holds one reading of the battery page. Nil fields mean the
// label was missing from the page.
type BatterySample struct {
	// ActualKWh is the stored energy, derived from the Wh reading.
	ActualKWh *float64 `json:"actualKWh"`
	// ActualPercent is the state of charge in percent.
	ActualPercent *float64 `json:"actualPercent"`
	// MaxChargePowerW is the charging power ceiling the device reports.
	MaxChargePowerW *float64 `json:"maxChargePowerW"`
}

// RemainingKWhToFull derives the energy still needed to fully charge the
// battery. It is only defined for percentages in (0, 100]; the second return
// is false otherwise. The result is floored at zero.
func RemainingKWhToFull(actualKWh, actualPercent float64) (float64, bool) {
	if actualPercent <= 0 || actualPercent > 100 {
		return 0, false
	}
	totalCapacity := actualKWh / (actualPercent / 100)
	remaining := totalCapacity - actualKWh
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

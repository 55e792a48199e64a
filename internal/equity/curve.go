// Package equity provides the equity curve and drawdown engine.
package equity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
)

// riskPerRPct converts R contributions to currency: each 1R is worth 1% of
// the starting balance. A simplifying convention, not a live risk model.
var riskPerRPct = decimal.NewFromFloat(0.01)

// BuildEquityCurve simulates daily account equity from ordered trade R
// contributions. One point per calendar day with closed trade activity,
// cumulative trade counts nondecreasing. The input is never mutated.
func BuildEquityCurve(trades []*types.Trade, startingBalance decimal.Decimal) []types.EquityCurvePoint {
	ordered := journal.SortByClose(trades)
	if len(ordered) == 0 {
		return nil
	}

	riskPerR := startingBalance.Mul(riskPerRPct)

	type dayActivity struct {
		date   string
		rSum   float64
		trades int
	}

	var days []*dayActivity
	byDay := make(map[string]*dayActivity)
	for _, t := range ordered {
		day, ok := journal.CloseDay(t)
		if !ok {
			continue
		}
		activity, seen := byDay[day]
		if !seen {
			activity = &dayActivity{date: day}
			byDay[day] = activity
			days = append(days, activity)
		}
		if r, ok := journal.RMultiple(t); ok {
			activity.rSum += r
		}
		activity.trades++
	}

	curve := make([]types.EquityCurvePoint, 0, len(days))
	equity := startingBalance
	peak := startingBalance
	cumulative := 0

	for _, day := range days {
		previous := equity
		equity = equity.Add(riskPerR.Mul(decimal.NewFromFloat(day.rSum))).Round(2)
		peak = utils.MaxDecimal(peak, equity)
		cumulative += day.trades

		drawdown := peak.Sub(equity).Round(2)
		ddPct := 0.0
		if peak.GreaterThan(decimal.Zero) {
			pct, _ := drawdown.Div(peak).Float64()
			ddPct = utils.Round2(pct * 100)
		}

		dayReturn := 0.0
		if previous.GreaterThan(decimal.Zero) {
			ret, _ := equity.Sub(previous).Div(previous).Float64()
			dayReturn = utils.Round2(ret * 100)
		}

		curve = append(curve, types.EquityCurvePoint{
			Date:             day.date,
			Equity:           equity,
			Peak:             peak,
			Drawdown:         drawdown,
			DrawdownPct:      ddPct,
			DayReturnPct:     dayReturn,
			DayTrades:        day.trades,
			CumulativeTrades: cumulative,
		})
	}

	return curve
}

// IdentifyDrawdownPeriods walks the curve and extracts contiguous spans where
// equity sits below its running peak. A period opens on the first point with
// drawdown > 0, tracks the maximum depth seen, and closes on the first point
// where drawdown returns to exactly 0, recorded as the recovery date. A
// drawdown still open at the end of the curve is emitted without one.
func IdentifyDrawdownPeriods(curve []types.EquityCurvePoint) []types.DrawdownPeriod {
	var periods []types.DrawdownPeriod
	var current *types.DrawdownPeriod

	for _, point := range curve {
		inDrawdown := point.Drawdown.GreaterThan(decimal.Zero)

		switch {
		case inDrawdown && current == nil:
			current = &types.DrawdownPeriod{
				StartDate:   point.Date,
				MaxDepth:    point.Drawdown,
				MaxDepthPct: point.DrawdownPct,
			}
		case inDrawdown:
			if point.Drawdown.GreaterThan(current.MaxDepth) {
				current.MaxDepth = point.Drawdown
				current.MaxDepthPct = point.DrawdownPct
			}
		case current != nil:
			current.EndDate = point.Date
			current.Recovered = true
			current.DurationDays = daysBetween(current.StartDate, point.Date)
			periods = append(periods, *current)
			current = nil
		}
	}

	if current != nil {
		last := curve[len(curve)-1].Date
		current.DurationDays = daysBetween(current.StartDate, last) + 1
		periods = append(periods, *current)
	}

	return periods
}

// daysBetween returns whole calendar days from a to b (yyyy-MM-dd).
func daysBetween(a, b string) int {
	start, err1 := time.Parse("2006-01-02", a)
	end, err2 := time.Parse("2006-01-02", b)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

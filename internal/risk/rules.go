package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
)

// warningThreshold marks a rule as warning at 80% of its limit.
const warningThreshold = 0.8

// Metrics derives risk budget usage from R losses in the calendar day, week
// and month containing now. Currency figures use the flat 1%-of-balance-per-R
// convention; with varying position sizes this under- or overstates real
// risk, which is accepted as a documented simplification.
func Metrics(trades []*types.Trade, balance decimal.Decimal, settings types.RiskSettings, now time.Time) *types.RiskMetrics {
	riskPerR := balance.Mul(decimal.NewFromFloat(0.01))

	metrics := &types.RiskMetrics{
		DailyRiskUsed:   decimal.Zero,
		WeeklyRiskUsed:  decimal.Zero,
		MonthlyRiskUsed: decimal.Zero,
	}

	ordered := journal.SortByClose(trades)

	year, week := now.ISOWeek()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	for _, t := range ordered {
		r, ok := journal.RMultiple(t)
		if !ok || r >= 0 {
			continue
		}
		ts, ok := journal.CloseTimestamp(t)
		if !ok {
			continue
		}

		lost := riskPerR.Mul(decimal.NewFromFloat(-r))

		if ts.Format("2006-01-02") == day {
			metrics.DailyRiskUsed = metrics.DailyRiskUsed.Add(lost)
		}
		if y, w := ts.ISOWeek(); y == year && w == week {
			metrics.WeeklyRiskUsed = metrics.WeeklyRiskUsed.Add(lost)
		}
		if ts.Format("2006-01") == month {
			metrics.MonthlyRiskUsed = metrics.MonthlyRiskUsed.Add(lost)
		}
	}

	metrics.DailyRiskUsed = metrics.DailyRiskUsed.Round(2)
	metrics.WeeklyRiskUsed = metrics.WeeklyRiskUsed.Round(2)
	metrics.MonthlyRiskUsed = metrics.MonthlyRiskUsed.Round(2)

	metrics.DailyRiskRemaining = remaining(balance, settings.MaxDailyRiskPct, metrics.DailyRiskUsed)
	metrics.WeeklyRiskRemaining = remaining(balance, settings.MaxWeeklyRiskPct, metrics.WeeklyRiskUsed)
	metrics.MonthlyRiskRemaining = remaining(balance, settings.MaxMonthlyRiskPct, metrics.MonthlyRiskUsed)

	metrics.CurrentDrawdown, metrics.CurrentDrawdownPct = currentDrawdown(ordered, balance)
	metrics.ConsecutiveLosses = consecutiveLosses(ordered)

	return metrics
}

// remaining is the unspent part of a percentage-of-balance budget, floored
// at zero once overspent.
func remaining(balance decimal.Decimal, limitPct float64, used decimal.Decimal) decimal.Decimal {
	budget := balance.Mul(decimal.NewFromFloat(limitPct / 100))
	left := budget.Sub(used).Round(2)
	if left.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return left
}

// currentDrawdown walks cumulative net P&L tracking the equity peak. This is
// a deliberately simpler variant than the curve engine: it reports where
// equity stands below its peak right now, not the deepest historical fall.
func currentDrawdown(ordered []*types.Trade, balance decimal.Decimal) (decimal.Decimal, float64) {
	cumulative := decimal.Zero
	peak := decimal.Zero

	for _, t := range ordered {
		cumulative = cumulative.Add(journal.NetPnL(t))
		peak = utils.MaxDecimal(peak, cumulative)
	}

	drawdown := peak.Sub(cumulative).Round(2)
	peakEquity := balance.Add(peak)

	pct := 0.0
	if peakEquity.GreaterThan(decimal.Zero) {
		v, _ := drawdown.Div(peakEquity).Float64()
		pct = utils.Round2(v * 100)
	}
	return drawdown, pct
}

// consecutiveLosses counts backward from the most recent closed trade,
// stopping at the first non-loser.
func consecutiveLosses(ordered []*types.Trade) int {
	count := 0
	for i := len(ordered) - 1; i >= 0; i-- {
		if journal.Result(ordered[i]) != types.OutcomeLoser {
			break
		}
		count++
	}
	return count
}

// EvaluateRules classifies each configured threshold as ok, warning (at or
// above 80% of the limit) or violated (at or above the limit). Pure
// evaluation; callers decide how to surface the result. A non-positive
// limit means the check is not configured and stays ok.
func EvaluateRules(metrics *types.RiskMetrics, settings types.RiskSettings, balance decimal.Decimal, openPositions int) []types.RiskRule {
	dailyUsed, _ := metrics.DailyRiskUsed.Float64()
	weeklyUsed, _ := metrics.WeeklyRiskUsed.Float64()
	monthlyUsed, _ := metrics.MonthlyRiskUsed.Float64()
	bal, _ := balance.Float64()

	rules := []types.RiskRule{
		newRule("daily_risk", "Daily risk used", dailyUsed, bal*settings.MaxDailyRiskPct/100),
		newRule("weekly_risk", "Weekly risk used", weeklyUsed, bal*settings.MaxWeeklyRiskPct/100),
		newRule("monthly_risk", "Monthly risk used", monthlyUsed, bal*settings.MaxMonthlyRiskPct/100),
		newRule("max_drawdown", "Max drawdown", metrics.CurrentDrawdownPct, settings.MaxDrawdownPct),
		newRule("consecutive_losses", "Consecutive losses", float64(metrics.ConsecutiveLosses), float64(settings.MaxConsecutiveLosses)),
		newRule("open_positions", "Open positions", float64(openPositions), float64(settings.MaxOpenPositions)),
	}
	return rules
}

func newRule(name, label string, current, limit float64) types.RiskRule {
	rule := types.RiskRule{
		Name:    name,
		Label:   label,
		Current: utils.Round2(current),
		Limit:   utils.Round2(limit),
		Status:  types.RiskStatusOK,
	}

	if limit <= 0 {
		return rule
	}

	switch {
	case current >= limit:
		rule.Status = types.RiskStatusViolated
	case current >= limit*warningThreshold:
		rule.Status = types.RiskStatusWarning
	}
	return rule
}

// Package equity provides performance metrics calculation.
package equity

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/internal/stats"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
	"go.uber.org/zap"
)

// Calculator calculates performance metrics
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a new metrics calculator
func NewCalculator(logger *zap.Logger) *Calculator {
	return &Calculator{logger: logger}
}

// Calculate combines trade KPIs with equity-curve derived statistics.
// Deterministic: calling twice on the same input yields deep-equal results.
func (c *Calculator) Calculate(trades []*types.Trade, startingBalance decimal.Decimal) *types.PerformanceMetrics {
	metrics := &types.PerformanceMetrics{
		KPIs:            stats.Calculate(trades),
		StartingBalance: startingBalance,
		EndingBalance:   startingBalance,
		Monthly:         []types.MonthlyStats{},
		DrawdownPeriods: []types.DrawdownPeriod{},
	}

	curve := BuildEquityCurve(trades, startingBalance)
	if len(curve) > 0 {
		metrics.EndingBalance = curve[len(curve)-1].Equity

		if startingBalance.GreaterThan(decimal.Zero) {
			ret, _ := metrics.EndingBalance.Sub(startingBalance).Div(startingBalance).Float64()
			totalReturn := utils.Round2(ret * 100)
			metrics.TotalReturnPct = &totalReturn
		}

		maxDD := decimal.Zero
		maxDDPct := 0.0
		for _, point := range curve {
			if point.Drawdown.GreaterThan(maxDD) {
				maxDD = point.Drawdown
			}
			if point.DrawdownPct > maxDDPct {
				maxDDPct = point.DrawdownPct
			}
		}
		metrics.MaxDrawdown = maxDD
		metrics.MaxDrawdownPct = &maxDDPct

		metrics.DrawdownPeriods = IdentifyDrawdownPeriods(curve)
		if len(metrics.DrawdownPeriods) > 0 {
			var sumPct, sumDays float64
			for _, p := range metrics.DrawdownPeriods {
				sumPct += p.MaxDepthPct
				sumDays += float64(p.DurationDays)
			}
			n := float64(len(metrics.DrawdownPeriods))
			avgPct := utils.Round2(sumPct / n)
			avgDays := utils.Round2(sumDays / n)
			metrics.AvgDrawdownPct = &avgPct
			metrics.AvgDrawdownDays = &avgDays
		}

		if metrics.TotalReturnPct != nil && maxDDPct > 0 {
			calmar := utils.Round2(*metrics.TotalReturnPct / maxDDPct)
			metrics.CalmarRatio = &calmar
		}
	}

	metrics.Monthly = c.monthlyStats(trades)
	metrics.MaxWinStreak, metrics.MaxLossStreak, metrics.CurrentStreak = streaks(trades)
	metrics.AvgHoldMinutesLong, metrics.AvgHoldMinutesShort = holdTimesByDirection(trades)

	if c.logger != nil {
		c.logger.Debug("performance metrics computed",
			zap.Int("trades", metrics.KPIs.TotalTrades),
			zap.Int("curvePoints", len(curve)),
			zap.Int("drawdownPeriods", len(metrics.DrawdownPeriods)),
		)
	}

	return metrics
}

// monthlyStats aggregates closed trades into yyyy-MM buckets.
func (c *Calculator) monthlyStats(trades []*types.Trade) []types.MonthlyStats {
	byMonth := make(map[string][]*types.Trade)
	for _, t := range journal.ClosedTrades(trades) {
		ts, ok := journal.CloseTimestamp(t)
		if !ok {
			continue
		}
		month := ts.Format("2006-01")
		byMonth[month] = append(byMonth[month], t)
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	result := make([]types.MonthlyStats, 0, len(months))
	for _, month := range months {
		bucket := byMonth[month]
		kpis := stats.Calculate(bucket)

		netR := 0.0
		if kpis.NetR != nil {
			netR = *kpis.NetR
		}

		result = append(result, types.MonthlyStats{
			Month:        month,
			Trades:       len(bucket),
			WinRate:      kpis.WinRate,
			ProfitFactor: kpis.ProfitFactor,
			NetR:         netR,
			NetPnL:       kpis.NetPnL,
		})
	}

	return result
}

// streaks tracks consecutive win/loss runs over the chronological trade
// sequence. Breakeven trades neither extend nor reset a streak.
func streaks(trades []*types.Trade) (maxWin, maxLoss, current int) {
	var curWin, curLoss int

	for _, t := range journal.WithDefinedR(journal.SortByClose(trades)) {
		switch journal.Result(t) {
		case types.OutcomeWinner:
			curWin++
			curLoss = 0
			if curWin > maxWin {
				maxWin = curWin
			}
		case types.OutcomeLoser:
			curLoss++
			curWin = 0
			if curLoss > maxLoss {
				maxLoss = curLoss
			}
		}
	}

	if curWin > 0 {
		current = curWin
	} else if curLoss > 0 {
		current = -curLoss
	}
	return maxWin, maxLoss, current
}

// holdTimesByDirection averages hold minutes separately for longs and shorts.
func holdTimesByDirection(trades []*types.Trade) (*float64, *float64) {
	var sumLong, sumShort float64
	var nLong, nShort int

	for _, t := range journal.ClosedTrades(trades) {
		minutes, ok := journal.HoldTime(t)
		if !ok {
			continue
		}
		if t.Direction == types.DirectionShort {
			sumShort += minutes
			nShort++
		} else {
			sumLong += minutes
			nLong++
		}
	}

	var avgLong, avgShort *float64
	if nLong > 0 {
		v := utils.Round2(sumLong / float64(nLong))
		avgLong = &v
	}
	if nShort > 0 {
		v := utils.Round2(sumShort / float64(nShort))
		avgShort = &v
	}
	return avgLong, avgShort
}

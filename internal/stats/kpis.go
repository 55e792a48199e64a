// Package stats provides aggregate statistics over a trade collection.
package stats

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
)

// Calculate computes the full KPI set. Metrics that cannot be computed from
// the input (empty set, no valid R, zero variance) come back nil, never zero.
func Calculate(trades []*types.Trade) types.KPIs {
	kpis := types.KPIs{
		TotalTrades: len(trades),
	}

	closed := journal.ClosedTrades(trades)
	kpis.ClosedTrades = len(closed)

	netPnL := decimal.Zero
	totalFees := decimal.Zero
	for _, t := range closed {
		netPnL = netPnL.Add(journal.NetPnL(t))
		totalFees = totalFees.Add(journal.TotalFees(t))
	}
	kpis.NetPnL = netPnL.Round(2)
	kpis.TotalFees = totalFees.Round(2)

	valid := journal.WithDefinedR(closed)
	kpis.ValidRTrades = len(valid)

	for _, t := range valid {
		switch journal.Result(t) {
		case types.OutcomeWinner:
			kpis.Winners++
		case types.OutcomeLoser:
			kpis.Losers++
		default:
			kpis.Breakevens++
		}
	}

	rs := rValues(valid)

	kpis.WinRate = winRateFromR(rs)
	kpis.ProfitFactor = profitFactorFromR(rs)
	kpis.AvgWinR, kpis.AvgLossR = avgWinLossFromR(rs)
	kpis.Expectancy = expectancyFrom(kpis.WinRate, kpis.AvgWinR, kpis.AvgLossR)
	kpis.Sharpe = sharpeFromR(rs)
	kpis.Sortino = sortinoFromR(rs)
	kpis.NetR = netRFrom(rs)
	kpis.MaxDrawdownR = MaxDrawdownR(trades)
	kpis.RecoveryFactor = RecoveryFactor(trades)
	kpis.DayWinPercent = DayWinPercent(trades)

	return kpis
}

// WinRate returns wins/total as a percentage over the defined-R trades,
// or nil when the valid set is empty. Callers must distinguish "no data"
// from a genuine 0% win rate.
func WinRate(trades []*types.Trade) *float64 {
	return winRateFromR(rValues(journal.WithDefinedR(journal.ClosedTrades(trades))))
}

// ProfitFactor returns sum of positive R over the absolute sum of negative R.
// +Inf when losses sum to zero and wins exist; nil on an empty valid set.
func ProfitFactor(trades []*types.Trade) *float64 {
	return profitFactorFromR(rValues(journal.WithDefinedR(journal.ClosedTrades(trades))))
}

// Expectancy returns the average R gained per trade, combining win rate with
// average win and loss size. Nil when it cannot be computed.
func Expectancy(trades []*types.Trade) *float64 {
	rs := rValues(journal.WithDefinedR(journal.ClosedTrades(trades)))
	winRate := winRateFromR(rs)
	avgWin, avgLoss := avgWinLossFromR(rs)
	return expectancyFrom(winRate, avgWin, avgLoss)
}

// Sharpe returns mean R over the standard deviation of R, scaled by the
// square root of the trade count. Nil below 2 trades or at zero variance.
func Sharpe(trades []*types.Trade) *float64 {
	return sharpeFromR(rValues(journal.WithDefinedR(journal.ClosedTrades(trades))))
}

// Sortino is Sharpe with downside-only deviation, scaled by sqrt of the
// trade count rather than calendar time.
func Sortino(trades []*types.Trade) *float64 {
	return sortinoFromR(rValues(journal.WithDefinedR(journal.ClosedTrades(trades))))
}

// MaxDrawdownR replays trades in chronological close order, accumulating R
// and tracking the deepest peak-to-trough fall. Nil on an empty valid set;
// zero when equity in R never fell below its peak.
func MaxDrawdownR(trades []*types.Trade) *float64 {
	ordered := journal.WithDefinedR(journal.SortByClose(trades))
	if len(ordered) == 0 {
		return nil
	}

	var cumulative, peak, maxDD float64
	for _, t := range ordered {
		r, _ := journal.RMultiple(t)
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}

	rounded := utils.Round2(maxDD)
	return &rounded
}

// RecoveryFactor is net R over the absolute max drawdown in R; zero when no
// drawdown occurred, nil when there is no data.
func RecoveryFactor(trades []*types.Trade) *float64 {
	maxDD := MaxDrawdownR(trades)
	if maxDD == nil {
		return nil
	}

	rs := rValues(journal.WithDefinedR(journal.ClosedTrades(trades)))
	var net float64
	for _, r := range rs {
		net += r
	}

	if *maxDD == 0 {
		zero := 0.0
		return &zero
	}

	rf := utils.Round2(net / math.Abs(*maxDD))
	return &rf
}

// DayWinPercent is the fraction of calendar days, grouped by local exit
// date, whose summed net P&L is positive. Returned as 0-100; nil when no
// closed trades exist.
func DayWinPercent(trades []*types.Trade) *float64 {
	days := make(map[string]decimal.Decimal)
	for _, t := range journal.ClosedTrades(trades) {
		day, ok := journal.CloseDay(t)
		if !ok {
			continue
		}
		days[day] = days[day].Add(journal.NetPnL(t))
	}

	if len(days) == 0 {
		return nil
	}

	winDays := 0
	for _, pnl := range days {
		if pnl.GreaterThan(decimal.Zero) {
			winDays++
		}
	}

	pct := utils.Round2(float64(winDays) / float64(len(days)) * 100)
	return &pct
}

// rValues extracts R-multiples from an already filtered trade set.
func rValues(trades []*types.Trade) []float64 {
	rs := make([]float64, 0, len(trades))
	for _, t := range trades {
		if r, ok := journal.RMultiple(t); ok {
			rs = append(rs, r)
		}
	}
	return rs
}

func winRateFromR(rs []float64) *float64 {
	if len(rs) == 0 {
		return nil
	}
	wins := 0
	for _, r := range rs {
		if r > journal.BreakevenBandR {
			wins++
		}
	}
	pct := utils.Round2(float64(wins) / float64(len(rs)) * 100)
	return &pct
}

func profitFactorFromR(rs []float64) *float64 {
	if len(rs) == 0 {
		return nil
	}

	var grossWin, grossLoss float64
	for _, r := range rs {
		if r > 0 {
			grossWin += r
		} else {
			grossLoss += math.Abs(r)
		}
	}

	var pf float64
	switch {
	case grossLoss > 0:
		pf = utils.Round2(grossWin / grossLoss)
	case grossWin > 0:
		pf = math.Inf(1)
	default:
		pf = 0
	}
	return &pf
}

// avgWinLossFromR returns average winner R and average loser R magnitude.
// Winners and losers here are classified by the breakeven band, matching
// the win rate used in expectancy.
func avgWinLossFromR(rs []float64) (*float64, *float64) {
	var sumWin, sumLoss float64
	var wins, losses int
	for _, r := range rs {
		switch {
		case r > journal.BreakevenBandR:
			sumWin += r
			wins++
		case r < -journal.BreakevenBandR:
			sumLoss += math.Abs(r)
			losses++
		}
	}

	var avgWin, avgLoss *float64
	if wins > 0 {
		v := utils.Round2(sumWin / float64(wins))
		avgWin = &v
	}
	if losses > 0 {
		v := utils.Round2(sumLoss / float64(losses))
		avgLoss = &v
	}
	return avgWin, avgLoss
}

// expectancyFrom computes winFraction*avgWinR - lossFraction*avgLossR.
// The win rate is converted from percentage to fraction at this boundary;
// everywhere outside this package win rates are 0-100.
func expectancyFrom(winRatePct, avgWinR, avgLossR *float64) *float64 {
	if winRatePct == nil {
		return nil
	}

	p := *winRatePct / 100
	win := 0.0
	if avgWinR != nil {
		win = *avgWinR
	}
	loss := 0.0
	if avgLossR != nil {
		loss = *avgLossR
	}

	exp := utils.Round2(p*win - (1-p)*loss)
	return &exp
}

func sharpeFromR(rs []float64) *float64 {
	if len(rs) < 2 {
		return nil
	}
	sd := stdDev(rs)
	if sd == 0 {
		return nil
	}
	sharpe := utils.Round2(mean(rs) / sd * math.Sqrt(float64(len(rs))))
	return &sharpe
}

func sortinoFromR(rs []float64) *float64 {
	if len(rs) < 2 {
		return nil
	}
	dd := downsideDeviation(rs)
	if dd == 0 {
		return nil
	}
	sortino := utils.Round2(mean(rs) / dd * math.Sqrt(float64(len(rs))))
	return &sortino
}

func netRFrom(rs []float64) *float64 {
	if len(rs) == 0 {
		return nil
	}
	var net float64
	for _, r := range rs {
		net += r
	}
	rounded := utils.Round2(net)
	return &rounded
}

// mean calculates arithmetic mean
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev calculates sample standard deviation
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(values)-1))
}

// downsideDeviation calculates standard deviation of negative values only
func downsideDeviation(values []float64) float64 {
	var negative []float64
	for _, v := range values {
		if v < 0 {
			negative = append(negative, v)
		}
	}
	if len(negative) == 0 {
		return 0
	}
	return stdDev(negative)
}

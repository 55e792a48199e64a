// Package risk provides position sizing and risk-rule evaluation.
package risk

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/internal/stats"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
)

const (
	// KellyFraction is the fraction of full Kelly reported as a suggestion.
	KellyFraction = 0.25
	// KellyCap bounds the suggested sizing fraction.
	KellyCap = 0.05
	// KellyMinSampleSize gates Kelly-derived sizing: below this many closed
	// trades with defined R the estimate is too unstable to trust.
	KellyMinSampleSize = 30

	lotUnits = 100000
)

// PositionSize sizes a position from stop distance. Pip distance uses
// symbol-class multipliers: JPY pairs x100, metals /0.1, else x10000.
// A zero pip distance or pip value yields a zero-size result instead of a
// division by zero.
func PositionSize(balance decimal.Decimal, riskPct float64, entry, stop decimal.Decimal, pipValue float64, symbol string) types.PositionSizeResult {
	riskAmount := balance.Mul(decimal.NewFromFloat(riskPct / 100)).Round(2)
	result := types.PositionSizeResult{RiskAmount: riskAmount}

	priceDiff, _ := entry.Sub(stop).Abs().Float64()
	result.PipDistance = utils.Round2(priceDiff * pipMultiplier(symbol))

	if result.PipDistance == 0 || pipValue == 0 {
		return result
	}

	risk, _ := riskAmount.Float64()
	result.LotSize = utils.Round2(risk / (result.PipDistance * pipValue))
	result.Units = utils.Round2(result.LotSize * lotUnits)
	return result
}

func pipMultiplier(symbol string) float64 {
	s := strings.ToUpper(symbol)
	switch {
	case strings.Contains(s, "JPY"):
		return 100
	case strings.Contains(s, "XAU") || strings.Contains(s, "XAG"):
		return 1 / 0.1
	default:
		return 10000
	}
}

// KellyCriterion computes f* = (p*b - q)/b and reports a quarter-Kelly
// suggestion capped at 5%. The raw value is exposed for display only; the
// suggestion is what sizing should use.
func KellyCriterion(winRatePct, avgWin, avgLoss float64) types.KellyResult {
	p := winRatePct / 100
	if p <= 0 || p >= 1 || avgLoss <= 0 {
		return types.KellyResult{}
	}

	b := avgWin / avgLoss
	if b <= 0 {
		return types.KellyResult{}
	}

	kelly := p - (1-p)/b
	if kelly < 0 {
		kelly = 0
	}
	if kelly > 1 {
		kelly = 1
	}

	suggested := math.Min(kelly*KellyFraction, KellyCap)
	return types.KellyResult{
		FullKelly: utils.Round2(kelly*100) / 100,
		Suggested: utils.Round2(suggested*100) / 100,
	}
}

// OptimalPositionSize suggests a per-trade risk percentage. Below the
// minimum sample size it returns the configured conservative default
// instead of an unstable Kelly estimate.
func OptimalPositionSize(trades []*types.Trade, settings types.RiskSettings) types.OptimalSizeResult {
	valid := journal.WithDefinedR(journal.ClosedTrades(trades))
	result := types.OptimalSizeResult{
		SuggestedRiskPct: settings.DefaultRiskPct,
		SampleSize:       len(valid),
	}

	if len(valid) < KellyMinSampleSize {
		return result
	}

	kpis := stats.Calculate(valid)
	if kpis.WinRate == nil || kpis.AvgWinR == nil || kpis.AvgLossR == nil {
		return result
	}

	kelly := KellyCriterion(*kpis.WinRate, *kpis.AvgWinR, *kpis.AvgLossR)
	result.SuggestedRiskPct = utils.Round2(kelly.Suggested * 100)
	result.KellyBased = true
	return result
}

// Package journal provides per-trade metric primitives.
package journal

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
)

// BreakevenBandR is the neutral band around 0R: trades inside it classify
// as breakeven rather than winner or loser.
const BreakevenBandR = 0.1

// rMismatchTolerance is the max allowed gap between a stored and a derived
// R-multiple before the pair is flagged as a data integrity warning.
const rMismatchTolerance = 0.05

// RMultiple returns the trade's profit normalized by its initial stop risk,
// rounded to 2 decimals. The price-derived value is preferred; the journal's
// stored R-multiple is the fallback. ok is false when neither is available.
func RMultiple(t *types.Trade) (float64, bool) {
	r, source := RMultipleSource(t)
	return r, source != types.RSourceNone
}

// RMultipleSource returns the R-multiple together with where it came from,
// so callers can tell a derived value from a stored fallback.
func RMultipleSource(t *types.Trade) (float64, types.RSource) {
	if r, ok := derivedR(t); ok {
		return r, types.RSourceDerived
	}
	if t.StoredR != nil {
		return utils.Round2(*t.StoredR), types.RSourceStored
	}
	return 0, types.RSourceNone
}

// derivedR computes R from entry/exit/stop prices. Undefined when the trade
// is missing an exit or stop, or when the stop distance is zero.
func derivedR(t *types.Trade) (float64, bool) {
	if t.ExitPrice == nil || t.StopPrice == nil {
		return 0, false
	}

	stopDistance := t.EntryPrice.Sub(*t.StopPrice).Abs()
	if stopDistance.IsZero() {
		return 0, false
	}

	move := t.ExitPrice.Sub(t.EntryPrice)
	if t.Direction == types.DirectionShort {
		move = move.Neg()
	}

	r, _ := move.Div(stopDistance).Float64()
	return utils.Round2(r), true
}

// HoldTime returns the trade's duration in minutes, preferring intraday
// open/close time-of-day fields over date-only granularity. ok is false
// when an endpoint is missing or the difference is negative.
func HoldTime(t *types.Trade) (float64, bool) {
	if t.ExitDate == nil {
		return 0, false
	}

	opened := timeAt(t.EntryDate, t.OpenTime)
	closed := timeAt(*t.ExitDate, t.CloseTime)

	minutes := closed.Sub(opened).Minutes()
	if minutes < 0 {
		return 0, false
	}
	return minutes, true
}

// NetPnL returns pnl minus commission, swap and slippage, rounded to 2
// decimals. Missing fee components are zero-valued decimals already.
func NetPnL(t *types.Trade) decimal.Decimal {
	fees := t.Commission.Add(t.Swap).Add(t.Slippage)
	return t.PnL.Sub(fees).Round(2)
}

// TotalFees returns commission + swap + slippage, rounded to 2 decimals.
func TotalFees(t *types.Trade) decimal.Decimal {
	return t.Commission.Add(t.Swap).Add(t.Slippage).Round(2)
}

// Result classifies the trade by R with a ±0.1R neutral band. Trades inside
// the band, or with an undefined R, are breakeven.
func Result(t *types.Trade) types.TradeOutcome {
	r, ok := RMultiple(t)
	if !ok {
		return types.OutcomeBreakeven
	}
	switch {
	case r > BreakevenBandR:
		return types.OutcomeWinner
	case r < -BreakevenBandR:
		return types.OutcomeLoser
	default:
		return types.OutcomeBreakeven
	}
}

// CloseTimestamp returns the instant the trade closed, using the intraday
// close time when present. ok is false for open trades.
func CloseTimestamp(t *types.Trade) (time.Time, bool) {
	if !t.IsClosed() {
		return time.Time{}, false
	}
	return timeAt(*t.ExitDate, t.CloseTime), true
}

// CloseDay returns the trade's local close date as yyyy-MM-dd.
func CloseDay(t *types.Trade) (string, bool) {
	ts, ok := CloseTimestamp(t)
	if !ok {
		return "", false
	}
	return ts.Format("2006-01-02"), true
}

// ClosedTrades filters to closed trades, preserving input order.
func ClosedTrades(trades []*types.Trade) []*types.Trade {
	closed := make([]*types.Trade, 0, len(trades))
	for _, t := range trades {
		if t.IsClosed() {
			closed = append(closed, t)
		}
	}
	return closed
}

// WithDefinedR filters to trades with a defined R-multiple, preserving order.
func WithDefinedR(trades []*types.Trade) []*types.Trade {
	valid := make([]*types.Trade, 0, len(trades))
	for _, t := range trades {
		if _, ok := RMultiple(t); ok {
			valid = append(valid, t)
		}
	}
	return valid
}

// SortByClose returns a new slice of the closed trades in chronological close
// order. Ties keep input order.
func SortByClose(trades []*types.Trade) []*types.Trade {
	sorted := ClosedTrades(trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := CloseTimestamp(sorted[i])
		tj, _ := CloseTimestamp(sorted[j])
		return ti.Before(tj)
	})
	return sorted
}

// RIntegrityWarnings flags trades whose stored R-multiple disagrees with the
// price-derived value beyond tolerance. Neither value is silently preferred;
// the caller decides how to surface the mismatch.
func RIntegrityWarnings(trades []*types.Trade) []types.RMismatch {
	var warnings []types.RMismatch
	for _, t := range trades {
		derived, ok := derivedR(t)
		if !ok || t.StoredR == nil {
			continue
		}
		stored := utils.Round2(*t.StoredR)
		delta := math.Abs(derived - stored)
		if delta > rMismatchTolerance {
			warnings = append(warnings, types.RMismatch{
				TradeID: t.ID,
				Derived: derived,
				Stored:  stored,
				Delta:   utils.Round2(delta),
			})
		}
	}
	return warnings
}

// timeAt anchors an optional "15:04" time-of-day string onto a date. An
// empty or unparseable string falls back to the date's own instant.
func timeAt(date time.Time, hhmm string) time.Time {
	if hhmm == "" {
		return date
	}
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location())
}

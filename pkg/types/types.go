// Package types provides shared type definitions for the journal analytics backend.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDirection represents long or short
type TradeDirection string

const (
	DirectionLong  TradeDirection = "long"
	DirectionShort TradeDirection = "short"
)

// TradeOutcome classifies a closed trade by its R-multiple
type TradeOutcome string

const (
	OutcomeWinner    TradeOutcome = "winner"
	OutcomeLoser     TradeOutcome = "loser"
	OutcomeBreakeven TradeOutcome = "breakeven"
)

// RSource indicates where a trade's R-multiple came from
type RSource string

const (
	RSourceDerived RSource = "derived"
	RSourceStored  RSource = "stored"
	RSourceNone    RSource = "none"
)

// Trade represents one journaled position, open or closed.
// Exit fields are nil while the position is open.
type Trade struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Direction  TradeDirection   `json:"direction"`
	Quantity   decimal.Decimal  `json:"quantity"`
	EntryPrice decimal.Decimal  `json:"entryPrice"`
	ExitPrice  *decimal.Decimal `json:"exitPrice,omitempty"`
	StopPrice  *decimal.Decimal `json:"stopPrice,omitempty"`
	EntryDate  time.Time        `json:"entryDate"`
	ExitDate   *time.Time       `json:"exitDate,omitempty"`

	// Optional intraday time-of-day strings ("15:04"), finer grained
	// than date-only entry/exit timestamps.
	OpenTime  string `json:"openTime,omitempty"`
	CloseTime string `json:"closeTime,omitempty"`

	PnL        decimal.Decimal `json:"pnl"`
	Commission decimal.Decimal `json:"commission"`
	Swap       decimal.Decimal `json:"swap"`
	Slippage   decimal.Decimal `json:"slippage"`

	// StoredR is the journal's precomputed R-multiple, used as a fallback
	// when the price-derived value is unavailable.
	StoredR *float64 `json:"rMultiple,omitempty"`

	// MAE/MFE in R-units, when the journal recorded them.
	MAE *float64 `json:"mae,omitempty"`
	MFE *float64 `json:"mfe,omitempty"`

	Session     string   `json:"session,omitempty"`
	SessionHour string   `json:"sessionHour,omitempty"` // e.g. "NY9", "L14", "A2"
	SetupGrade  string   `json:"setupGrade,omitempty"`
	SetupScore  *float64 `json:"setupScore,omitempty"`
	PlaybookID  string   `json:"playbookId,omitempty"`
}

// IsClosed reports whether the trade has both an exit price and exit date.
func (t *Trade) IsClosed() bool {
	return t.ExitPrice != nil && t.ExitDate != nil
}

// KPIs represents aggregate statistics over a trade collection.
// Pointer fields are nil when there is no data to compute them from;
// nil is never interchangeable with zero.
type KPIs struct {
	TotalTrades  int `json:"totalTrades"`
	ClosedTrades int `json:"closedTrades"`
	ValidRTrades int `json:"validRTrades"`
	Winners      int `json:"winners"`
	Losers       int `json:"losers"`
	Breakevens   int `json:"breakevens"`

	WinRate        *float64 `json:"winRate,omitempty"`      // 0-100
	ProfitFactor   *float64 `json:"profitFactor,omitempty"` // +Inf when no losses
	Expectancy     *float64 `json:"expectancy,omitempty"`   // R per trade
	AvgWinR        *float64 `json:"avgWinR,omitempty"`
	AvgLossR       *float64 `json:"avgLossR,omitempty"` // positive magnitude
	Sharpe         *float64 `json:"sharpe,omitempty"`
	Sortino        *float64 `json:"sortino,omitempty"`
	MaxDrawdownR   *float64 `json:"maxDrawdownR,omitempty"`
	RecoveryFactor *float64 `json:"recoveryFactor,omitempty"`
	DayWinPercent  *float64 `json:"dayWinPercent,omitempty"` // 0-100
	NetR           *float64 `json:"netR,omitempty"`

	NetPnL    decimal.Decimal `json:"netPnl"`
	TotalFees decimal.Decimal `json:"totalFees"`
}

// EquityCurvePoint is one simulated account state per calendar day with
// trade activity. Derived, never persisted.
type EquityCurvePoint struct {
	Date             string          `json:"date"` // yyyy-MM-dd local
	Equity           decimal.Decimal `json:"equity"`
	Peak             decimal.Decimal `json:"peak"`
	Drawdown         decimal.Decimal `json:"drawdown"`
	DrawdownPct      float64         `json:"drawdownPct"`
	DayReturnPct     float64         `json:"dayReturnPct"`
	DayTrades        int             `json:"dayTrades"`
	CumulativeTrades int             `json:"cumulativeTrades"`
}

// DrawdownPeriod is a contiguous span where equity sits below its running peak.
// An unrecovered period at the end of the curve has Recovered=false and no EndDate.
type DrawdownPeriod struct {
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate,omitempty"`
	Recovered    bool            `json:"recovered"`
	MaxDepth     decimal.Decimal `json:"maxDepth"`
	MaxDepthPct  float64         `json:"maxDepthPct"`
	DurationDays int             `json:"durationDays"`
}

// MonthlyStats aggregates one yyyy-MM bucket.
type MonthlyStats struct {
	Month        string          `json:"month"` // yyyy-MM
	Trades       int             `json:"trades"`
	WinRate      *float64        `json:"winRate,omitempty"`
	ProfitFactor *float64        `json:"profitFactor,omitempty"`
	NetR         float64         `json:"netR"`
	NetPnL       decimal.Decimal `json:"netPnl"`
}

// PerformanceMetrics combines trade KPIs with equity-curve derived statistics.
type PerformanceMetrics struct {
	KPIs KPIs `json:"kpis"`

	StartingBalance decimal.Decimal `json:"startingBalance"`
	EndingBalance   decimal.Decimal `json:"endingBalance"`
	TotalReturnPct  *float64        `json:"totalReturnPct,omitempty"`

	MaxDrawdown     decimal.Decimal `json:"maxDrawdown"`
	MaxDrawdownPct  *float64        `json:"maxDrawdownPct,omitempty"`
	AvgDrawdownPct  *float64        `json:"avgDrawdownPct,omitempty"`
	AvgDrawdownDays *float64        `json:"avgDrawdownDays,omitempty"`
	CalmarRatio     *float64        `json:"calmarRatio,omitempty"`

	MaxWinStreak  int `json:"maxWinStreak"`
	MaxLossStreak int `json:"maxLossStreak"`
	// CurrentStreak is positive for a run of winners, negative for losers.
	CurrentStreak int `json:"currentStreak"`

	AvgHoldMinutesLong  *float64 `json:"avgHoldMinutesLong,omitempty"`
	AvgHoldMinutesShort *float64 `json:"avgHoldMinutesShort,omitempty"`

	Monthly         []MonthlyStats   `json:"monthly"`
	DrawdownPeriods []DrawdownPeriod `json:"drawdownPeriods"`
}

// RiskStatus is the outcome of a single risk rule check.
type RiskStatus string

const (
	RiskStatusOK       RiskStatus = "ok"
	RiskStatusWarning  RiskStatus = "warning"
	RiskStatusViolated RiskStatus = "violated"
)

// RiskRule is a named threshold check against a configured limit.
type RiskRule struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Current float64    `json:"current"`
	Limit   float64    `json:"limit"`
	Status  RiskStatus `json:"status"`
}

// RiskMetrics captures risk budget usage over calendar windows.
// Currency figures use the flat 1%-of-balance-per-R convention.
type RiskMetrics struct {
	DailyRiskUsed   decimal.Decimal `json:"dailyRiskUsed"`
	WeeklyRiskUsed  decimal.Decimal `json:"weeklyRiskUsed"`
	MonthlyRiskUsed decimal.Decimal `json:"monthlyRiskUsed"`

	DailyRiskRemaining   decimal.Decimal `json:"dailyRiskRemaining"`
	WeeklyRiskRemaining  decimal.Decimal `json:"weeklyRiskRemaining"`
	MonthlyRiskRemaining decimal.Decimal `json:"monthlyRiskRemaining"`

	CurrentDrawdown    decimal.Decimal `json:"currentDrawdown"`
	CurrentDrawdownPct float64         `json:"currentDrawdownPct"`
	ConsecutiveLosses  int             `json:"consecutiveLosses"`
}

// PositionSizeResult is the output of stop-distance position sizing.
type PositionSizeResult struct {
	RiskAmount  decimal.Decimal `json:"riskAmount"`
	PipDistance float64         `json:"pipDistance"`
	LotSize     float64         `json:"lotSize"`
	Units       float64         `json:"units"`
}

// KellyResult reports Kelly-derived sizing. Suggested is always the capped
// fractional value, never raw Kelly.
type KellyResult struct {
	FullKelly float64 `json:"fullKelly"`
	Suggested float64 `json:"suggested"` // fraction in [0, 0.05]
}

// OptimalSizeResult is a risk-percent suggestion gated on sample size.
type OptimalSizeResult struct {
	SuggestedRiskPct float64 `json:"suggestedRiskPct"`
	SampleSize       int     `json:"sampleSize"`
	KellyBased       bool    `json:"kellyBased"`
}

// SegmentStats is one bucket of a segmentation with its aggregate statistics.
type SegmentStats struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Trades int    `json:"trades"`
	KPIs   KPIs   `json:"kpis"`
}

// HistogramBin is one bucket of a value distribution.
type HistogramBin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Label string  `json:"label"`
	Count int     `json:"count"`
}

// Insight is a short auto-generated observation about a segmentation bucket.
type Insight struct {
	Kind       string  `json:"kind"` // "best_session", "worst_day_of_week"
	Message    string  `json:"message"`
	Expectancy float64 `json:"expectancy"`
	SampleSize int     `json:"sampleSize"`
}

// RMismatch flags a trade whose stored R-multiple disagrees with the
// price-derived value.
type RMismatch struct {
	TradeID string  `json:"tradeId"`
	Derived float64 `json:"derived"`
	Stored  float64 `json:"stored"`
	Delta   float64 `json:"delta"`
}

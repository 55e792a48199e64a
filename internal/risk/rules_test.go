package risk_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/risk"
	"github.com/tradelens/journal-backend/pkg/types"
)

func TestMetricsRiskWindows(t *testing.T) {
	// Wednesday 2024-05-15. Losses: same day, same ISO week (Monday the
	// 13th), same month only (the 2nd), previous month (excluded).
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	trades := []*types.Trade{
		rTrade("today", -2, "2024-05-15"),
		rTrade("week", -2, "2024-05-13"),
		rTrade("month", -2, "2024-05-02"),
		rTrade("old", -2, "2024-04-20"),
		rTrade("win", 3, "2024-05-15"), // wins never consume budget
	}

	metrics := risk.Metrics(trades, decimal.NewFromInt(10000), types.DefaultRiskSettings(), now)

	if !metrics.DailyRiskUsed.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected daily used 200, got %s", metrics.DailyRiskUsed)
	}
	if !metrics.WeeklyRiskUsed.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected weekly used 400, got %s", metrics.WeeklyRiskUsed)
	}
	if !metrics.MonthlyRiskUsed.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected monthly used 600, got %s", metrics.MonthlyRiskUsed)
	}

	// Defaults: daily 3% = 300, weekly 6% = 600, monthly 10% = 1000.
	if !metrics.DailyRiskRemaining.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected daily remaining 100, got %s", metrics.DailyRiskRemaining)
	}
	if !metrics.WeeklyRiskRemaining.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected weekly remaining 200, got %s", metrics.WeeklyRiskRemaining)
	}
	if !metrics.MonthlyRiskRemaining.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected monthly remaining 400, got %s", metrics.MonthlyRiskRemaining)
	}
}

func TestMetricsRemainingFlooredAtZero(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	trades := []*types.Trade{
		rTrade("l1", -2, "2024-05-15"),
		rTrade("l2", -2, "2024-05-15"),
	}

	metrics := risk.Metrics(trades, decimal.NewFromInt(10000), types.DefaultRiskSettings(), now)
	if !metrics.DailyRiskRemaining.Equal(decimal.Zero) {
		t.Errorf("overspent budget should floor at zero, got %s", metrics.DailyRiskRemaining)
	}
}

func TestMetricsConsecutiveLosses(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	trades := []*types.Trade{
		rTrade("w1", 2, "2024-05-10"),
		rTrade("l1", -1, "2024-05-11"),
		rTrade("l2", -1, "2024-05-12"),
		rTrade("l3", -1, "2024-05-13"),
	}

	metrics := risk.Metrics(trades, decimal.NewFromInt(10000), types.DefaultRiskSettings(), now)
	if metrics.ConsecutiveLosses != 3 {
		t.Errorf("expected 3 consecutive losses, got %d", metrics.ConsecutiveLosses)
	}
}

func TestMetricsCurrentDrawdown(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	trades := []*types.Trade{
		rTrade("w1", 2, "2024-05-10"),  // cumulative +200, peak 200
		rTrade("l1", -1, "2024-05-11"), // cumulative +100
	}

	metrics := risk.Metrics(trades, decimal.NewFromInt(10000), types.DefaultRiskSettings(), now)
	if !metrics.CurrentDrawdown.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected current drawdown 100, got %s", metrics.CurrentDrawdown)
	}
	// 100 below a peak equity of 10200.
	if metrics.CurrentDrawdownPct != 0.98 {
		t.Errorf("expected drawdown pct 0.98, got %v", metrics.CurrentDrawdownPct)
	}
}

func TestEvaluateRulesStatuses(t *testing.T) {
	settings := types.DefaultRiskSettings()
	balance := decimal.NewFromInt(10000)

	metrics := &types.RiskMetrics{
		DailyRiskUsed:   decimal.NewFromInt(100), // 33% of the 300 budget
		WeeklyRiskUsed:  decimal.NewFromInt(480), // exactly 80% of 600
		MonthlyRiskUsed: decimal.NewFromInt(1000),
	}

	rules := risk.EvaluateRules(metrics, settings, balance, 0)
	byName := make(map[string]types.RiskRule, len(rules))
	for _, rule := range rules {
		byName[rule.Name] = rule
	}

	if byName["daily_risk"].Status != types.RiskStatusOK {
		t.Errorf("daily: expected ok, got %s", byName["daily_risk"].Status)
	}
	if byName["weekly_risk"].Status != types.RiskStatusWarning {
		t.Errorf("weekly: expected warning at 80%%, got %s", byName["weekly_risk"].Status)
	}
	if byName["monthly_risk"].Status != types.RiskStatusViolated {
		t.Errorf("monthly: expected violated at the limit, got %s", byName["monthly_risk"].Status)
	}
}

func TestEvaluateRulesOpenPositionsAndLosses(t *testing.T) {
	settings := types.DefaultRiskSettings()
	metrics := &types.RiskMetrics{ConsecutiveLosses: 5}

	rules := risk.EvaluateRules(metrics, settings, decimal.NewFromInt(10000), 3)
	byName := make(map[string]types.RiskRule, len(rules))
	for _, rule := range rules {
		byName[rule.Name] = rule
	}

	if byName["consecutive_losses"].Status != types.RiskStatusViolated {
		t.Errorf("expected violated at max consecutive losses, got %s", byName["consecutive_losses"].Status)
	}
	if byName["open_positions"].Status != types.RiskStatusViolated {
		t.Errorf("expected violated at max open positions, got %s", byName["open_positions"].Status)
	}
}

func TestEvaluateRulesUnconfiguredLimit(t *testing.T) {
	settings := types.DefaultRiskSettings()
	settings.MaxConsecutiveLosses = 0

	metrics := &types.RiskMetrics{ConsecutiveLosses: 12}
	rules := risk.EvaluateRules(metrics, settings, decimal.NewFromInt(10000), 0)
	for _, rule := range rules {
		if rule.Name == "consecutive_losses" && rule.Status != types.RiskStatusOK {
			t.Errorf("zero limit should disable the check, got %s", rule.Status)
		}
	}
}

// Package types provides configuration types for the journal analytics backend.
package types

import "time"

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host          string        `json:"host" mapstructure:"host"`
	Port          int           `json:"port" mapstructure:"port"`
	ReadTimeout   time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
	WebSocketPath string        `json:"webSocketPath" mapstructure:"websocket_path"`
}

// RiskSettings holds the configurable thresholds risk rules are evaluated
// against. Percentages are of account balance, 0-100.
type RiskSettings struct {
	MaxDailyRiskPct      float64 `json:"maxDailyRiskPct" mapstructure:"max_daily_risk_pct"`
	MaxWeeklyRiskPct     float64 `json:"maxWeeklyRiskPct" mapstructure:"max_weekly_risk_pct"`
	MaxMonthlyRiskPct    float64 `json:"maxMonthlyRiskPct" mapstructure:"max_monthly_risk_pct"`
	MaxDrawdownPct       float64 `json:"maxDrawdownPct" mapstructure:"max_drawdown_pct"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses" mapstructure:"max_consecutive_losses"`
	MaxOpenPositions     int     `json:"maxOpenPositions" mapstructure:"max_open_positions"`

	// DefaultRiskPct is the per-trade risk suggestion used below the
	// Kelly sample-size gate.
	DefaultRiskPct float64 `json:"defaultRiskPct" mapstructure:"default_risk_pct"`
}

// DefaultRiskSettings returns conservative defaults.
func DefaultRiskSettings() RiskSettings {
	return RiskSettings{
		MaxDailyRiskPct:      3,
		MaxWeeklyRiskPct:     6,
		MaxMonthlyRiskPct:    10,
		MaxDrawdownPct:       15,
		MaxConsecutiveLosses: 5,
		MaxOpenPositions:     3,
		DefaultRiskPct:       1,
	}
}

// DefaultServerConfig returns server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "localhost",
		Port:          8080,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  30 * time.Second,
		WebSocketPath: "/ws",
	}
}

// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/tradelens/journal-backend/pkg/types"
)

// Config is the full server configuration.
type Config struct {
	LogLevel string             `mapstructure:"log_level"`
	Server   types.ServerConfig `mapstructure:"server"`
	Risk     types.RiskSettings `mapstructure:"risk"`
}

// Load reads configuration from an optional YAML file and JOURNAL_* env
// vars, falling back to defaults. An empty path skips the file lookup.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOURNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	server := types.DefaultServerConfig()
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", server.Host)
	v.SetDefault("server.port", server.Port)
	v.SetDefault("server.read_timeout", server.ReadTimeout)
	v.SetDefault("server.write_timeout", server.WriteTimeout)
	v.SetDefault("server.websocket_path", server.WebSocketPath)

	risk := types.DefaultRiskSettings()
	v.SetDefault("risk.max_daily_risk_pct", risk.MaxDailyRiskPct)
	v.SetDefault("risk.max_weekly_risk_pct", risk.MaxWeeklyRiskPct)
	v.SetDefault("risk.max_monthly_risk_pct", risk.MaxMonthlyRiskPct)
	v.SetDefault("risk.max_drawdown_pct", risk.MaxDrawdownPct)
	v.SetDefault("risk.max_consecutive_losses", risk.MaxConsecutiveLosses)
	v.SetDefault("risk.max_open_positions", risk.MaxOpenPositions)
	v.SetDefault("risk.default_risk_pct", risk.DefaultRiskPct)
}

package config

import (
	"fmt"
	"math"
	"strings"

	"gridbot/internal/market"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Grid.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if e.Name != "binance" {
		return fmt.Errorf("exchange.name %q is not supported (only binance)", e.Name)
	}
	if e.DryRun {
		return nil
	}
	if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required when dry_run=false")
	}
	return nil
}

func (g *GridConfig) validate() error {
	if g.Symbol == "" {
		return fmt.Errorf("grid.symbol is required")
	}
	if _, ok := market.ParseIntervalDuration(g.Timeframe); !ok {
		return fmt.Errorf("grid.timeframe %q is invalid", g.Timeframe)
	}
	if !positive(g.Support) || !positive(g.Resistance) {
		return fmt.Errorf("grid.support and grid.resistance must be > 0")
	}
	if g.Support >= g.Resistance {
		return fmt.Errorf("grid.support (%.8g) must be below grid.resistance (%.8g)", g.Support, g.Resistance)
	}
	if !positive(g.InitialCash) {
		return fmt.Errorf("grid.initial_cash must be > 0")
	}
	if g.Leverage < 1 || g.Leverage > 100 {
		return fmt.Errorf("grid.leverage must be within [1, 100]")
	}
	switch g.Mode {
	case "geometric", "arithmetic":
	default:
		return fmt.Errorf("grid.mode must be geometric or arithmetic, got %q", g.Mode)
	}
	if g.MakerFee < 0 || g.MakerFee >= 1 {
		return fmt.Errorf("grid.maker_fee must be within [0, 1)")
	}
	if g.MinReturn < 0 {
		return fmt.Errorf("grid.min_return must be >= 0")
	}
	if !positive(g.VolatilityK) {
		return fmt.Errorf("grid.volatility_k must be > 0")
	}
	if g.ATRPeriod <= 0 {
		return fmt.Errorf("grid.atr_period must be > 0")
	}
	if g.Lookback <= g.ATRPeriod {
		return fmt.Errorf("grid.lookback (%d) must exceed grid.atr_period (%d)", g.Lookback, g.ATRPeriod)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.PollIntervalSeconds <= 0 {
		return fmt.Errorf("risk.poll_interval_seconds must be > 0")
	}
	if !positive(r.MaxPositionUSD) {
		return fmt.Errorf("risk.max_position_usd must be > 0")
	}
	if r.MaxDrawdownPct <= 0 || r.MaxDrawdownPct > 1 {
		return fmt.Errorf("risk.max_drawdown_pct must be within (0, 1]")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

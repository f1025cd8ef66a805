package backtest

import (
	"fmt"
	"math"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/grid"
)

// RunConfig 记录本次回放的参数快照，便于重放。
type RunConfig struct {
	Symbol      string    `json:"symbol" yaml:"symbol"`
	Timeframe   string    `json:"timeframe" yaml:"timeframe"`
	StartTS     int64     `json:"start_ts" yaml:"start_ts"`
	EndTS       int64     `json:"end_ts,omitempty" yaml:"end_ts,omitempty"`
	Warmup      int       `json:"warmup" yaml:"warmup"`
	Support     float64   `json:"support" yaml:"support"`
	Resistance  float64   `json:"resistance" yaml:"resistance"`
	Mode        grid.Mode `json:"mode" yaml:"mode"`
	GridCount   int       `json:"grid_count,omitempty" yaml:"grid_count,omitempty"`
	InitialCash float64   `json:"initial_cash" yaml:"initial_cash"`
	Leverage    float64   `json:"leverage" yaml:"leverage"`
	MakerFee    float64   `json:"maker_fee" yaml:"maker_fee"`
	MinReturn   float64   `json:"min_return" yaml:"min_return"`
	VolatilityK float64   `json:"volatility_k" yaml:"volatility_k"`
	ATRPeriod   int       `json:"atr_period" yaml:"atr_period"`
	// Stop limits apply the live safety rule after every bar; 0 disables one.
	MaxDrawdownPct float64 `json:"max_drawdown_pct,omitempty" yaml:"max_drawdown_pct,omitempty"`
	MaxPositionUSD float64 `json:"max_position_usd,omitempty" yaml:"max_position_usd,omitempty"`
}

func (c RunConfig) validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.InitialCash <= 0 {
		return &grid.ConfigError{Field: "initial_cash", Reason: "must be > 0"}
	}
	if c.Leverage < 1 {
		return &grid.ConfigError{Field: "leverage", Reason: "must be >= 1"}
	}
	if c.GridCount == 0 && c.StartTS == 0 && c.Warmup <= c.ATRPeriod {
		return &grid.ConfigError{Field: "warmup", Reason: fmt.Sprintf("must exceed atr_period (%d) when grid_count is derived", c.ATRPeriod)}
	}
	return nil
}

// stopLimits maps the optional stop thresholds onto the live risk limits.
func (c RunConfig) stopLimits() config.RiskLimits {
	limits := config.RiskLimits{MaxPositionUSD: math.Inf(1), MaxDrawdownPct: math.Inf(1)}
	if c.MaxDrawdownPct > 0 {
		limits.MaxDrawdownPct = c.MaxDrawdownPct
	}
	if c.MaxPositionUSD > 0 {
		limits.MaxPositionUSD = c.MaxPositionUSD
	}
	return limits
}

// RunStats 汇总回放结果。FinalEquity 按最后一根收盘价盯市。
type RunStats struct {
	Bars         int       `json:"bars" yaml:"bars"`
	Spacing      float64   `json:"spacing" yaml:"spacing"`
	FinalEquity  float64   `json:"final_equity" yaml:"final_equity"`
	Profit       float64   `json:"profit" yaml:"profit"`
	RoundTrips   int       `json:"round_trips" yaml:"round_trips"`
	StoppedEarly bool      `json:"stopped_early,omitempty" yaml:"stopped_early,omitempty"`
	StopReason   string    `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
}

// Result 是一次回放的完整输出。
type Result struct {
	ID     string          `json:"id" yaml:"id"`
	Config RunConfig       `json:"config" yaml:"config"`
	Stats  RunStats        `json:"stats" yaml:"stats"`
	Grid   grid.Statistics `json:"grid" yaml:"grid"`
	Fills  []grid.Order    `json:"fills,omitempty" yaml:"fills,omitempty"`
	Gaps   []Gap           `json:"gaps,omitempty" yaml:"gaps,omitempty"`
}

package config

import (
	"strings"
	"time"
)

// Config 是 gridbot 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Exchange ExchangeConfig `toml:"exchange"`
	Grid     GridConfig     `toml:"grid"`
	Risk     RiskConfig     `toml:"risk"`
	Store    StoreConfig    `toml:"store"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// ExchangeConfig 描述现货交易所访问方式；dry_run=true 时不会向交易所下单。
type ExchangeConfig struct {
	Name                   string `toml:"name"`
	RESTBaseURL            string `toml:"rest_base_url"`
	APIKey                 string `toml:"api_key"`
	APISecret              string `toml:"api_secret"`
	DryRun                 bool   `toml:"dry_run"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	PricePrecision         int32  `toml:"price_precision"`
	QuantityPrecision      int32  `toml:"quantity_precision"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

func (e ExchangeConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func (e ExchangeConfig) BreakerCooldown() time.Duration {
	return time.Duration(e.BreakerCooldownSeconds) * time.Second
}

// GridConfig 网格区间、资金与间距推导参数。
type GridConfig struct {
	Symbol      string  `toml:"symbol"`
	Timeframe   string  `toml:"timeframe"`
	Lookback    int     `toml:"lookback"`
	Support     float64 `toml:"support"`
	Resistance  float64 `toml:"resistance"`
	InitialCash float64 `toml:"initial_cash"`
	Leverage    float64 `toml:"leverage"`
	Mode        string  `toml:"mode"` // geometric | arithmetic
	MakerFee    float64 `toml:"maker_fee"`
	MinReturn   float64 `toml:"min_return"`
	VolatilityK float64 `toml:"volatility_k"`
	ATRPeriod   int     `toml:"atr_period"`
}

// TotalInvestment 是实际投入网格的名义资金（本金 × 杠杆）。
func (g GridConfig) TotalInvestment() float64 {
	return g.InitialCash * g.Leverage
}

// RiskConfig 控制轮询节奏与熔断阈值。
type RiskConfig struct {
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	MaxPositionUSD      float64 `toml:"max_position_usd"`
	MaxDrawdownPct      float64 `toml:"max_drawdown_pct"`
	StatusEvery         int     `toml:"status_every"`
}

func (r RiskConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

type StoreConfig struct {
	Path          string `toml:"path"`
	KlineCacheDir string `toml:"kline_cache_dir"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

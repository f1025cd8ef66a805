package config

import "strings"

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9992"
	defaultExchangeName     = "binance"
	defaultExchangeREST     = "https://api.binance.com"
	defaultExchangeTimeout  = 15
	defaultPricePrecision   = 2
	defaultQtyPrecision     = 5
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 60
	defaultGridTimeframe    = "1h"
	defaultGridLookback     = 200
	defaultGridLeverage     = 1
	defaultGridMode         = "geometric"
	defaultGridMakerFee     = 0.001
	defaultGridMinReturn    = 0.002
	defaultGridVolatilityK  = 0.5
	defaultGridATRPeriod    = 14
	defaultRiskPollInterval = 10
	defaultRiskMaxPosition  = 10000
	defaultRiskMaxDrawdown  = 0.2
	defaultRiskStatusEvery  = 30
	defaultStorePath        = "/data/gridbot/gridbot.db"
	defaultStoreKlineCache  = "/data/gridbot/klines"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Grid.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		stringFieldDefault("exchange.rest_base_url", &e.RESTBaseURL, defaultExchangeREST),
		boolFieldDefault("exchange.dry_run", &e.DryRun, true),
		intFieldDefault("exchange.timeout_seconds", &e.TimeoutSeconds, defaultExchangeTimeout),
		intFieldDefault("exchange.breaker_threshold", &e.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("exchange.breaker_cooldown_seconds", &e.BreakerCooldownSeconds, defaultBreakerCooldown),
		fieldDefault{
			key:   "exchange.price_precision",
			need:  func() bool { return e.PricePrecision <= 0 },
			apply: func() { e.PricePrecision = defaultPricePrecision },
		},
		fieldDefault{
			key:   "exchange.quantity_precision",
			need:  func() bool { return e.QuantityPrecision <= 0 },
			apply: func() { e.QuantityPrecision = defaultQtyPrecision },
		},
	)
	e.Name = strings.ToLower(strings.TrimSpace(e.Name))
}

func (g *GridConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("grid.timeframe", &g.Timeframe, defaultGridTimeframe),
		stringFieldDefault("grid.mode", &g.Mode, defaultGridMode),
		intFieldDefault("grid.lookback", &g.Lookback, defaultGridLookback),
		intFieldDefault("grid.atr_period", &g.ATRPeriod, defaultGridATRPeriod),
		floatFieldDefault("grid.leverage", &g.Leverage, defaultGridLeverage),
		floatFieldDefault("grid.maker_fee", &g.MakerFee, defaultGridMakerFee),
		floatFieldDefault("grid.min_return", &g.MinReturn, defaultGridMinReturn),
		floatFieldDefault("grid.volatility_k", &g.VolatilityK, defaultGridVolatilityK),
	)
	g.Symbol = strings.ToUpper(strings.TrimSpace(g.Symbol))
	g.Mode = strings.ToLower(strings.TrimSpace(g.Mode))
	g.Timeframe = strings.ToLower(strings.TrimSpace(g.Timeframe))
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("risk.poll_interval_seconds", &r.PollIntervalSeconds, defaultRiskPollInterval),
		intFieldDefault("risk.status_every", &r.StatusEvery, defaultRiskStatusEvery),
		floatFieldDefault("risk.max_position_usd", &r.MaxPositionUSD, defaultRiskMaxPosition),
		floatFieldDefault("risk.max_drawdown_pct", &r.MaxDrawdownPct, defaultRiskMaxDrawdown),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		stringFieldDefault("store.kline_cache_dir", &s.KlineCacheDir, defaultStoreKlineCache),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

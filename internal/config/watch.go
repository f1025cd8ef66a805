package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"gridbot/internal/logger"
)

// RiskLimits 是运行期可热更新的熔断阈值。
type RiskLimits struct {
	MaxPositionUSD float64
	MaxDrawdownPct float64
}

func (r RiskConfig) Limits() RiskLimits {
	return RiskLimits{MaxPositionUSD: r.MaxPositionUSD, MaxDrawdownPct: r.MaxDrawdownPct}
}

// RiskHolder shares the current limits between the config watcher goroutine
// and the reconciler loop.
type RiskHolder struct {
	mu     sync.RWMutex
	limits RiskLimits
}

func NewRiskHolder(l RiskLimits) *RiskHolder {
	return &RiskHolder{limits: l}
}

func (h *RiskHolder) Get() RiskLimits {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.limits
}

func (h *RiskHolder) Set(l RiskLimits) {
	h.mu.Lock()
	h.limits = l
	h.mu.Unlock()
}

// WatchRisk re-reads path on every write and pushes the new risk limits into
// holder. Only risk limits are hot reloaded; everything else needs a restart.
// Includes are not followed by the watcher.
func WatchRisk(path string, holder *RiskHolder) error {
	if holder == nil {
		return fmt.Errorf("risk holder is nil")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("config reload ignored (%s): %v", evt.Name, err)
			return
		}
		prev := holder.Get()
		next := cfg.Risk.Limits()
		if prev == next {
			return
		}
		holder.Set(next)
		logger.Infof("risk limits reloaded: max_position_usd %.2f -> %.2f, max_drawdown_pct %.4f -> %.4f",
			prev.MaxPositionUSD, next.MaxPositionUSD, prev.MaxDrawdownPct, next.MaxDrawdownPct)
	})
	v.WatchConfig()
	return nil
}

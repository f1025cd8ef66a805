// Package gateway builds the market data source and order gateway from config.
package gateway

import (
	"fmt"

	"gridbot/internal/config"
	"gridbot/internal/gateway/binance"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/paper"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/pkg/circuit"
)

func binanceConfig(cfg config.ExchangeConfig) binance.Config {
	return binance.Config{
		RESTBaseURL:       cfg.RESTBaseURL,
		APIKey:            cfg.APIKey,
		APISecret:         cfg.APISecret,
		HTTPTimeout:       cfg.Timeout(),
		PricePrecision:    cfg.PricePrecision,
		QuantityPrecision: cfg.QuantityPrecision,
	}
}

func NewSourceFromConfig(cfg *config.Config) (market.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	switch cfg.Exchange.Name {
	case "", "binance":
		return binance.NewSource(binanceConfig(cfg.Exchange)), nil
	default:
		return nil, fmt.Errorf("unsupported market source: %s", cfg.Exchange.Name)
	}
}

// NewGatewayFromConfig returns the paper gateway in dry-run, otherwise the
// Binance spot gateway behind a circuit breaker.
func NewGatewayFromConfig(cfg *config.Config) (exchange.Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if cfg.Exchange.DryRun {
		logger.Infof("exchange dry-run enabled: orders stay in the paper gateway")
		return paper.NewGateway(), nil
	}
	switch cfg.Exchange.Name {
	case "", "binance":
		breaker := circuit.NewCircuitBreaker("binance-orders", cfg.Exchange.BreakerThreshold, cfg.Exchange.BreakerCooldown())
		breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
			logger.Warnf("circuit %s: %s -> %s", name, from, to)
		})
		return exchange.NewGuarded(binance.NewGateway(binanceConfig(cfg.Exchange)), breaker), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", cfg.Exchange.Name)
	}
}

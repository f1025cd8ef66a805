package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"

	"gridbot/internal/market"
	symbolpkg "gridbot/internal/pkg/symbol"
)

const maxHistoryLimit = 1000

// Source 基于 go-binance 现货 K 线接口实现 market.Source。
type Source struct {
	client *gobinance.Client
}

var _ market.Source = (*Source)(nil)

func NewSource(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{client: newClient(final)}
}

// GetKlines returns ascending bars; the last one may still be open, which is
// what callers reading the current price want.
func (s *Source) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	clean := symbolpkg.Binance.ToExchange(symbol)
	if clean == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval, err := normalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s@%s: %w", clean, interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

// spotIntervals 是现货 K 线接口接受的周期，"1M" 为月线，区分大小写。
var spotIntervals = map[string]struct{}{
	"1s": {}, "1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
	"1d": {}, "3d": {}, "1w": {}, "1M": {},
}

// normalizeInterval lowercases everything except the month suffix so "1H"
// still means an hour while "1M" stays a month.
func normalizeInterval(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("interval is required")
	}
	out := raw
	if !strings.HasSuffix(raw, "M") {
		out = strings.ToLower(raw)
	}
	if _, ok := spotIntervals[out]; !ok {
		return "", fmt.Errorf("unsupported binance interval %q", raw)
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

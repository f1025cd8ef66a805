package market

import "context"

// Source fetches OHLCV history. Rows come back ascending by open time with the
// most recent (possibly still open) bar last.
type Source interface {
	GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)

func (f SourceFunc) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	return f(ctx, symbol, timeframe, limit)
}

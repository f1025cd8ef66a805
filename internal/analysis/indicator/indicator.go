package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"gridbot/internal/market"
)

// SpacingSettings 描述由波动率推导网格间距所需的参数。
type SpacingSettings struct {
	ATRPeriod   int
	VolatilityK float64
	MinReturn   float64
	MakerFee    float64
}

// ComputeATRSeries 计算与 candles 对齐的 ATR 序列；前 period 根没有值，记为 0。
func ComputeATRSeries(candles []market.Candle, period int) ([]float64, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles")
	}
	if period <= 0 {
		period = 14
	}
	if len(candles) <= period {
		return nil, fmt.Errorf("need more than %d candles for atr, got %d", period, len(candles))
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return talib.Atr(highs, lows, closes, period), nil
}

// AverageSpacing 返回网格的平均相对间距：
// mean(ATR/close) * VolatilityK，且不低于 MinReturn + 2*MakerFee，
// 保证每一格扣除双边手续费后仍有最低收益。
func AverageSpacing(candles []market.Candle, s SpacingSettings) (float64, error) {
	series, err := ComputeATRSeries(candles, s.ATRPeriod)
	if err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for i, atr := range series {
		if i < s.ATRPeriod || !valid(atr) || atr <= 0 {
			continue
		}
		px := candles[i].Close
		if !valid(px) || px <= 0 {
			continue
		}
		sum += atr / px
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("atr series empty")
	}
	k := s.VolatilityK
	if k <= 0 {
		k = 1
	}
	spacing := sum / float64(n) * k
	if floor := s.MinReturn + 2*s.MakerFee; spacing < floor {
		spacing = floor
	}
	return spacing, nil
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

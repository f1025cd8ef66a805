package grid

import (
	"math"
	"strings"
)

// Mode 描述网格间距类型。
type Mode string

const (
	ModeGeometric  Mode = "geometric"
	ModeArithmetic Mode = "arithmetic"
)

const (
	MinGridCount = 2
	MaxGridCount = 200
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeGeometric:
		return ModeGeometric, nil
	case ModeArithmetic:
		return ModeArithmetic, nil
	default:
		return "", configErrorf("mode", "unknown grid mode %q", raw)
	}
}

// GenerateLadder returns count+1 strictly increasing prices from lower to
// upper inclusive. Both endpoints are pinned exactly.
func GenerateLadder(lower, upper float64, count int, mode Mode) ([]float64, error) {
	if !finitePositive(lower) || !finitePositive(upper) {
		return nil, configErrorf("bounds", "lower (%v) and upper (%v) must be finite and > 0", lower, upper)
	}
	if lower >= upper {
		return nil, configErrorf("bounds", "lower (%v) must be below upper (%v)", lower, upper)
	}
	if count < 1 {
		return nil, configErrorf("grid_count", "must be >= 1, got %d", count)
	}
	prices := make([]float64, count+1)
	switch mode {
	case ModeGeometric:
		ratio := math.Pow(upper/lower, 1/float64(count))
		for i := range prices {
			prices[i] = lower * math.Pow(ratio, float64(i))
		}
	case ModeArithmetic:
		step := (upper - lower) / float64(count)
		for i := range prices {
			prices[i] = lower + float64(i)*step
		}
	default:
		return nil, configErrorf("mode", "unknown grid mode %q", string(mode))
	}
	prices[0] = lower
	prices[count] = upper
	for i := 1; i < len(prices); i++ {
		if prices[i] <= prices[i-1] {
			return nil, configErrorf("grid_count", "%d levels collapse between %v and %v", count, lower, upper)
		}
	}
	return prices, nil
}

// CountFromSpacing 根据平均间距推导网格数量，结果限制在 [MinGridCount, MaxGridCount]。
func CountFromSpacing(support, resistance, spacing float64) int {
	if !finitePositive(support) || !finitePositive(resistance) || resistance <= support {
		return MinGridCount
	}
	if !finitePositive(spacing) {
		return MaxGridCount
	}
	n := math.Round(math.Log(resistance/support) / math.Log(1+spacing))
	switch {
	case math.IsNaN(n) || n > MaxGridCount:
		return MaxGridCount
	case n < MinGridCount:
		return MinGridCount
	}
	return int(n)
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (m Mode) String() string { return string(m) }

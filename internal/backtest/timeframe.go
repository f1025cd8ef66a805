package backtest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gridbot/internal/market"
)

// Timeframe 描述回放使用的周期信息。
type Timeframe struct {
	Key      string
	Duration time.Duration
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute},
	"5m":  {Key: "5m", Duration: 5 * time.Minute},
	"15m": {Key: "15m", Duration: 15 * time.Minute},
	"30m": {Key: "30m", Duration: 30 * time.Minute},
	"1h":  {Key: "1h", Duration: time.Hour},
	"4h":  {Key: "4h", Duration: 4 * time.Hour},
	"1d":  {Key: "1d", Duration: 24 * time.Hour},
}

// ParseTimeframe 返回标准化周期定义。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe %q (supported: %s)", input, strings.Join(SupportedTimeframes(), ", "))
	}
	return tf, nil
}

// SupportedTimeframes 返回所有支持的 key（排序后）。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return supportedTimeframes[keys[i]].Duration < supportedTimeframes[keys[j]].Duration
	})
	return keys
}

func (tf Timeframe) durationMillis() int64 {
	return tf.Duration.Milliseconds()
}

// Gap 是一段缺失的 K 线区间（毫秒，含端点）。
type Gap struct {
	From    int64 `json:"from" yaml:"from"`
	To      int64 `json:"to" yaml:"to"`
	Missing int64 `json:"missing" yaml:"missing"`
}

// FindGaps 检查升序 K 线的开盘时间是否连续。
func (tf Timeframe) FindGaps(candles []market.Candle) []Gap {
	step := tf.durationMillis()
	if step <= 0 || len(candles) < 2 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].OpenTime, candles[i].OpenTime
		if cur-prev <= step {
			continue
		}
		gaps = append(gaps, Gap{From: prev + step, To: cur - step, Missing: (cur-prev)/step - 1})
	}
	return gaps
}

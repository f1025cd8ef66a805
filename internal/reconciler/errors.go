package reconciler

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable 表示行情获取失败或为空，对本次运行是致命错误。
var ErrDataUnavailable = errors.New("market data unavailable")

func dataUnavailable(what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrDataUnavailable, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, what, cause)
}

// SafetyKind names the threshold that tripped.
type SafetyKind string

const (
	SafetyDrawdown SafetyKind = "drawdown"
	SafetyPosition SafetyKind = "position"
)

// SafetyBreach is a controlled terminal state, not an error.
type SafetyBreach struct {
	Kind   SafetyKind
	Value  float64
	Limit  float64
	Reason string
}

func (b *SafetyBreach) String() string {
	if b == nil {
		return ""
	}
	return b.Reason
}

package exchange

import (
	"errors"
	"fmt"
	"strings"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus 是交易所返回的订单状态，Status 保留交易所原始写法。
type OrderStatus struct {
	Status       string
	AveragePrice float64
	ExecutedQty  float64
}

// Filled reports whether the status denotes a completed order ("filled"/"closed", any case).
func (s OrderStatus) Filled() bool {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "filled", "closed":
		return true
	}
	return false
}

// Dropped reports an order the exchange ended without a fill
// (canceled, expired or rejected); it will never fill and should be re-placed.
func (s OrderStatus) Dropped() bool {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "canceled", "cancelled", "expired", "expired_in_match", "rejected":
		return true
	}
	return false
}

// GatewayError 描述单次下单/撤单/查询失败，调用方记录后按缺失处理。
type GatewayError struct {
	Op      string
	Symbol  string
	Side    Side
	Price   float64
	OrderID string
	Err     error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Symbol != "" {
		b.WriteString(" " + e.Symbol)
	}
	if e.Side != "" {
		b.WriteString(" " + string(e.Side))
	}
	if e.Price > 0 {
		fmt.Fprintf(&b, " @%.8g", e.Price)
	}
	if e.OrderID != "" {
		b.WriteString(" id=" + e.OrderID)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// LogArgs renders the error context as slog key/value pairs.
func (e *GatewayError) LogArgs() []any {
	args := []any{"op", e.Op, "symbol", e.Symbol}
	if e.Side != "" {
		args = append(args, "side", string(e.Side))
	}
	if e.Price > 0 {
		args = append(args, "price", e.Price)
	}
	if e.OrderID != "" {
		args = append(args, "id", e.OrderID)
	}
	if e.Err != nil {
		args = append(args, "err", e.Err.Error())
	}
	return args
}

// AsGatewayError wraps err in a *GatewayError unless it already is one.
func AsGatewayError(op, symbol string, side Side, price float64, orderID string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Op: op, Symbol: symbol, Side: side, Price: price, OrderID: orderID, Err: err}
}

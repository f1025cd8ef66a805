package exchange

import (
	"context"

	"gridbot/internal/pkg/circuit"
)

// Guarded short-circuits calls to an unhealthy gateway. Once the breaker
// opens every call fails fast with circuit.ErrOpen until the cooldown passes.
type Guarded struct {
	inner   Gateway
	breaker *circuit.CircuitBreaker
}

var _ Gateway = (*Guarded)(nil)

func NewGuarded(inner Gateway, breaker *circuit.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

func (g *Guarded) PlaceLimitOrder(ctx context.Context, symbol string, side Side, price, qty float64) (string, error) {
	var id string
	err := g.breaker.Do(func() error {
		var err error
		id, err = g.inner.PlaceLimitOrder(ctx, symbol, side, price, qty)
		return err
	})
	return id, AsGatewayError("place", symbol, side, price, "", err)
}

func (g *Guarded) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	var ok bool
	err := g.breaker.Do(func() error {
		var err error
		ok, err = g.inner.CancelOrder(ctx, symbol, orderID)
		return err
	})
	return ok, AsGatewayError("cancel", symbol, "", 0, orderID, err)
}

func (g *Guarded) GetOrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error) {
	var st OrderStatus
	err := g.breaker.Do(func() error {
		var err error
		st, err = g.inner.GetOrderStatus(ctx, symbol, orderID)
		return err
	})
	return st, AsGatewayError("status", symbol, "", 0, orderID, err)
}

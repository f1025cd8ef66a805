// Package exchange defines the order gateway the reconciler mirrors grid
// orders onto. Implementations live in sibling packages (binance, paper).
package exchange

import "context"

// Gateway places, cancels and queries spot limit orders.
// Every method returns a *GatewayError on failure.
type Gateway interface {
	PlaceLimitOrder(ctx context.Context, symbol string, side Side, price, qty float64) (string, error)

	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)

	GetOrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error)
}

// Package paper is the dry-run order gateway: orders live in memory, ids are
// synthetic and nothing touches the network.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridbot/internal/gateway/exchange"
)

const (
	StatusNew      = "NEW"
	StatusFilled   = "FILLED"
	StatusCanceled = "CANCELED"
)

// Order 是纸面网关记录的一张限价单。
type Order struct {
	ID        string
	Symbol    string
	Side      exchange.Side
	Price     float64
	Qty       float64
	Status    string
	FillPrice float64
	PlacedAt  time.Time
}

type Gateway struct {
	mu        sync.Mutex
	orders    map[string]*Order
	cancelled []string
	now       func() time.Time
}

var _ exchange.Gateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{orders: make(map[string]*Order), now: time.Now}
}

func (g *Gateway) PlaceLimitOrder(_ context.Context, symbol string, side exchange.Side, price, qty float64) (string, error) {
	if price <= 0 || qty <= 0 {
		return "", &exchange.GatewayError{Op: "place", Symbol: symbol, Side: side, Price: price,
			Err: fmt.Errorf("price and quantity must be > 0 (qty=%v)", qty)}
	}
	id := "paper-" + uuid.NewString()
	g.mu.Lock()
	g.orders[id] = &Order{ID: id, Symbol: symbol, Side: side, Price: price, Qty: qty, Status: StatusNew, PlacedAt: g.now()}
	g.mu.Unlock()
	return id, nil
}

// CancelOrder records every attempt, known id or not, so dry runs can be audited.
func (g *Gateway) CancelOrder(_ context.Context, symbol, orderID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, orderID)
	o, ok := g.orders[orderID]
	if !ok {
		return false, &exchange.GatewayError{Op: "cancel", Symbol: symbol, OrderID: orderID, Err: fmt.Errorf("unknown order")}
	}
	o.Status = StatusCanceled
	return true, nil
}

func (g *Gateway) GetOrderStatus(_ context.Context, symbol, orderID string) (exchange.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return exchange.OrderStatus{}, &exchange.GatewayError{Op: "status", Symbol: symbol, OrderID: orderID, Err: fmt.Errorf("unknown order")}
	}
	st := exchange.OrderStatus{Status: o.Status}
	if o.Status == StatusFilled {
		st.AveragePrice = o.FillPrice
		st.ExecutedQty = o.Qty
	}
	return st, nil
}

// MarkFilled settles a resting order at price; dry runs call it when the
// market crosses the order's level.
func (g *Gateway) MarkFilled(orderID string, price float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok || o.Status != StatusNew {
		return false
	}
	o.Status = StatusFilled
	o.FillPrice = price
	return true
}

func (g *Gateway) Get(orderID string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Open returns resting orders sorted by price.
func (g *Gateway) Open() []Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Order, 0, len(g.orders))
	for _, o := range g.orders {
		if o.Status == StatusNew {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// Cancelled lists every id passed to CancelOrder, in call order.
func (g *Gateway) Cancelled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelled...)
}

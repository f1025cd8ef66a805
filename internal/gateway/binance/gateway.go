package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"gridbot/internal/gateway/exchange"
	symbolpkg "gridbot/internal/pkg/symbol"
)

// Gateway 通过现货 REST 接口挂 GTC 限价单。
type Gateway struct {
	client    *gobinance.Client
	pricePrec int32
	qtyPrec   int32
}

var _ exchange.Gateway = (*Gateway)(nil)

func NewGateway(cfg Config) *Gateway {
	final := cfg.withDefaults()
	return &Gateway{
		client:    newClient(final),
		pricePrec: final.PricePrecision,
		qtyPrec:   final.QuantityPrecision,
	}
}

func (g *Gateway) PlaceLimitOrder(ctx context.Context, symbol string, side exchange.Side, price, qty float64) (string, error) {
	fail := func(err error) (string, error) {
		return "", &exchange.GatewayError{Op: "place", Symbol: symbol, Side: side, Price: price, Err: err}
	}
	sideType, err := toSideType(side)
	if err != nil {
		return fail(err)
	}
	priceStr, qtyStr, err := g.format(price, qty)
	if err != nil {
		return fail(err)
	}
	res, err := g.client.NewCreateOrderService().
		Symbol(symbolpkg.Binance.ToExchange(symbol)).
		Side(sideType).
		Type(gobinance.OrderTypeLimit).
		TimeInForce(gobinance.TimeInForceTypeGTC).
		Price(priceStr).
		Quantity(qtyStr).
		Do(ctx)
	if err != nil {
		return fail(err)
	}
	return strconv.FormatInt(res.OrderID, 10), nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return false, &exchange.GatewayError{Op: "cancel", Symbol: symbol, OrderID: orderID, Err: err}
	}
	if _, err := g.client.NewCancelOrderService().
		Symbol(symbolpkg.Binance.ToExchange(symbol)).
		OrderID(id).
		Do(ctx); err != nil {
		return false, &exchange.GatewayError{Op: "cancel", Symbol: symbol, OrderID: orderID, Err: err}
	}
	return true, nil
}

func (g *Gateway) GetOrderStatus(ctx context.Context, symbol, orderID string) (exchange.OrderStatus, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return exchange.OrderStatus{}, &exchange.GatewayError{Op: "status", Symbol: symbol, OrderID: orderID, Err: err}
	}
	o, err := g.client.NewGetOrderService().
		Symbol(symbolpkg.Binance.ToExchange(symbol)).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return exchange.OrderStatus{}, &exchange.GatewayError{Op: "status", Symbol: symbol, OrderID: orderID, Err: err}
	}
	executed := parseFloat(o.ExecutedQuantity)
	st := exchange.OrderStatus{
		Status:      string(o.Status),
		ExecutedQty: executed,
	}
	if quote := parseFloat(o.CummulativeQuoteQuantity); executed > 0 && quote > 0 {
		st.AveragePrice = quote / executed
	}
	return st, nil
}

// format 价格四舍五入到 tick 精度，数量向下截断到 step 精度，避免超出可用余额。
func (g *Gateway) format(price, qty float64) (string, string, error) {
	p := decimal.NewFromFloat(price).Round(g.pricePrec)
	q := decimal.NewFromFloat(qty).Truncate(g.qtyPrec)
	if !p.IsPositive() {
		return "", "", fmt.Errorf("price %v rounds to zero at precision %d", price, g.pricePrec)
	}
	if !q.IsPositive() {
		return "", "", fmt.Errorf("quantity %v truncates to zero at precision %d", qty, g.qtyPrec)
	}
	return p.StringFixed(g.pricePrec), q.StringFixed(g.qtyPrec), nil
}

func toSideType(side exchange.Side) (gobinance.SideType, error) {
	switch side {
	case exchange.SideBuy:
		return gobinance.SideTypeBuy, nil
	case exchange.SideSell:
		return gobinance.SideTypeSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", side)
	}
}

func parseOrderID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid binance order id %q", id)
	}
	return n, nil
}

package grid

import (
	"math"
	"time"
)

// Params 描述构造撮合引擎所需的全部参数。
type Params struct {
	Lower           float64
	Upper           float64
	GridCount       int
	Mode            Mode
	TotalInvestment float64
	MakerFee        float64
	Observer        Observer
}

// Engine 维护每个价位的挂单状态，并按 K 线高低点撮合。
//
// Engine is not safe for concurrent use; callers own it from one goroutine.
type Engine struct {
	mode      Mode
	gridCount int
	makerFee  float64
	budget    float64 // quote per grid
	levels    []level
	obs       Observer

	totalPnL   float64
	totalFees  float64
	trades     int
	buyVolume  float64
	sellVolume float64
}

func NewEngine(p Params) (*Engine, error) {
	if p.GridCount <= 0 {
		return nil, configErrorf("grid_count", "must be > 0, got %d", p.GridCount)
	}
	prices, err := GenerateLadder(p.Lower, p.Upper, p.GridCount, p.Mode)
	if err != nil {
		return nil, err
	}
	if !finitePositive(p.TotalInvestment) {
		return nil, configErrorf("total_investment", "must be > 0, got %v", p.TotalInvestment)
	}
	if p.MakerFee < 0 || math.IsNaN(p.MakerFee) || math.IsInf(p.MakerFee, 0) {
		return nil, configErrorf("maker_fee", "must be finite and >= 0, got %v", p.MakerFee)
	}
	obs := p.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	e := &Engine{
		mode:      p.Mode,
		gridCount: p.GridCount,
		makerFee:  p.MakerFee,
		budget:    p.TotalInvestment / float64(p.GridCount),
		levels:    make([]level, len(prices)),
		obs:       obs,
	}
	for i, price := range prices {
		e.levels[i] = level{index: i, price: price}
	}
	return e, nil
}

// InitializeGrid 在当前价下方的每个价位挂一张买单，返回挂单数量。
// 不挂卖单，也不建立初始仓位。
func (e *Engine) InitializeGrid(currentPrice float64, ts time.Time) int {
	idx := 0
	for i := len(e.levels) - 1; i >= 0; i-- {
		if e.levels[i].price <= currentPrice {
			idx = i
			break
		}
	}
	placed := 0
	for i := 0; i < idx; i++ {
		if e.levels[i].orders[SideBuy] != nil {
			continue
		}
		e.place(i, SideBuy, e.buySize(i), i+1, ts)
		placed++
	}
	e.obs.GridInitialized(currentPrice, placed)
	return placed
}

// CheckAndFillOrders 按价位升序检查一根 K 线的成交情况，成交价取价位价格。
//
// Fills mutate the ladder while it is being walked: a sell re-placed above a
// filled buy is visited later in the same pass and can fill on the same bar,
// while a buy re-placed below a filled sell has already been passed and
// cannot. The bar range is treated as touching every price inside it with no
// intrabar path ordering.
func (e *Engine) CheckAndFillOrders(high, low float64, ts time.Time) []Order {
	var filled []Order
	for i := range e.levels {
		lv := &e.levels[i]
		if lv.orders[SideBuy] != nil && low <= lv.price {
			if o, ok := e.FillBuy(i, lv.price, ts); ok {
				filled = append(filled, o)
			}
		}
		if lv.orders[SideSell] != nil && high >= lv.price {
			if o, ok := e.FillSell(i, lv.price, ts); ok {
				filled = append(filled, o)
			}
		}
	}
	return filled
}

// FillBuy 将 index 处的买单按 fillPrice 成交，并在上一格挂出等量卖单。
func (e *Engine) FillBuy(index int, fillPrice float64, ts time.Time) (Order, bool) {
	o, ok := e.take(index, SideBuy)
	if !ok {
		return Order{}, false
	}
	if fillPrice <= 0 {
		fillPrice = o.Price
	}
	o.Status = StatusFilled
	o.FilledAt = ts
	o.FillPrice = fillPrice

	lv := &e.levels[index]
	fee := o.Size * fillPrice * e.makerFee
	lv.buyVolume += o.Size
	lv.fees += fee
	e.buyVolume += o.Size
	e.totalFees += fee
	e.trades++
	e.obs.OrderFilled(*o)

	if next := index + 1; next < len(e.levels) {
		if e.levels[next].orders[SideSell] != nil {
			e.obs.PlacementSkipped(next, SideSell, "level already holds a sell order")
		} else {
			e.place(next, SideSell, o.Size, index, ts)
		}
	}
	return *o, true
}

// FillSell 将 index 处的卖单成交。以下一格的价格作为买入价结算利润，
// 最低价位的卖单没有对应买入价，只计手续费与成交量。
func (e *Engine) FillSell(index int, fillPrice float64, ts time.Time) (Order, bool) {
	o, ok := e.take(index, SideSell)
	if !ok {
		return Order{}, false
	}
	if fillPrice <= 0 {
		fillPrice = o.Price
	}
	o.Status = StatusFilled
	o.FilledAt = ts
	o.FillPrice = fillPrice

	lv := &e.levels[index]
	fee := o.Size * fillPrice * e.makerFee
	lv.sellVolume += o.Size
	lv.fees += fee
	e.sellVolume += o.Size
	e.totalFees += fee
	e.trades++

	if index > 0 {
		buyPrice := e.levels[index-1].price
		gross := (fillPrice - buyPrice) * o.Size
		net := gross - o.Size*buyPrice*e.makerFee - o.Size*fillPrice*e.makerFee
		lv.realizedProfit += net
		e.totalPnL += gross
	}
	e.obs.OrderFilled(*o)

	if prev := index - 1; prev >= 0 && e.levels[prev].orders[SideBuy] == nil {
		e.place(prev, SideBuy, e.buySize(prev), index, ts)
	}
	return *o, true
}

// CancelOrder removes the order at (index, side) and returns it marked cancelled.
func (e *Engine) CancelOrder(index int, side Side) (Order, bool) {
	o, ok := e.take(index, side)
	if !ok {
		return Order{}, false
	}
	o.Status = StatusCancelled
	return *o, true
}

func (e *Engine) Statistics() Statistics {
	st := Statistics{
		TotalPnL:    e.totalPnL,
		TotalFees:   e.totalFees,
		NetPnL:      e.totalPnL - e.totalFees,
		TotalTrades: e.trades,
		BuyVolume:   e.buyVolume,
		SellVolume:  e.sellVolume,
		NetPosition: e.buyVolume - e.sellVolume,
		GridCount:   e.gridCount,
		Mode:        e.mode,
	}
	for i := range e.levels {
		if e.levels[i].orders[SideBuy] != nil {
			st.ActiveBuyOrders++
		}
		if e.levels[i].orders[SideSell] != nil {
			st.ActiveSellOrders++
		}
	}
	return st
}

// ActiveOrders returns copies of every resting order, ascending by level, buy before sell.
func (e *Engine) ActiveOrders() []Order {
	var out []Order
	for i := range e.levels {
		for _, side := range Sides {
			if o := e.levels[i].orders[side]; o != nil {
				out = append(out, *o)
			}
		}
	}
	return out
}

func (e *Engine) Levels() []LevelSnapshot {
	out := make([]LevelSnapshot, len(e.levels))
	for i := range e.levels {
		out[i] = e.levels[i].snapshot()
	}
	return out
}

// Price returns the price of level i.
func (e *Engine) Price(i int) (float64, bool) {
	if i < 0 || i >= len(e.levels) {
		return 0, false
	}
	return e.levels[i].price, true
}

// LevelCount is GridCount+1.
func (e *Engine) LevelCount() int { return len(e.levels) }

func (e *Engine) GridCount() int { return e.gridCount }

func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) MakerFee() float64 { return e.makerFee }

func (e *Engine) buySize(i int) float64 {
	return e.budget / e.levels[i].price
}

func (e *Engine) place(index int, side Side, size float64, paired int, ts time.Time) {
	o := &Order{
		GridIndex:       index,
		Side:            side,
		Price:           e.levels[index].price,
		Size:            size,
		Status:          StatusPending,
		PlacedAt:        ts,
		PairedGridIndex: paired,
	}
	e.levels[index].orders[side] = o
	e.obs.OrderPlaced(*o)
}

func (e *Engine) take(index int, side Side) (*Order, bool) {
	if index < 0 || index >= len(e.levels) || !side.Valid() {
		return nil, false
	}
	o := e.levels[index].orders[side]
	if o == nil {
		return nil, false
	}
	e.levels[index].orders[side] = nil
	return o, true
}

package grid

import "time"

// Side 是订单方向，同时作为每个价位订单槽的下标。
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// Sides lists both directions in table order.
var Sides = [2]Side{SideBuy, SideSell}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type OrderStatus int

const (
	StatusPending OrderStatus = iota
	StatusFilled
	StatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s OrderStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Order 由所在价位独占持有。PairedGridIndex 只是价位下标，不是引用。
type Order struct {
	GridIndex       int         `json:"grid_index" yaml:"grid_index"`
	Side            Side        `json:"side" yaml:"side"`
	Price           float64     `json:"price" yaml:"price"`
	Size            float64     `json:"size" yaml:"size"`
	Status          OrderStatus `json:"status" yaml:"status"`
	PlacedAt        time.Time   `json:"placed_at" yaml:"placed_at"`
	FilledAt        time.Time   `json:"filled_at,omitempty" yaml:"filled_at,omitempty"`
	FillPrice       float64     `json:"fill_price,omitempty" yaml:"fill_price,omitempty"`
	PairedGridIndex int         `json:"paired_grid_index" yaml:"paired_grid_index"`
}

// Notional returns size * fill price (level price when unfilled).
func (o Order) Notional() float64 {
	if o.FillPrice > 0 {
		return o.Size * o.FillPrice
	}
	return o.Size * o.Price
}

// level holds at most one order per side; the array slot is the invariant.
type level struct {
	index          int
	price          float64
	orders         [2]*Order
	buyVolume      float64
	sellVolume     float64
	fees           float64
	realizedProfit float64
}

// LevelSnapshot is a copy of one level for read-only consumers.
type LevelSnapshot struct {
	Index          int     `json:"index"`
	Price          float64 `json:"price"`
	Buy            *Order  `json:"buy,omitempty"`
	Sell           *Order  `json:"sell,omitempty"`
	BuyVolume      float64 `json:"buy_volume"`
	SellVolume     float64 `json:"sell_volume"`
	Fees           float64 `json:"fees"`
	RealizedProfit float64 `json:"realized_profit"`
}

func (lv *level) snapshot() LevelSnapshot {
	out := LevelSnapshot{
		Index:          lv.index,
		Price:          lv.price,
		BuyVolume:      lv.buyVolume,
		SellVolume:     lv.sellVolume,
		Fees:           lv.fees,
		RealizedProfit: lv.realizedProfit,
	}
	if o := lv.orders[SideBuy]; o != nil {
		cp := *o
		out.Buy = &cp
	}
	if o := lv.orders[SideSell]; o != nil {
		cp := *o
		out.Sell = &cp
	}
	return out
}

// Statistics 是引擎统计快照。
type Statistics struct {
	TotalPnL         float64 `json:"total_pnl" yaml:"total_pnl"`
	TotalFees        float64 `json:"total_fees" yaml:"total_fees"`
	NetPnL           float64 `json:"net_pnl" yaml:"net_pnl"`
	TotalTrades      int     `json:"total_trades" yaml:"total_trades"`
	BuyVolume        float64 `json:"buy_volume" yaml:"buy_volume"`
	SellVolume       float64 `json:"sell_volume" yaml:"sell_volume"`
	NetPosition      float64 `json:"net_position" yaml:"net_position"`
	ActiveBuyOrders  int     `json:"active_buy_orders" yaml:"active_buy_orders"`
	ActiveSellOrders int     `json:"active_sell_orders" yaml:"active_sell_orders"`
	GridCount        int     `json:"grid_count" yaml:"grid_count"`
	Mode             Mode    `json:"mode" yaml:"mode"`
}

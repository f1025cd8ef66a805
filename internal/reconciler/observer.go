package reconciler

import (
	"gridbot/internal/grid"
	"gridbot/internal/logger"
)

// logObserver turns engine events into log lines tagged with the symbol.
type logObserver struct {
	symbol string
}

func (o logObserver) GridInitialized(price float64, buys int) {
	logger.Infof("[%s] grid initialized at %.8g: %d buy orders placed", o.symbol, price, buys)
}

func (o logObserver) OrderPlaced(ord grid.Order) {
	logger.Debugf("[%s] engine order %s@%d price=%.8g size=%.8g", o.symbol, ord.Side, ord.GridIndex, ord.Price, ord.Size)
}

func (o logObserver) OrderFilled(ord grid.Order) {
	logger.Infof("[%s] %s filled at level %d: size=%.8g price=%.8g", o.symbol, ord.Side, ord.GridIndex, ord.Size, ord.FillPrice)
}

func (o logObserver) PlacementSkipped(index int, side grid.Side, reason string) {
	logger.Warn("grid placement skipped", "symbol", o.symbol, "level", index, "side", side.String(), "reason", reason)
}

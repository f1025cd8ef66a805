package grid

// Observer receives engine events. The engine itself never logs.
type Observer interface {
	GridInitialized(currentPrice float64, buyOrders int)
	OrderPlaced(o Order)
	OrderFilled(o Order)
	PlacementSkipped(index int, side Side, reason string)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) GridInitialized(float64, int)       {}
func (NopObserver) OrderPlaced(Order)                  {}
func (NopObserver) OrderFilled(Order)                  {}
func (NopObserver) PlacementSkipped(int, Side, string) {}

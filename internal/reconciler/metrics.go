package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 是对账循环暴露给 /metrics 的指标集合。
type Metrics struct {
	state         *prometheus.GaugeVec
	gridCount     prometheus.Gauge
	spacing       prometheus.Gauge
	lastPrice     prometheus.Gauge
	netPnL        prometheus.Gauge
	totalFees     prometheus.Gauge
	netPosition   prometheus.Gauge
	trackedOrders *prometheus.GaugeVec
	fills         *prometheus.CounterVec
	ordersPlaced  *prometheus.CounterVec
	cancels       prometheus.Counter
	dropped       *prometheus.CounterVec
	gatewayErrors *prometheus.CounterVec
	breaches      *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg; a nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridbot_state",
			Help: "Reconciler state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		gridCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_grid_count",
			Help: "Number of grid intervals in the active ladder.",
		}),
		spacing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_grid_spacing_ratio",
			Help: "ATR-derived average spacing used to size the ladder.",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_last_price",
			Help: "Latest market price seen by the reconciler.",
		}),
		netPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_net_pnl_quote",
			Help: "Realized PnL net of fees, in quote currency.",
		}),
		totalFees: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_fees_quote",
			Help: "Maker fees paid, in quote currency.",
		}),
		netPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_net_position_base",
			Help: "Buy volume minus sell volume, in base units.",
		}),
		trackedOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridbot_tracked_orders",
			Help: "Broker orders currently tracked, by side.",
		}, []string{"side"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_fills_total",
			Help: "Grid orders filled, by side.",
		}, []string{"side"}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Limit orders placed on the gateway, by side.",
		}, []string{"side"}),
		cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_orders_cancelled_total",
			Help: "Cancel requests accepted by the gateway.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_dropped_total",
			Help: "Tracked orders the exchange closed without a fill, by side.",
		}, []string{"side"}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_gateway_errors_total",
			Help: "Failed gateway calls, by operation.",
		}, []string{"op"}),
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_safety_breaches_total",
			Help: "Safety shutdowns, by threshold.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.state, m.gridCount, m.spacing, m.lastPrice, m.netPnL, m.totalFees,
			m.netPosition, m.trackedOrders, m.fills, m.ordersPlaced, m.cancels,
			m.dropped, m.gatewayErrors, m.breaches,
		)
	}
	return m
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	for i := range stateNames {
		v := 0.0
		if State(i) == s {
			v = 1
		}
		m.state.WithLabelValues(State(i).String()).Set(v)
	}
}

func (m *Metrics) observeStats(netPnL, fees, position float64) {
	if m == nil {
		return
	}
	m.netPnL.Set(netPnL)
	m.totalFees.Set(fees)
	m.netPosition.Set(position)
}

func (m *Metrics) observeTracked(buys, sells int) {
	if m == nil {
		return
	}
	m.trackedOrders.WithLabelValues("buy").Set(float64(buys))
	m.trackedOrders.WithLabelValues("sell").Set(float64(sells))
}

func (m *Metrics) observeLadder(count int, spacing float64) {
	if m == nil {
		return
	}
	m.gridCount.Set(float64(count))
	m.spacing.Set(spacing)
}

func (m *Metrics) observePrice(p float64) {
	if m != nil {
		m.lastPrice.Set(p)
	}
}

func (m *Metrics) incFill(side string) {
	if m != nil {
		m.fills.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) incPlaced(side string) {
	if m != nil {
		m.ordersPlaced.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) incCancel() {
	if m != nil {
		m.cancels.Inc()
	}
}

func (m *Metrics) incDropped(side string) {
	if m != nil {
		m.dropped.WithLabelValues(side).Inc()
	}
}

func (m *Metrics) incGatewayError(op string) {
	if m != nil {
		m.gatewayErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) incBreach(kind SafetyKind) {
	if m != nil {
		m.breaches.WithLabelValues(string(kind)).Inc()
	}
}

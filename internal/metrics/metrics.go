// Package metrics defines the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kwanza"

// Metrics groups the engine collectors.
type Metrics struct {
	OrdersPlaced         *prometheus.CounterVec
	OrdersRejected       *prometheus.CounterVec
	OrdersCancelled      *prometheus.CounterVec
	TradesExecuted       *prometheus.CounterVec
	TradeVolume          *prometheus.CounterVec
	PlaceOrderLatency    *prometheus.HistogramVec
	SettlementLatency    prometheus.Histogram
	InvariantViolations  *prometheus.CounterVec
	ConcurrencyConflicts prometheus.Counter
	PairsHalted          prometheus.Gauge
	LiquidityHolds       *prometheus.GaugeVec
	LiquidityExpired     prometheus.Counter
	OutboxPublished      prometheus.Counter
	OutboxFailures       prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders accepted, by pair, side and type.",
		}, []string{"pair", "side", "type"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Orders rejected, by error code.",
		}, []string{"code"}),
		OrdersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled, by pair.",
		}, []string{"pair"}),
		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Trades settled, by pair.",
		}, []string{"pair"}),
		TradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_volume_base_total",
			Help:      "Settled base currency volume, by pair.",
		}, []string{"pair"}),
		PlaceOrderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "place_order_duration_seconds",
			Help:      "Time to place and match an order.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"type"}),
		SettlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Time to settle one trade.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		InvariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_invariant_violations_total",
			Help:      "Settlement units aborted on corrupted state, by pair.",
		}, []string{"pair"}),
		ConcurrencyConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrency_conflicts_total",
			Help:      "Units of work aborted on lock contention.",
		}),
		PairsHalted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairs_halted",
			Help:      "Pairs with automatic matching stopped.",
		}),
		LiquidityHolds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "liquidity_holds",
			Help:      "Live liquidity reservations, by pair.",
		}, []string{"pair"}),
		LiquidityExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquidity_holds_expired_total",
			Help:      "Liquidity reservations removed by the sweeper.",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Events relayed from the outbox.",
		}),
		OutboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_failures_total",
			Help:      "Relay batches that failed to publish.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OrdersPlaced,
			m.OrdersRejected,
			m.OrdersCancelled,
			m.TradesExecuted,
			m.TradeVolume,
			m.PlaceOrderLatency,
			m.SettlementLatency,
			m.InvariantViolations,
			m.ConcurrencyConflicts,
			m.PairsHalted,
			m.LiquidityHolds,
			m.LiquidityExpired,
			m.OutboxPublished,
			m.OutboxFailures,
		)
	}
	return m
}

// NewNop returns unregistered collectors, for tests.
func NewNop() *Metrics {
	return New(nil)
}

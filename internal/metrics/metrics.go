// Package metrics exposes Prometheus counters and gauges over the
// engine's cycle, placement, and pause outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cycles_total",
			Help: "Control-loop ticks processed, by outcome (ran|skip|paused).",
		},
		[]string{"symbol", "outcome"},
	)

	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_placed_total",
			Help: "Orders placed, by side and reduce-only flag.",
		},
		[]string{"symbol", "side", "reduce_only"},
	)

	ordersCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_cancelled_total",
			Help: "Orders cancelled, by side.",
		},
		[]string{"symbol", "side"},
	)

	repriceSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_reprice_suppressed_total",
			Help: "Desired quotes pinned to their existing resting price by reprice-dwell suppression.",
		},
		[]string{"symbol", "side"},
	)

	stopLossFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_stop_loss_fired_total",
			Help: "Stop-loss risk checks that triggered a forced close.",
		},
		[]string{"symbol"},
	)

	forcedCloseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_forced_close_total",
			Help: "Forced closes triggered by extreme depth imbalance.",
		},
		[]string{"symbol"},
	)

	rateLimitPauseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rate_limit_pause_total",
			Help: "Control-loop ticks that found the rate-limit controller paused.",
		},
		[]string{"symbol"},
	)

	consecutive429Gauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_rate_limit_consecutive_429",
			Help: "Current consecutive-429 count tracked by the rate-limit controller.",
		},
		[]string{"symbol"},
	)

	unrealizedPnLGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_unrealized_pnl",
			Help: "Account-reported unrealized PnL for the symbol's position.",
		},
		[]string{"symbol"},
	)

	openOrdersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_open_orders",
			Help: "Current count of open orders reported by the last orders-feed update.",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, ordersPlacedTotal, ordersCancelledTotal, repriceSuppressedTotal)
	prometheus.MustRegister(stopLossFiredTotal, forcedCloseTotal, rateLimitPauseTotal)
	prometheus.MustRegister(consecutive429Gauge, unrealizedPnLGauge, openOrdersGauge)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func RecordCycle(symbol, outcome string) { cyclesTotal.WithLabelValues(symbol, outcome).Inc() }

func RecordOrderPlaced(symbol, side string, reduceOnly bool) {
	ordersPlacedTotal.WithLabelValues(symbol, side, boolLabel(reduceOnly)).Inc()
}

func RecordOrderCancelled(symbol, side string) {
	ordersCancelledTotal.WithLabelValues(symbol, side).Inc()
}

func RecordRepriceSuppressed(symbol, side string) {
	repriceSuppressedTotal.WithLabelValues(symbol, side).Inc()
}

func RecordStopLossFired(symbol string)   { stopLossFiredTotal.WithLabelValues(symbol).Inc() }
func RecordForcedClose(symbol string)     { forcedCloseTotal.WithLabelValues(symbol).Inc() }
func RecordRateLimitPause(symbol string)  { rateLimitPauseTotal.WithLabelValues(symbol).Inc() }

func SetConsecutive429(symbol string, n int) {
	consecutive429Gauge.WithLabelValues(symbol).Set(float64(n))
}

func SetUnrealizedPnL(symbol string, v float64) {
	unrealizedPnLGauge.WithLabelValues(symbol).Set(v)
}

func SetOpenOrders(symbol string, n int) {
	openOrdersGauge.WithLabelValues(symbol).Set(float64(n))
}

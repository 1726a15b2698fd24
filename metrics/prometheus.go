package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter: Total commands received
	CommandsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commands_received_total",
			Help: "Total number of commands received by the matching engine",
		},
		[]string{"instrument", "type"}, // Labels: instrument, command type
	)

	// Counter: Total orders rejected
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Total number of commands rejected before touching the book",
		},
		[]string{"instrument", "reason"},
	)

	// Counter: Total trades executed
	TradesExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_executed_total",
			Help: "Total number of trades executed",
		},
		[]string{"instrument"},
	)

	// Counter: Total traded volume
	TradedVolumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traded_volume_total",
			Help: "Cumulative traded quantity",
		},
		[]string{"instrument"},
	)

	// Counter: Orders cancelled vs cancels for unknown ids
	CancelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancels_total",
			Help: "Total number of cancel commands by result",
		},
		[]string{"instrument", "result"}, // result: cancelled, not_found
	)

	// Counter: Market order remainders dropped after the book ran dry
	MarketRemaindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_remainders_total",
			Help: "Total number of market orders that could not be fully filled",
		},
		[]string{"instrument"},
	)

	// Histogram: Command processing latency
	CommandLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_latency_seconds",
			Help:    "Time taken to process a command from receipt to completion",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3.2s
		},
		[]string{"instrument", "type"},
	)

	// Gauge: Current book depth in orders
	CurrentBookDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "current_book_depth",
			Help: "Current number of resting orders in the book",
		},
		[]string{"instrument", "side"},
	)

	// Gauge: Best bid/ask prices
	BestBidPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "best_bid_price",
			Help: "Current best bid price in the book",
		},
		[]string{"instrument"},
	)

	BestAskPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "best_ask_price",
			Help: "Current best ask price in the book",
		},
		[]string{"instrument"},
	)
)

// RecordCommandReceived increments the received counter for a command type
func RecordCommandReceived(instrument, commandType string) {
	CommandsReceivedTotal.WithLabelValues(instrument, commandType).Inc()
}

// RecordOrderRejected increments the rejected counter with a reason
func RecordOrderRejected(instrument, reason string) {
	OrdersRejectedTotal.WithLabelValues(instrument, reason).Inc()
}

// RecordTrade counts an executed trade and its volume
func RecordTrade(instrument string, quantity float64) {
	TradesExecutedTotal.WithLabelValues(instrument).Inc()
	TradedVolumeTotal.WithLabelValues(instrument).Add(quantity)
}

// RecordCancel counts a cancel command by result
func RecordCancel(instrument, result string) {
	CancelsTotal.WithLabelValues(instrument, result).Inc()
}

// RecordMarketRemainder counts a market order that left unfilled quantity
func RecordMarketRemainder(instrument string) {
	MarketRemaindersTotal.WithLabelValues(instrument).Inc()
}

// ObserveCommandLatency records command processing duration
func ObserveCommandLatency(instrument, commandType string, seconds float64) {
	CommandLatencySeconds.WithLabelValues(instrument, commandType).Observe(seconds)
}

// UpdateBookDepth sets the depth gauge for one side
func UpdateBookDepth(instrument, side string, depth float64) {
	CurrentBookDepth.WithLabelValues(instrument, side).Set(depth)
}

// UpdateBestPrices sets the best bid/ask gauges
func UpdateBestPrices(instrument string, bestBid, bestAsk float64) {
	BestBidPrice.WithLabelValues(instrument).Set(bestBid)
	BestAskPrice.WithLabelValues(instrument).Set(bestAsk)
}

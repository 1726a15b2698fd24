package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// ErrorRateLimiter suppresses repeated identical errors so a flapping
// sink (Redis down, Postgres unreachable) cannot flood the log.
type ErrorRateLimiter struct {
	mu            sync.Mutex
	errorCounts   map[string]*errorEntry
	cleanupTicker *time.Ticker
}

type errorEntry struct {
	count      int
	firstSeen  time.Time
	lastLogged time.Time
	suppressed int
}

var (
	rateLimiter     *ErrorRateLimiter
	rateLimitWindow = 1 * time.Minute
	maxErrorsPerMin = 5
)

func NewErrorRateLimiter() *ErrorRateLimiter {
	limiter := &ErrorRateLimiter{
		errorCounts:   make(map[string]*errorEntry),
		cleanupTicker: time.NewTicker(5 * time.Minute),
	}

	go func() {
		for range limiter.cleanupTicker.C {
			limiter.cleanup()
		}
	}()

	return limiter
}

func (rl *ErrorRateLimiter) ShouldLog(errorKey string) (shouldLog bool, suppressedCount int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.errorCounts[errorKey]

	if !exists {
		rl.errorCounts[errorKey] = &errorEntry{
			count:      1,
			firstSeen:  now,
			lastLogged: now,
		}
		return true, 0
	}

	if now.Sub(entry.firstSeen) > rateLimitWindow {
		suppressedCount = entry.suppressed
		rl.errorCounts[errorKey] = &errorEntry{
			count:      1,
			firstSeen:  now,
			lastLogged: now,
		}
		return true, suppressedCount
	}

	entry.count++

	if entry.count <= maxErrorsPerMin {
		entry.lastLogged = now
		return true, 0
	}

	entry.suppressed++
	return false, 0
}

func (rl *ErrorRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, entry := range rl.errorCounts {
		if now.Sub(entry.lastLogged) > 10*time.Minute {
			delete(rl.errorCounts, key)
		}
	}
}

// InitLogger initializes the structured logger with JSON format
func InitLogger() *logrus.Logger {
	log = logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	// Log level from environment, Info by default
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	rateLimiter = NewErrorRateLimiter()

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if log == nil {
		return InitLogger()
	}
	return log
}

// Event types as constants
const (
	EventOrderReceived   = "order_received"
	EventTradeExecuted   = "trade_executed"
	EventOrderCancelled  = "order_cancelled"
	EventOrderNotFound   = "order_not_found"
	EventOrderRejected   = "order_rejected"
	EventMarketRemainder = "market_remainder"
	EventSinkError       = "sink_error"
	EventReplayStarted   = "replay_started"
	EventReplayCompleted = "replay_completed"
	EventServerStarted   = "server_started"
	EventServerStopped   = "server_stopped"
)

// LogTradeExecuted logs an executed trade
func LogTradeExecuted(tradeID, buyOrderID, sellOrderID, instrument, price, quantity, buyerTrader, sellerTrader string) {
	GetLogger().WithFields(logrus.Fields{
		"event":         EventTradeExecuted,
		"trade_id":      tradeID,
		"buy_order_id":  buyOrderID,
		"sell_order_id": sellOrderID,
		"instrument":    instrument,
		"price":         price,
		"quantity":      quantity,
		"buyer_trader":  buyerTrader,
		"seller_trader": sellerTrader,
	}).Info("Trade executed")
}

// LogOrderCancelled logs a successful cancellation
func LogOrderCancelled(orderID, traderID, instrument string) {
	GetLogger().WithFields(logrus.Fields{
		"event":      EventOrderCancelled,
		"order_id":   orderID,
		"trader_id":  traderID,
		"instrument": instrument,
	}).Info("Order cancelled")
}

// LogOrderNotFound logs a cancel against an unknown order id
func LogOrderNotFound(orderID, instrument string) {
	GetLogger().WithFields(logrus.Fields{
		"event":      EventOrderNotFound,
		"order_id":   orderID,
		"instrument": instrument,
	}).Warn("Order not found")
}

// LogOrderRejected logs a rejected command
func LogOrderRejected(orderID, instrument, reason string) {
	GetLogger().WithFields(logrus.Fields{
		"event":      EventOrderRejected,
		"order_id":   orderID,
		"instrument": instrument,
		"reason":     reason,
	}).Warn("Order rejected")
}

// LogMarketRemainder logs the dropped remainder of a market order
func LogMarketRemainder(orderID, instrument, unfilledQty string) {
	GetLogger().WithFields(logrus.Fields{
		"event":        EventMarketRemainder,
		"order_id":     orderID,
		"instrument":   instrument,
		"unfilled_qty": unfilledQty,
	}).Warn("Market order not fully filled")
}

// LogSinkError logs an event sink failure with rate limiting
func LogSinkError(sink, operation string, err error) {
	if rateLimiter == nil {
		rateLimiter = NewErrorRateLimiter()
	}

	errorKey := fmt.Sprintf("%s:%s:%s", sink, operation, err.Error())
	shouldLog, suppressedCount := rateLimiter.ShouldLog(errorKey)
	if !shouldLog {
		return
	}

	fields := logrus.Fields{
		"event":     EventSinkError,
		"sink":      sink,
		"operation": operation,
		"error":     err.Error(),
	}
	if suppressedCount > 0 {
		fields["suppressed_count"] = suppressedCount
	}

	GetLogger().WithFields(fields).Error("Event sink error")
}

// LogReplayStarted logs the start of a command replay
func LogReplayStarted(source, instrument string) {
	GetLogger().WithFields(logrus.Fields{
		"event":      EventReplayStarted,
		"source":     source,
		"instrument": instrument,
	}).Info("Replay started")
}

// LogReplayCompleted logs replay completion with counters
func LogReplayCompleted(source string, commands, trades, errors int, duration time.Duration) {
	GetLogger().WithFields(logrus.Fields{
		"event":       EventReplayCompleted,
		"source":      source,
		"commands":    commands,
		"trades":      trades,
		"errors":      errors,
		"duration_ms": duration.Milliseconds(),
	}).Info("Replay completed")
}

// LogServerStarted logs HTTP server startup
func LogServerStarted(addr string) {
	GetLogger().WithFields(logrus.Fields{
		"event": EventServerStarted,
		"addr":  addr,
	}).Info("Server started")
}

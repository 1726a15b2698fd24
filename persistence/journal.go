// Package persistence provides an append-only Postgres journal for engine
// events. The book itself is in-memory only; the journal is an external
// collaborator fed through the event bus, and losing it never corrupts
// matching.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/logging"
)

var ErrNilDB = errors.New("nil database handle")

// Retryable Postgres error classes
const (
	pqDeadlockDetected     = "40P01"
	pqSerializationFailure = "40001"
)

// Journal appends trades and order lifecycle events to Postgres.
type Journal struct {
	db         *sql.DB
	maxRetries int
	retryDelay time.Duration
}

// Open connects to Postgres and prepares the journal schema.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	j := NewJournal(db)
	if err := j.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// NewJournal wraps an existing database handle.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{
		db:         db,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
}

// EnsureSchema creates the journal tables if they do not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if j.db == nil {
		return ErrNilDB
	}

	const schema = `
CREATE TABLE IF NOT EXISTS trades (
    trade_id        UUID PRIMARY KEY,
    instrument      TEXT NOT NULL,
    buy_order_id    TEXT NOT NULL,
    sell_order_id   TEXT NOT NULL,
    buyer_trader_id  TEXT NOT NULL,
    seller_trader_id TEXT NOT NULL,
    price           NUMERIC(24, 8) NOT NULL,
    quantity        NUMERIC(24, 8) NOT NULL,
    executed_at     TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_trades_instrument_executed_at
    ON trades (instrument, executed_at);

CREATE TABLE IF NOT EXISTS order_events (
    id          BIGSERIAL PRIMARY KEY,
    event_type  TEXT NOT NULL,
    order_id    TEXT NOT NULL,
    payload     JSONB NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events (order_id);
`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordTrade appends one executed trade.
func (j *Journal) RecordTrade(ctx context.Context, trade *engine.Trade) error {
	if j.db == nil {
		return ErrNilDB
	}

	const query = `
INSERT INTO trades (trade_id, instrument, buy_order_id, sell_order_id,
                    buyer_trader_id, seller_trader_id, price, quantity, executed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (trade_id) DO NOTHING`

	return j.executeWithRetry(ctx, func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx, query,
			trade.TradeID, trade.Instrument, trade.BuyOrderID, trade.SellOrderID,
			trade.BuyerTraderID, trade.SellerTraderID, trade.Price, trade.Quantity,
			trade.Timestamp)
		return err
	})
}

// RecordEvent appends a non-trade lifecycle event as JSON.
func (j *Journal) RecordEvent(ctx context.Context, eventType, orderID string, occurredAt time.Time, payload interface{}) error {
	if j.db == nil {
		return ErrNilDB
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	const query = `
INSERT INTO order_events (event_type, order_id, payload, occurred_at)
VALUES ($1, $2, $3, $4)`

	return j.executeWithRetry(ctx, func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx, query, eventType, orderID, data, occurredAt)
		return err
	})
}

// Listener adapts the journal to the engine's event bus. Write failures
// are logged (rate limited) and dropped rather than propagated into the
// matching path.
func (j *Journal) Listener() engine.EventListener {
	return func(event engine.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		var err error
		switch data := event.Data.(type) {
		case *engine.Trade:
			err = j.RecordTrade(ctx, data)
		case engine.CancelledEvent:
			err = j.RecordEvent(ctx, string(event.Type), data.OrderID, event.Timestamp, data)
		case engine.OrderNotFoundEvent:
			err = j.RecordEvent(ctx, string(event.Type), data.OrderID, event.Timestamp, data)
		case engine.MarketRemainderEvent:
			err = j.RecordEvent(ctx, string(event.Type), data.OrderID, event.Timestamp, data)
		case engine.RejectedEvent:
			err = j.RecordEvent(ctx, string(event.Type), data.OrderID, event.Timestamp, data)
		default:
			return
		}

		if err != nil {
			logging.LogSinkError("postgres", "record_event", err)
		}
	}
}

// executeWithRetry retries transient Postgres failures with backoff.
func (j *Journal) executeWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= j.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.retryDelay * time.Duration(attempt)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == pqDeadlockDetected || code == pqSerializationFailure
	}
	return false
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Package pubsub publishes engine events to Redis channels so downstream
// consumers (market data feeds, ledgers) can follow the book without
// touching it. It is a sink behind the engine's event bus, not core state.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/logging"
)

const (
	TradesChannel = "matchbook:trades"
	OrdersChannel = "matchbook:orders"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func DefaultConfig() *Config {
	return &Config{
		Addr:     "localhost:6379",
		PoolSize: 10,
	}
}

// Publisher forwards engine events to Redis pub/sub channels. Trade
// events land on the trades channel; everything else (cancels, rejects,
// remainders) on the orders channel.
type Publisher struct {
	client        *redis.Client
	channelPrefix string
}

func NewPublisher(config *Config) (*Publisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{client: client}, nil
}

// message is the wire envelope published to Redis.
type message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Listener adapts the publisher to the engine's event bus. Publish
// failures are logged (rate limited) and dropped; a dead Redis must not
// stall matching.
func (p *Publisher) Listener() engine.EventListener {
	return func(event engine.Event) {
		channel := OrdersChannel
		if event.Type == engine.EventTypeTrade {
			channel = TradesChannel
		}

		payload, err := json.Marshal(message{
			Type:      string(event.Type),
			Timestamp: event.Timestamp,
			Data:      event.Data,
		})
		if err != nil {
			logging.LogSinkError("redis", "marshal", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
			logging.LogSinkError("redis", "publish", err)
		}
	}
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

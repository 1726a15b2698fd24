package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the side of an order (buy or sell)
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType represents the type of order (limit or market)
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus represents the current status of an order
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Order represents a single order in the book. The ID is an opaque token
// assigned by the caller and must be unique for the lifetime of the book.
// While an order rests, only FilledQuantity changes; side and price are
// immutable (a price change requires cancel + re-add).
type Order struct {
	ID             string          `json:"id"`
	TraderID       string          `json:"trader_id"`
	Side           Side            `json:"side"`
	Type           OrderType       `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Status         OrderStatus     `json:"status"`
	// Sequence is the arrival number assigned when the order enters the
	// book. Between two crossed orders, the lower sequence is the maker.
	Sequence  uint64    `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLimitOrder creates an open limit order.
func NewLimitOrder(id, traderID string, side Side, price, quantity decimal.Decimal) *Order {
	now := time.Now()
	return &Order{
		ID:             id,
		TraderID:       traderID,
		Side:           side,
		Type:           OrderTypeLimit,
		Price:          price,
		Quantity:       quantity,
		FilledQuantity: decimal.Zero,
		Status:         OrderStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewMarketOrder creates a market order. Market orders carry no price and
// never rest in the book.
func NewMarketOrder(id, traderID string, side Side, quantity decimal.Decimal) *Order {
	now := time.Now()
	return &Order{
		ID:             id,
		TraderID:       traderID,
		Side:           side,
		Type:           OrderTypeMarket,
		Price:          decimal.Zero,
		Quantity:       quantity,
		FilledQuantity: decimal.Zero,
		Status:         OrderStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsValid validates the order fields
func (o *Order) IsValid() bool {
	if o.ID == "" || o.TraderID == "" {
		return false
	}

	if o.Side != SideBuy && o.Side != SideSell {
		return false
	}

	if o.Type != OrderTypeLimit && o.Type != OrderTypeMarket {
		return false
	}

	if o.Quantity.LessThanOrEqual(decimal.Zero) {
		return false
	}

	// For limit orders, price must be positive
	if o.Type == OrderTypeLimit && o.Price.LessThanOrEqual(decimal.Zero) {
		return false
	}

	if o.FilledQuantity.GreaterThan(o.Quantity) {
		return false
	}

	return true
}

// RemainingQuantity returns the unfilled quantity of the order
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsFilled checks if the order is completely filled
func (o *Order) IsFilled() bool {
	return o.FilledQuantity.Equal(o.Quantity)
}

// IsPartiallyFilled checks if the order is partially filled
func (o *Order) IsPartiallyFilled() bool {
	return o.FilledQuantity.GreaterThan(decimal.Zero) && o.FilledQuantity.LessThan(o.Quantity)
}

// Fill updates the order with a fill amount
func (o *Order) Fill(quantity decimal.Decimal) {
	o.FilledQuantity = o.FilledQuantity.Add(quantity)
	o.UpdatedAt = time.Now()

	if o.IsFilled() {
		o.Status = OrderStatusFilled
	} else if o.IsPartiallyFilled() {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Cancel marks the order as cancelled
func (o *Order) Cancel() {
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now()
}

// Reject marks the order as rejected
func (o *Order) Reject() {
	o.Status = OrderStatusRejected
	o.UpdatedAt = time.Now()
}

package models

import "github.com/shopspring/decimal"

// CommandType tags an inbound instruction to the matching engine.
type CommandType string

const (
	CommandLimitAdd  CommandType = "limit_add"
	CommandMarketAdd CommandType = "market_add"
	CommandCancel    CommandType = "cancel"
	CommandModify    CommandType = "modify"
)

// Command is the typed instruction the engine consumes. The source of
// commands (CSV replay, test harness, network feed) is external; anything
// able to produce a Command can drive the book.
type Command struct {
	Type     CommandType     `json:"type"`
	OrderID  string          `json:"order_id"`
	TraderID string          `json:"trader_id,omitempty"`
	Side     Side            `json:"side,omitempty"`
	Price    decimal.Decimal `json:"price,omitempty"`
	Quantity decimal.Decimal `json:"quantity,omitempty"`
}

// LimitAddCommand builds a limit order submission.
func LimitAddCommand(orderID, traderID string, side Side, price, quantity decimal.Decimal) Command {
	return Command{
		Type:     CommandLimitAdd,
		OrderID:  orderID,
		TraderID: traderID,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
}

// MarketAddCommand builds a market order submission.
func MarketAddCommand(orderID, traderID string, side Side, quantity decimal.Decimal) Command {
	return Command{
		Type:     CommandMarketAdd,
		OrderID:  orderID,
		TraderID: traderID,
		Side:     side,
		Quantity: quantity,
	}
}

// CancelCommand builds a cancellation for a resting order.
func CancelCommand(orderID string) Command {
	return Command{
		Type:    CommandCancel,
		OrderID: orderID,
	}
}

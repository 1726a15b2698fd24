package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewLimitOrder(t *testing.T) {
	price := decimal.NewFromFloat(101.25)
	quantity := decimal.NewFromFloat(1.5)

	order := NewLimitOrder("order-1", "trader-a", SideBuy, price, quantity)

	if order.ID != "order-1" {
		t.Errorf("Expected ID order-1, got %s", order.ID)
	}
	if order.TraderID != "trader-a" {
		t.Errorf("Expected TraderID trader-a, got %s", order.TraderID)
	}
	if order.Side != SideBuy {
		t.Errorf("Expected Side %s, got %s", SideBuy, order.Side)
	}
	if order.Type != OrderTypeLimit {
		t.Errorf("Expected Type %s, got %s", OrderTypeLimit, order.Type)
	}
	if !order.Price.Equal(price) {
		t.Errorf("Expected Price %s, got %s", price, order.Price)
	}
	if !order.Quantity.Equal(quantity) {
		t.Errorf("Expected Quantity %s, got %s", quantity, order.Quantity)
	}
	if !order.FilledQuantity.IsZero() {
		t.Errorf("Expected FilledQuantity to be zero, got %s", order.FilledQuantity)
	}
	if order.Status != OrderStatusOpen {
		t.Errorf("Expected Status %s, got %s", OrderStatusOpen, order.Status)
	}
}

func TestNewMarketOrderHasNoPrice(t *testing.T) {
	order := NewMarketOrder("order-2", "trader-b", SideSell, decimal.NewFromInt(3))

	if order.Type != OrderTypeMarket {
		t.Errorf("Expected Type %s, got %s", OrderTypeMarket, order.Type)
	}
	if !order.Price.IsZero() {
		t.Errorf("Expected zero price, got %s", order.Price)
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("Expected opposite of buy to be sell")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("Expected opposite of sell to be buy")
	}
}

func TestOrderIsValid(t *testing.T) {
	tests := []struct {
		name  string
		order *Order
		valid bool
	}{
		{
			name:  "valid limit order",
			order: NewLimitOrder("o1", "t1", SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(10)),
			valid: true,
		},
		{
			name:  "valid market order",
			order: NewMarketOrder("o2", "t1", SideSell, decimal.NewFromInt(5)),
			valid: true,
		},
		{
			name:  "missing order id",
			order: NewLimitOrder("", "t1", SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(10)),
			valid: false,
		},
		{
			name:  "missing trader id",
			order: NewLimitOrder("o3", "", SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(10)),
			valid: false,
		},
		{
			name:  "invalid side",
			order: NewLimitOrder("o4", "t1", Side("hold"), decimal.NewFromInt(100), decimal.NewFromInt(10)),
			valid: false,
		},
		{
			name:  "zero quantity",
			order: NewLimitOrder("o5", "t1", SideBuy, decimal.NewFromInt(100), decimal.Zero),
			valid: false,
		},
		{
			name:  "negative quantity",
			order: NewLimitOrder("o6", "t1", SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(-1)),
			valid: false,
		},
		{
			name:  "zero price on limit order",
			order: NewLimitOrder("o7", "t1", SideBuy, decimal.Zero, decimal.NewFromInt(10)),
			valid: false,
		},
		{
			name:  "negative price on limit order",
			order: NewLimitOrder("o8", "t1", SideSell, decimal.NewFromInt(-5), decimal.NewFromInt(10)),
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestOrderFillTransitions(t *testing.T) {
	order := NewLimitOrder("o1", "t1", SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(10))

	order.Fill(decimal.NewFromInt(4))
	if order.Status != OrderStatusPartiallyFilled {
		t.Errorf("Expected status %s, got %s", OrderStatusPartiallyFilled, order.Status)
	}
	if !order.RemainingQuantity().Equal(decimal.NewFromInt(6)) {
		t.Errorf("Expected remaining 6, got %s", order.RemainingQuantity())
	}
	if !order.IsPartiallyFilled() {
		t.Error("Expected IsPartiallyFilled to be true")
	}

	order.Fill(decimal.NewFromInt(6))
	if order.Status != OrderStatusFilled {
		t.Errorf("Expected status %s, got %s", OrderStatusFilled, order.Status)
	}
	if !order.IsFilled() {
		t.Error("Expected IsFilled to be true")
	}
	if !order.RemainingQuantity().IsZero() {
		t.Errorf("Expected remaining 0, got %s", order.RemainingQuantity())
	}
}

func TestOrderCancelAndReject(t *testing.T) {
	order := NewLimitOrder("o1", "t1", SideSell, decimal.NewFromInt(100), decimal.NewFromInt(10))
	order.Cancel()
	if order.Status != OrderStatusCancelled {
		t.Errorf("Expected status %s, got %s", OrderStatusCancelled, order.Status)
	}

	other := NewMarketOrder("o2", "t1", SideBuy, decimal.NewFromInt(1))
	other.Reject()
	if other.Status != OrderStatusRejected {
		t.Errorf("Expected status %s, got %s", OrderStatusRejected, other.Status)
	}
}

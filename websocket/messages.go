package websocket

import (
	"github.com/shopspring/decimal"
)

type Message struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type TradeMessage struct {
	TradeID      string          `json:"trade_id"`
	Instrument   string          `json:"instrument"`
	BuyOrderID   string          `json:"buy_order_id"`
	SellOrderID  string          `json:"sell_order_id"`
	BuyerTrader  string          `json:"buyer_trader_id"`
	SellerTrader string          `json:"seller_trader_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Timestamp    int64           `json:"timestamp"`
}

type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type BookSnapshot struct {
	Instrument string      `json:"instrument"`
	Bids       []BookLevel `json:"bids"`
	Asks       []BookLevel `json:"asks"`
	Timestamp  int64       `json:"timestamp"`
}

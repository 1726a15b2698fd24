// Package websocket pushes the engine's event stream to connected
// clients. Like the Redis and Postgres sinks it hangs off the event bus;
// a slow or dead client never blocks matching.
package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Market data feed is read-only; any origin may subscribe.
		return true
	},
}

// Hub maintains the set of active clients and broadcasts engine events
// to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub creates a hub; call Run before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run is the hub's event loop; it owns the client set.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logging.GetLogger().WithField("client_id", client.id).
				Debug("WebSocket client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logging.GetLogger().WithField("client_id", client.id).
					Debug("WebSocket client unregistered")
			}

		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Client cannot keep up; drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast queues a payload for every connected client. Payloads are
// dropped when the buffer is full rather than blocking the caller.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
	}
}

// Listener adapts the hub to the engine's event bus.
func (h *Hub) Listener() engine.EventListener {
	return func(event engine.Event) {
		msg := Message{
			Type:      string(event.Type),
			Timestamp: event.Timestamp.UnixMilli(),
		}

		if trade, ok := event.Data.(*engine.Trade); ok {
			msg.Data = TradeMessage{
				TradeID:      trade.TradeID.String(),
				Instrument:   trade.Instrument,
				BuyOrderID:   trade.BuyOrderID,
				SellOrderID:  trade.SellOrderID,
				BuyerTrader:  trade.BuyerTraderID,
				SellerTrader: trade.SellerTraderID,
				Price:        trade.Price,
				Quantity:     trade.Quantity,
				Timestamp:    trade.Timestamp.UnixMilli(),
			}
		} else {
			msg.Data = event.Data
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			logging.LogSinkError("websocket", "marshal", err)
			return
		}
		h.Broadcast(payload)
	}
}

// ServeWS upgrades an HTTP request to a WebSocket subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogSinkError("websocket", "upgrade", err)
		return
	}

	client := NewClient(h, conn)
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// BuildBookSnapshot renders the current top levels of a book for the
// initial message sent to new subscribers and the HTTP snapshot endpoint.
func BuildBookSnapshot(book *engine.OrderBook, depth int) BookSnapshot {
	bids, asks := book.GetTopLevels(depth)

	snapshot := BookSnapshot{
		Instrument: book.Instrument,
		Bids:       make([]BookLevel, 0, len(bids)),
		Asks:       make([]BookLevel, 0, len(asks)),
		Timestamp:  time.Now().UnixMilli(),
	}
	for _, level := range bids {
		snapshot.Bids = append(snapshot.Bids, BookLevel{Price: level.Price, Size: level.Volume})
	}
	for _, level := range asks {
		snapshot.Asks = append(snapshot.Asks, BookLevel{Price: level.Price, Size: level.Volume})
	}
	return snapshot
}

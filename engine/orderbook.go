package engine

import (
	"container/list"
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/tradeforge/matchbook/models"
)

// PriceLevel is the FIFO queue of resting orders at a single price.
// Orders append at the tail and match from the head (oldest first).
type PriceLevel struct {
	Price  decimal.Decimal
	Orders *list.List
	Volume decimal.Decimal
}

// NewPriceLevel creates an empty price level
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Orders: list.New(),
		Volume: decimal.Zero,
	}
}

func (pl *PriceLevel) AddOrder(order *models.Order) *list.Element {
	element := pl.Orders.PushBack(order)
	pl.Volume = pl.Volume.Add(order.RemainingQuantity())
	return element
}

func (pl *PriceLevel) RemoveOrder(element *list.Element) {
	if element == nil {
		return
	}
	order := element.Value.(*models.Order)
	pl.Volume = pl.Volume.Sub(order.RemainingQuantity())
	pl.Orders.Remove(element)
}

// Front returns the oldest resting order at this level, or nil if empty.
func (pl *PriceLevel) Front() *models.Order {
	element := pl.Orders.Front()
	if element == nil {
		return nil
	}
	return element.Value.(*models.Order)
}

func (pl *PriceLevel) UpdateVolume() {
	pl.Volume = decimal.Zero
	for e := pl.Orders.Front(); e != nil; e = e.Next() {
		order := e.Value.(*models.Order)
		pl.Volume = pl.Volume.Add(order.RemainingQuantity())
	}
}

func (pl *PriceLevel) IsEmpty() bool {
	return pl.Orders.Len() == 0
}

func (pl *PriceLevel) Less(than btree.Item) bool {
	other := than.(*PriceLevel)
	return pl.Price.LessThan(other.Price)
}

// OrderBookSide holds the price levels for one side of the book, ordered
// by price. Best means highest for bids and lowest for asks; both views
// come from the same tree via Min/Max.
type OrderBookSide struct {
	tree *btree.BTree
}

func NewOrderBookSide() *OrderBookSide {
	return &OrderBookSide{
		tree: btree.New(32),
	}
}

func (obs *OrderBookSide) GetOrCreatePriceLevel(price decimal.Decimal) *PriceLevel {
	searchLevel := &PriceLevel{Price: price}

	if item := obs.tree.Get(searchLevel); item != nil {
		return item.(*PriceLevel)
	}

	newLevel := NewPriceLevel(price)
	obs.tree.ReplaceOrInsert(newLevel)
	return newLevel
}

func (obs *OrderBookSide) GetPriceLevel(price decimal.Decimal) *PriceLevel {
	searchLevel := &PriceLevel{Price: price}
	if item := obs.tree.Get(searchLevel); item != nil {
		return item.(*PriceLevel)
	}
	return nil
}

// RemovePriceLevel removes a price level from the tree
func (obs *OrderBookSide) RemovePriceLevel(price decimal.Decimal) {
	searchLevel := &PriceLevel{Price: price}
	obs.tree.Delete(searchLevel)
}

// GetBestPrice returns the best price level (highest for bids, lowest for asks)
func (obs *OrderBookSide) GetBestPrice(isBid bool) *PriceLevel {
	var item btree.Item
	if isBid {
		item = obs.tree.Max()
	} else {
		item = obs.tree.Min()
	}

	if item != nil {
		return item.(*PriceLevel)
	}
	return nil
}

// Ascend iterates through price levels in ascending order
func (obs *OrderBookSide) Ascend(iterator btree.ItemIterator) {
	obs.tree.Ascend(iterator)
}

// Descend iterates through price levels in descending order
func (obs *OrderBookSide) Descend(iterator btree.ItemIterator) {
	obs.tree.Descend(iterator)
}

// Len returns the number of price levels
func (obs *OrderBookSide) Len() int {
	return obs.tree.Len()
}

// OrderLocation tracks where an order currently rests, giving cancellation
// a direct handle instead of a scan through the level.
type OrderLocation struct {
	Side       models.Side
	PriceLevel *PriceLevel
	Element    *list.Element
}

// OrderBook is the complete book for one instrument: a side for bids, a
// side for asks, and an index from order id to location. The index and the
// sides are always mutated together under the same lock; an id is present
// in the index iff the order rests in a level.
type OrderBook struct {
	Instrument string
	Bids       *OrderBookSide
	Asks       *OrderBookSide
	Orders     map[string]*OrderLocation
	nextSeq    uint64
	mu         sync.RWMutex
}

// NewOrderBook creates an empty order book for an instrument
func NewOrderBook(instrument string) *OrderBook {
	return &OrderBook{
		Instrument: instrument,
		Bids:       NewOrderBookSide(),
		Asks:       NewOrderBookSide(),
		Orders:     make(map[string]*OrderLocation),
	}
}

func (ob *OrderBook) sideFor(side models.Side) *OrderBookSide {
	if side == models.SideBuy {
		return ob.Bids
	}
	return ob.Asks
}

// AddOrder inserts a limit order at the tail of its price level and
// registers it in the index. The arrival sequence is assigned here.
func (ob *OrderBook) AddOrder(order *models.Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.nextSeq++
	order.Sequence = ob.nextSeq

	side := ob.sideFor(order.Side)
	priceLevel := side.GetOrCreatePriceLevel(order.Price)
	element := priceLevel.AddOrder(order)

	ob.Orders[order.ID] = &OrderLocation{
		Side:       order.Side,
		PriceLevel: priceLevel,
		Element:    element,
	}
}

// RemoveOrder removes an order from the book and the index, dropping the
// price level if it became empty. Returns nil if the id is unknown.
func (ob *OrderBook) RemoveOrder(orderID string) *models.Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.removeLocked(orderID)
}

func (ob *OrderBook) removeLocked(orderID string) *models.Order {
	location, exists := ob.Orders[orderID]
	if !exists {
		return nil
	}

	order := location.Element.Value.(*models.Order)
	location.PriceLevel.RemoveOrder(location.Element)

	if location.PriceLevel.IsEmpty() {
		ob.sideFor(location.Side).RemovePriceLevel(location.PriceLevel.Price)
	}

	delete(ob.Orders, orderID)
	return order
}

// CancelOrder removes a resting order by id and marks it cancelled.
// Returns nil if the order is not resting (already filled, already
// cancelled, or never seen).
func (ob *OrderBook) CancelOrder(orderID string) *models.Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order := ob.removeLocked(orderID)
	if order == nil {
		return nil
	}

	order.Cancel()
	return order
}

// GetOrder retrieves a resting order by ID (O(1) lookup)
func (ob *OrderBook) GetOrder(orderID string) *models.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	location, exists := ob.Orders[orderID]
	if !exists {
		return nil
	}
	return location.Element.Value.(*models.Order)
}

// UpdateOrder recalculates the owning level's volume after a fill.
func (ob *OrderBook) UpdateOrder(orderID string) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	location, exists := ob.Orders[orderID]
	if !exists {
		return
	}
	location.PriceLevel.UpdateVolume()
}

// GetBestBid returns the highest bid price level
func (ob *OrderBook) GetBestBid() *PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.Bids.GetBestPrice(true)
}

// GetBestAsk returns the lowest ask price level
func (ob *OrderBook) GetBestAsk() *PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.Asks.GetBestPrice(false)
}

// GetBestBidPrice returns the highest bid price (nil if no bids)
func (ob *OrderBook) GetBestBidPrice() *decimal.Decimal {
	bestBid := ob.GetBestBid()
	if bestBid == nil {
		return nil
	}
	return &bestBid.Price
}

// GetBestAskPrice returns the lowest ask price (nil if no asks)
func (ob *OrderBook) GetBestAskPrice() *decimal.Decimal {
	bestAsk := ob.GetBestAsk()
	if bestAsk == nil {
		return nil
	}
	return &bestAsk.Price
}

// IsCrossed reports whether the best bid price reaches the best ask price.
// After any engine operation completes this must be false.
func (ob *OrderBook) IsCrossed() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bestBid := ob.Bids.GetBestPrice(true)
	bestAsk := ob.Asks.GetBestPrice(false)
	if bestBid == nil || bestAsk == nil {
		return false
	}
	return bestBid.Price.GreaterThanOrEqual(bestAsk.Price)
}

// GetSpread returns the bid-ask spread
func (ob *OrderBook) GetSpread() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bestBid := ob.Bids.GetBestPrice(true)
	bestAsk := ob.Asks.GetBestPrice(false)

	if bestBid == nil || bestAsk == nil {
		return decimal.Zero
	}

	return bestAsk.Price.Sub(bestBid.Price)
}

// GetDepth returns the total resting volume on each side
func (ob *OrderBook) GetDepth() (bidVolume, askVolume decimal.Decimal) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bidVolume = decimal.Zero
	askVolume = decimal.Zero

	ob.Bids.Ascend(func(item btree.Item) bool {
		level := item.(*PriceLevel)
		bidVolume = bidVolume.Add(level.Volume)
		return true
	})

	ob.Asks.Ascend(func(item btree.Item) bool {
		level := item.(*PriceLevel)
		askVolume = askVolume.Add(level.Volume)
		return true
	})

	return bidVolume, askVolume
}

// GetTopLevels returns the top N price levels for bids and asks
func (ob *OrderBook) GetTopLevels(n int) (bids, asks []*PriceLevel) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bids = make([]*PriceLevel, 0, n)
	asks = make([]*PriceLevel, 0, n)

	count := 0
	ob.Bids.Descend(func(item btree.Item) bool {
		if count >= n {
			return false
		}
		bids = append(bids, item.(*PriceLevel))
		count++
		return true
	})

	count = 0
	ob.Asks.Ascend(func(item btree.Item) bool {
		if count >= n {
			return false
		}
		asks = append(asks, item.(*PriceLevel))
		count++
		return true
	})

	return bids, asks
}

// Size returns the total number of resting orders
func (ob *OrderBook) Size() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.Orders)
}

// GetBidDepth returns the number of buy orders in the book
func (ob *OrderBook) GetBidDepth() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	count := 0
	ob.Bids.Descend(func(i btree.Item) bool {
		pl := i.(*PriceLevel)
		count += pl.Orders.Len()
		return true
	})
	return count
}

// GetAskDepth returns the number of sell orders in the book
func (ob *OrderBook) GetAskDepth() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	count := 0
	ob.Asks.Ascend(func(i btree.Item) bool {
		pl := i.(*PriceLevel)
		count += pl.Orders.Len()
		return true
	})
	return count
}

// Clear removes all orders from the order book
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.Bids = NewOrderBookSide()
	ob.Asks = NewOrderBookSide()
	ob.Orders = make(map[string]*OrderLocation)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradeforge/matchbook/logging"
	"github.com/tradeforge/matchbook/metrics"
	"github.com/tradeforge/matchbook/models"
	"github.com/tradeforge/matchbook/validation"
)

var (
	ErrNotRunning           = errors.New("matching engine is not running")
	ErrAlreadyRunning       = errors.New("matching engine is already running")
	ErrCommandChannelFull   = errors.New("command channel is full")
	ErrDuplicateOrderID     = errors.New("order id already resting in the book")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrUnknownCommand       = errors.New("unknown command type")
)

// Trade represents a matched trade between two orders
type Trade struct {
	TradeID        uuid.UUID       `json:"trade_id"`
	Instrument     string          `json:"instrument"`
	BuyOrderID     string          `json:"buy_order_id"`
	SellOrderID    string          `json:"sell_order_id"`
	BuyerTraderID  string          `json:"buyer_trader_id"`
	SellerTraderID string          `json:"seller_trader_id"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewTrade creates a trade between a buy and a sell order.
func NewTrade(buy, sell *models.Order, instrument string, price, quantity decimal.Decimal) *Trade {
	return &Trade{
		TradeID:        uuid.New(),
		Instrument:     instrument,
		BuyOrderID:     buy.ID,
		SellOrderID:    sell.ID,
		BuyerTraderID:  buy.TraderID,
		SellerTraderID: sell.TraderID,
		Price:          price,
		Quantity:       quantity,
		Timestamp:      time.Now(),
	}
}

// CommandResponse is the outcome of one processed command.
type CommandResponse struct {
	Trades []*Trade
	Order  *models.Order
	Error  error
}

type commandEnvelope struct {
	command  models.Command
	response chan *CommandResponse
}

// Config holds per-engine settings. VerboseEvents replaces the module-wide
// debug flag of older engines: verbosity is scoped to one engine instance
// so concurrent books and tests do not interfere.
type Config struct {
	Instrument    string
	VerboseEvents bool
	CommandBuffer int
}

func DefaultConfig(instrument string) Config {
	return Config{
		Instrument:    instrument,
		CommandBuffer: 1000,
	}
}

// MatchingEngine owns one order book and processes commands on a single
// worker goroutine. Only that goroutine ever mutates the book, so limit
// adds, market sweeps and cancels are strictly serialized per instrument;
// separate instruments run separate engines in parallel.
type MatchingEngine struct {
	orderBook *OrderBook
	validator *validation.CommandValidator
	eventBus  *EventBus

	commandChan chan *commandEnvelope
	stopChan    chan struct{}
	wg          sync.WaitGroup
	isRunning   bool
	mu          sync.RWMutex

	verboseEvents bool
	log           *logrus.Logger

	commandsProcessed uint64
	channelBlocks     uint64
}

func NewMatchingEngine(cfg Config) *MatchingEngine {
	buffer := cfg.CommandBuffer
	if buffer <= 0 {
		buffer = 1000
	}
	return &MatchingEngine{
		orderBook:     NewOrderBook(cfg.Instrument),
		validator:     validation.NewDefaultCommandValidator(),
		eventBus:      NewEventBus(),
		commandChan:   make(chan *commandEnvelope, buffer),
		stopChan:      make(chan struct{}),
		verboseEvents: cfg.VerboseEvents,
		log:           logging.GetLogger(),
	}
}

// SetVerboseEvents toggles per-engine verbose event logging.
func (me *MatchingEngine) SetVerboseEvents(enabled bool) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.verboseEvents = enabled
}

func (me *MatchingEngine) verbose() bool {
	me.mu.RLock()
	defer me.mu.RUnlock()
	return me.verboseEvents
}

func (me *MatchingEngine) debugLog(format string, args ...interface{}) {
	if me.verbose() {
		me.log.Debugf(format, args...)
	}
}

func (me *MatchingEngine) GetEventBus() *EventBus {
	return me.eventBus
}

func (me *MatchingEngine) SubscribeToEvents(eventType EventType, listener EventListener) {
	me.eventBus.Subscribe(eventType, listener)
}

// SubscribeToAllEvents registers a listener for the full event stream.
func (me *MatchingEngine) SubscribeToAllEvents(listener EventListener) {
	me.eventBus.SubscribeAll(listener)
}

// Start begins the single-threaded matching worker. Only one goroutine
// ever accesses the book; commands are processed one at a time in arrival
// order, so no operation observes another mid-flight.
func (me *MatchingEngine) Start(ctx context.Context) error {
	me.mu.Lock()
	if me.isRunning {
		me.mu.Unlock()
		return ErrAlreadyRunning
	}
	me.isRunning = true
	me.mu.Unlock()

	me.wg.Add(1)
	go me.matchingWorker(ctx)

	return nil
}

// Stop gracefully shuts down the matching engine
func (me *MatchingEngine) Stop() error {
	me.mu.Lock()
	if !me.isRunning {
		me.mu.Unlock()
		return ErrNotRunning
	}
	me.mu.Unlock()

	close(me.stopChan)
	me.wg.Wait()

	me.mu.Lock()
	me.isRunning = false
	me.mu.Unlock()

	return nil
}

// IsRunning returns whether the matching engine is currently running
func (me *MatchingEngine) IsRunning() bool {
	me.mu.RLock()
	defer me.mu.RUnlock()
	return me.isRunning
}

// matchingWorker is the single goroutine that touches the order book.
func (me *MatchingEngine) matchingWorker(ctx context.Context) {
	defer me.wg.Done()

	for {
		select {
		case <-ctx.Done():
			me.drainCommands()
			return

		case <-me.stopChan:
			me.drainCommands()
			return

		case envelope := <-me.commandChan:
			me.processCommand(envelope)
		}
	}
}

// drainCommands processes any remaining commands before stopping
func (me *MatchingEngine) drainCommands() {
	for {
		select {
		case envelope := <-me.commandChan:
			me.processCommand(envelope)
		default:
			return
		}
	}
}

// Submit posts a command to the worker and waits for the outcome. It is
// safe to call from any goroutine.
func (me *MatchingEngine) Submit(cmd models.Command) (*CommandResponse, error) {
	me.mu.RLock()
	if !me.isRunning {
		me.mu.RUnlock()
		return nil, ErrNotRunning
	}
	me.mu.RUnlock()

	responseChan := make(chan *CommandResponse, 1)
	envelope := &commandEnvelope{
		command:  cmd,
		response: responseChan,
	}

	select {
	case me.commandChan <- envelope:
		response := <-responseChan
		return response, response.Error
	default:
		me.mu.Lock()
		me.channelBlocks++
		me.mu.Unlock()
		return nil, ErrCommandChannelFull
	}
}

// LimitAdd submits a limit order and returns the trades it produced.
func (me *MatchingEngine) LimitAdd(orderID, traderID string, side models.Side, price, quantity decimal.Decimal) (*CommandResponse, error) {
	return me.Submit(models.LimitAddCommand(orderID, traderID, side, price, quantity))
}

// MarketAdd submits a market order sweeping the opposite side.
func (me *MatchingEngine) MarketAdd(orderID, traderID string, side models.Side, quantity decimal.Decimal) (*CommandResponse, error) {
	return me.Submit(models.MarketAddCommand(orderID, traderID, side, quantity))
}

// Cancel removes a resting order. Cancelling an unknown id is a no-op
// that reports OrderNotFound; it is never an error.
func (me *MatchingEngine) Cancel(orderID string) (*CommandResponse, error) {
	return me.Submit(models.CancelCommand(orderID))
}

// Modify is not supported. It rejects explicitly so callers cannot
// mistake it for success; cancel + re-add is the supported path.
func (me *MatchingEngine) Modify(orderID string) (*CommandResponse, error) {
	return me.Submit(models.Command{Type: models.CommandModify, OrderID: orderID})
}

// processCommand handles one command; only called by the worker.
func (me *MatchingEngine) processCommand(envelope *commandEnvelope) {
	start := time.Now()
	cmd := envelope.command

	me.mu.Lock()
	me.commandsProcessed++
	me.mu.Unlock()

	metrics.RecordCommandReceived(me.orderBook.Instrument, string(cmd.Type))

	var response *CommandResponse
	switch cmd.Type {
	case models.CommandLimitAdd:
		response = me.applyLimitAdd(cmd)
	case models.CommandMarketAdd:
		response = me.applyMarketAdd(cmd)
	case models.CommandCancel:
		response = me.applyCancel(cmd)
	case models.CommandModify:
		response = me.applyModify(cmd)
	default:
		response = &CommandResponse{
			Error: fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type),
		}
	}

	metrics.ObserveCommandLatency(me.orderBook.Instrument, string(cmd.Type), time.Since(start).Seconds())
	me.updateBookMetrics()

	if envelope.response != nil {
		envelope.response <- response
		close(envelope.response)
	}
}

// reject emits a Rejected event and counts it; the book is untouched.
func (me *MatchingEngine) reject(orderID string, err error) *CommandResponse {
	me.publish(EventTypeRejected, RejectedEvent{
		OrderID: orderID,
		Reason:  err.Error(),
	})
	metrics.RecordOrderRejected(me.orderBook.Instrument, rejectReason(err))
	logging.LogOrderRejected(orderID, me.orderBook.Instrument, err.Error())
	return &CommandResponse{Error: err}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidQuantity),
		errors.Is(err, validation.ErrQuantityOutOfRange):
		return "invalid_quantity"
	case errors.Is(err, validation.ErrInvalidPrice),
		errors.Is(err, validation.ErrPriceOutOfRange),
		errors.Is(err, validation.ErrPricePrecisionExceeded):
		return "invalid_price"
	case errors.Is(err, ErrDuplicateOrderID):
		return "duplicate_order_id"
	case errors.Is(err, ErrUnsupportedOperation):
		return "unsupported_operation"
	default:
		return "invalid_command"
	}
}

// applyLimitAdd validates, rests the order at its price level, then runs
// the continuous match loop until the book is no longer crossed.
func (me *MatchingEngine) applyLimitAdd(cmd models.Command) *CommandResponse {
	if err := me.validator.ValidateLimitAdd(cmd); err != nil {
		return me.reject(cmd.OrderID, err)
	}
	if me.orderBook.GetOrder(cmd.OrderID) != nil {
		return me.reject(cmd.OrderID, fmt.Errorf("%w: %s", ErrDuplicateOrderID, cmd.OrderID))
	}

	order := models.NewLimitOrder(cmd.OrderID, cmd.TraderID, cmd.Side, cmd.Price, cmd.Quantity)
	me.orderBook.AddOrder(order)

	me.debugLog("limit add: id=%s side=%s price=%s qty=%s", order.ID, order.Side, order.Price, order.Quantity)

	trades := me.matchLoop()

	return &CommandResponse{
		Trades: trades,
		Order:  order,
	}
}

// matchLoop matches the heads of the best bid and best ask levels while
// the book is crossed. The trade prints at the maker's price: the head
// with the lower arrival sequence was resting first, so the taker always
// receives the price improvement. One incoming order may chain through
// arbitrarily many resting orders; every iteration shrinks a level, so
// the loop terminates with best bid strictly below best ask (or one side
// empty).
func (me *MatchingEngine) matchLoop() []*Trade {
	trades := make([]*Trade, 0)

	for {
		bidLevel := me.orderBook.GetBestBid()
		askLevel := me.orderBook.GetBestAsk()
		if bidLevel == nil || askLevel == nil {
			break
		}
		if bidLevel.Price.LessThan(askLevel.Price) {
			break
		}

		bidHead := bidLevel.Front()
		askHead := askLevel.Front()

		matchQty := decimal.Min(bidHead.RemainingQuantity(), askHead.RemainingQuantity())

		price := bidLevel.Price
		if askHead.Sequence < bidHead.Sequence {
			price = askLevel.Price
		}

		bidHead.Fill(matchQty)
		askHead.Fill(matchQty)

		trade := NewTrade(bidHead, askHead, me.orderBook.Instrument, price, matchQty)
		trades = append(trades, trade)
		me.emitTrade(trade)

		me.orderBook.UpdateOrder(bidHead.ID)
		me.orderBook.UpdateOrder(askHead.ID)

		if bidHead.IsFilled() {
			me.orderBook.RemoveOrder(bidHead.ID)
		}
		if askHead.IsFilled() {
			me.orderBook.RemoveOrder(askHead.ID)
		}
	}

	return trades
}

// applyMarketAdd sweeps the opposite side of the book level by level.
// Market orders never rest and never enter the index: whatever cannot be
// filled against available liquidity is reported and discarded. Immediacy
// is the whole contract of a market order; queuing the remainder would
// silently turn it into a limit order at an unknown price.
func (me *MatchingEngine) applyMarketAdd(cmd models.Command) *CommandResponse {
	if err := me.validator.ValidateMarketAdd(cmd); err != nil {
		return me.reject(cmd.OrderID, err)
	}

	order := models.NewMarketOrder(cmd.OrderID, cmd.TraderID, cmd.Side, cmd.Quantity)
	trades := make([]*Trade, 0)

	me.debugLog("market add: id=%s side=%s qty=%s", order.ID, order.Side, order.Quantity)

	for order.RemainingQuantity().GreaterThan(decimal.Zero) {
		var level *PriceLevel
		if order.Side == models.SideBuy {
			level = me.orderBook.GetBestAsk()
		} else {
			level = me.orderBook.GetBestBid()
		}
		if level == nil {
			// Book ran dry
			break
		}

		for order.RemainingQuantity().GreaterThan(decimal.Zero) {
			head := level.Front()
			if head == nil {
				break
			}

			matchQty := decimal.Min(order.RemainingQuantity(), head.RemainingQuantity())

			order.Fill(matchQty)
			head.Fill(matchQty)

			// The trade prints at the swept level's own price.
			var trade *Trade
			if order.Side == models.SideBuy {
				trade = NewTrade(order, head, me.orderBook.Instrument, level.Price, matchQty)
			} else {
				trade = NewTrade(head, order, me.orderBook.Instrument, level.Price, matchQty)
			}
			trades = append(trades, trade)
			me.emitTrade(trade)

			me.orderBook.UpdateOrder(head.ID)
			if head.IsFilled() {
				// Removes the level too once it empties
				me.orderBook.RemoveOrder(head.ID)
			}
		}
	}

	remaining := order.RemainingQuantity()
	if remaining.GreaterThan(decimal.Zero) {
		if order.FilledQuantity.IsZero() {
			order.Reject()
		}
		me.publish(EventTypeMarketRemainder, MarketRemainderEvent{
			OrderID:          order.ID,
			UnfilledQuantity: remaining,
		})
		metrics.RecordMarketRemainder(me.orderBook.Instrument)
		logging.LogMarketRemainder(order.ID, me.orderBook.Instrument, remaining.String())
	}

	return &CommandResponse{
		Trades: trades,
		Order:  order,
	}
}

// applyCancel removes a resting order by id. An unknown id is reported
// via OrderNotFound and leaves the book untouched, so repeated cancels
// are harmless.
func (me *MatchingEngine) applyCancel(cmd models.Command) *CommandResponse {
	if err := me.validator.ValidateCancel(cmd); err != nil {
		return me.reject(cmd.OrderID, err)
	}

	order := me.orderBook.CancelOrder(cmd.OrderID)
	if order == nil {
		me.debugLog("cancel: id=%s not found", cmd.OrderID)
		me.publish(EventTypeOrderNotFound, OrderNotFoundEvent{OrderID: cmd.OrderID})
		metrics.RecordCancel(me.orderBook.Instrument, "not_found")
		logging.LogOrderNotFound(cmd.OrderID, me.orderBook.Instrument)
		return &CommandResponse{}
	}

	me.debugLog("cancel: id=%s removed at price=%s", order.ID, order.Price)
	me.publish(EventTypeCancelled, CancelledEvent{OrderID: order.ID})
	metrics.RecordCancel(me.orderBook.Instrument, "cancelled")
	logging.LogOrderCancelled(order.ID, order.TraderID, me.orderBook.Instrument)

	return &CommandResponse{Order: order}
}

func (me *MatchingEngine) applyModify(cmd models.Command) *CommandResponse {
	return me.reject(cmd.OrderID, fmt.Errorf("%w: modify", ErrUnsupportedOperation))
}

func (me *MatchingEngine) emitTrade(trade *Trade) {
	me.publish(EventTypeTrade, trade)

	qty, _ := trade.Quantity.Float64()
	metrics.RecordTrade(trade.Instrument, qty)
	logging.LogTradeExecuted(trade.TradeID.String(), trade.BuyOrderID, trade.SellOrderID,
		trade.Instrument, trade.Price.String(), trade.Quantity.String(),
		trade.BuyerTraderID, trade.SellerTraderID)

	me.debugLog("trade: qty=%s price=%s buy=%s sell=%s", trade.Quantity, trade.Price, trade.BuyOrderID, trade.SellOrderID)
}

func (me *MatchingEngine) publish(eventType EventType, data interface{}) {
	me.eventBus.Publish(Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (me *MatchingEngine) GetOrderBook() *OrderBook {
	return me.orderBook
}

func (me *MatchingEngine) updateBookMetrics() {
	instrument := me.orderBook.Instrument

	metrics.UpdateBookDepth(instrument, "buy", float64(me.orderBook.GetBidDepth()))
	metrics.UpdateBookDepth(instrument, "sell", float64(me.orderBook.GetAskDepth()))

	bestBidPrice := 0.0
	bestAskPrice := 0.0
	if bestBid := me.orderBook.GetBestBidPrice(); bestBid != nil {
		bestBidPrice, _ = bestBid.Float64()
	}
	if bestAsk := me.orderBook.GetBestAskPrice(); bestAsk != nil {
		bestAskPrice, _ = bestAsk.Float64()
	}
	metrics.UpdateBestPrices(instrument, bestBidPrice, bestAskPrice)
}

// GetStats reports engine health counters.
func (me *MatchingEngine) GetStats() map[string]interface{} {
	me.mu.RLock()
	defer me.mu.RUnlock()

	return map[string]interface{}{
		"is_running":         me.isRunning,
		"total_orders":       me.orderBook.Size(),
		"bid_levels":         me.orderBook.Bids.Len(),
		"ask_levels":         me.orderBook.Asks.Len(),
		"command_backlog":    len(me.commandChan),
		"command_capacity":   cap(me.commandChan),
		"commands_processed": me.commandsProcessed,
		"channel_blocks":     me.channelBlocks,
	}
}

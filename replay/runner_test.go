package replay

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/models"
)

const csvHeader = "seq,event_type,order_id,side,price,qty,trader_id\n"

func newReplayEngine(t *testing.T) *engine.MatchingEngine {
	t.Helper()

	me := engine.NewMatchingEngine(engine.DefaultConfig("BTC-USD"))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, me.Start(ctx))
	t.Cleanup(func() {
		cancel()
		if me.IsRunning() {
			_ = me.Stop()
		}
	})
	return me
}

func TestParseRecordLimitAdd(t *testing.T) {
	cmd, err := ParseRecord([]string{"1", "LIMIT_ADD", "o1", "BUY", "100.5", "2", "alice"})
	require.NoError(t, err)

	assert.Equal(t, models.CommandLimitAdd, cmd.Type)
	assert.Equal(t, "o1", cmd.OrderID)
	assert.Equal(t, "alice", cmd.TraderID)
	assert.Equal(t, models.SideBuy, cmd.Side)
	assert.True(t, cmd.Price.Equal(decimal.NewFromFloat(100.5)))
	assert.True(t, cmd.Quantity.Equal(decimal.NewFromInt(2)))
}

func TestParseRecordMarket(t *testing.T) {
	cmd, err := ParseRecord([]string{"2", "market", "m1", "sell", "", "3", "bob"})
	require.NoError(t, err)

	assert.Equal(t, models.CommandMarketAdd, cmd.Type)
	assert.Equal(t, models.SideSell, cmd.Side)
	assert.True(t, cmd.Price.IsZero())
	assert.True(t, cmd.Quantity.Equal(decimal.NewFromInt(3)))
}

func TestParseRecordCancel(t *testing.T) {
	// Cancel rows may omit the trailing columns
	cmd, err := ParseRecord([]string{"3", "CANCEL", "o1"})
	require.NoError(t, err)

	assert.Equal(t, models.CommandCancel, cmd.Type)
	assert.Equal(t, "o1", cmd.OrderID)
}

func TestParseRecordErrors(t *testing.T) {
	_, err := ParseRecord([]string{"1", "LIMIT_ADD"})
	assert.ErrorIs(t, err, ErrShortRecord)

	_, err = ParseRecord([]string{"1", "LIMIT_ADD", "o1", "BUY", "100"})
	assert.ErrorIs(t, err, ErrShortRecord)

	_, err = ParseRecord([]string{"1", "REPLACE", "o1", "BUY", "100", "2", "alice"})
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = ParseRecord([]string{"1", "LIMIT_ADD", "o1", "LONG", "100", "2", "alice"})
	assert.ErrorIs(t, err, ErrBadSide)

	_, err = ParseRecord([]string{"1", "LIMIT_ADD", "o1", "BUY", "not-a-price", "2", "alice"})
	assert.Error(t, err)
}

func TestRunReplaysCommands(t *testing.T) {
	me := newReplayEngine(t)
	runner := NewRunner(me)

	input := csvHeader +
		"1,LIMIT_ADD,b1,BUY,100,10,alice\n" +
		"2,LIMIT_ADD,s1,SELL,100,4,bob\n" +
		"3,LIMIT_ADD,s2,SELL,95,8,carol\n"

	stats, err := runner.Run(context.Background(), strings.NewReader(input), "test")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Commands)
	assert.Equal(t, 2, stats.Trades)
	assert.Equal(t, 0, stats.Errors)

	book := me.GetOrderBook()
	assert.Nil(t, book.GetBestBid())
	require.NotNil(t, book.GetBestAsk())
	assert.True(t, book.GetBestAskPrice().Equal(decimal.NewFromInt(95)))
}

func TestRunSkipsMalformedRecords(t *testing.T) {
	me := newReplayEngine(t)
	runner := NewRunner(me)

	input := csvHeader +
		"1,LIMIT_ADD,b1,BUY,100,5,alice\n" +
		"2,BOGUS,x1,BUY,100,5,alice\n" +
		"3,LIMIT_ADD,b2,BUY,abc,5,alice\n" +
		"4,CANCEL,b1\n"

	stats, err := runner.Run(context.Background(), strings.NewReader(input), "test")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Commands)
	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 0, me.GetOrderBook().Size())
}

func TestRunCountsRejectedCommands(t *testing.T) {
	me := newReplayEngine(t)
	runner := NewRunner(me)

	input := csvHeader +
		"1,LIMIT_ADD,b1,BUY,100,5,alice\n" +
		"2,LIMIT_ADD,b1,BUY,99,5,alice\n"

	stats, err := runner.Run(context.Background(), strings.NewReader(input), "test")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Commands)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, me.GetOrderBook().Size())
}

func TestRunHonorsContextCancellation(t *testing.T) {
	me := newReplayEngine(t)
	runner := NewRunner(me)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, strings.NewReader(csvHeader), "test")
	assert.ErrorIs(t, err, context.Canceled)
}

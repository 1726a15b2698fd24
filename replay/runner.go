// Package replay drives a matching engine from recorded command streams.
// It is one possible command source among many; anything able to produce
// models.Command can replace it.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/logging"
	"github.com/tradeforge/matchbook/models"
)

// CSV record layout: seq, event_type, order_id, side, price, qty, trader_id.
// The first row is a header. Market orders leave the price column unused.
const (
	fieldEventType = 1
	fieldOrderID   = 2
	fieldSide      = 3
	fieldPrice     = 4
	fieldQuantity  = 5
	fieldTraderID  = 6

	recordFields = 7
)

var (
	ErrShortRecord      = errors.New("record has too few fields")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrBadSide          = errors.New("unrecognized side")
)

// Stats summarizes one replay run.
type Stats struct {
	Commands int
	Trades   int
	Errors   int
}

// Runner feeds parsed commands into a running engine.
type Runner struct {
	engine *engine.MatchingEngine
	log    *logrus.Logger
}

func NewRunner(me *engine.MatchingEngine) *Runner {
	return &Runner{
		engine: me,
		log:    logging.GetLogger(),
	}
}

// RunFile replays a CSV event file into the engine.
func (r *Runner) RunFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	return r.Run(ctx, f, path)
}

// Run replays CSV records from src. Malformed records and rejected
// commands are counted and logged but do not stop the replay; the book
// must survive bad input the same way it survives bad commands.
func (r *Runner) Run(ctx context.Context, src io.Reader, source string) (Stats, error) {
	start := time.Now()
	instrument := r.engine.GetOrderBook().Instrument
	logging.LogReplayStarted(source, instrument)

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var stats Stats
	header := true

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Errors++
			r.log.WithError(err).Warn("Skipping unreadable replay record")
			continue
		}
		if header {
			header = false
			continue
		}

		cmd, err := ParseRecord(record)
		if err != nil {
			stats.Errors++
			r.log.WithFields(logrus.Fields{
				"record": strings.Join(record, ","),
			}).WithError(err).Warn("Skipping malformed replay record")
			continue
		}

		stats.Commands++
		response, err := r.engine.Submit(cmd)
		if err != nil {
			stats.Errors++
			continue
		}
		stats.Trades += len(response.Trades)
	}

	logging.LogReplayCompleted(source, stats.Commands, stats.Trades, stats.Errors, time.Since(start))
	return stats, nil
}

// ParseRecord translates one CSV record into a typed command.
func ParseRecord(record []string) (models.Command, error) {
	if len(record) < fieldOrderID+1 {
		return models.Command{}, ErrShortRecord
	}

	eventType := strings.ToUpper(strings.TrimSpace(record[fieldEventType]))
	orderID := strings.TrimSpace(record[fieldOrderID])

	switch eventType {
	case "LIMIT_ADD":
		if len(record) < recordFields {
			return models.Command{}, ErrShortRecord
		}
		side, err := parseSide(record[fieldSide])
		if err != nil {
			return models.Command{}, err
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[fieldPrice]))
		if err != nil {
			return models.Command{}, fmt.Errorf("bad price %q: %w", record[fieldPrice], err)
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(record[fieldQuantity]))
		if err != nil {
			return models.Command{}, fmt.Errorf("bad quantity %q: %w", record[fieldQuantity], err)
		}
		trader := strings.TrimSpace(record[fieldTraderID])
		return models.LimitAddCommand(orderID, trader, side, price, qty), nil

	case "MARKET":
		if len(record) < recordFields {
			return models.Command{}, ErrShortRecord
		}
		side, err := parseSide(record[fieldSide])
		if err != nil {
			return models.Command{}, err
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(record[fieldQuantity]))
		if err != nil {
			return models.Command{}, fmt.Errorf("bad quantity %q: %w", record[fieldQuantity], err)
		}
		trader := strings.TrimSpace(record[fieldTraderID])
		return models.MarketAddCommand(orderID, trader, side, qty), nil

	case "CANCEL":
		return models.CancelCommand(orderID), nil

	default:
		return models.Command{}, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

func parseSide(raw string) (models.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return models.SideBuy, nil
	case "SELL":
		return models.SideSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadSide, raw)
	}
}

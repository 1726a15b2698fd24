package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/websocket"
)

const defaultDepth = 20

// TopOfBookResponse is the best-price summary for one instrument.
type TopOfBookResponse struct {
	Instrument string           `json:"instrument"`
	BestBid    *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk    *decimal.Decimal `json:"best_ask,omitempty"`
	Spread     decimal.Decimal  `json:"spread"`
	BidVolume  decimal.Decimal  `json:"bid_volume"`
	AskVolume  decimal.Decimal  `json:"ask_volume"`
	Timestamp  int64            `json:"timestamp"`
}

// HandleHealth reports liveness and whether the worker is running.
func HandleHealth(me *engine.MatchingEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]interface{}{
			"status":  "ok",
			"running": me.IsRunning(),
		}
		if !me.IsRunning() {
			status = http.StatusServiceUnavailable
			body["status"] = "engine stopped"
		}
		respondJSON(w, status, body)
	}
}

// HandleBookSnapshot returns the top N price levels per side.
func HandleBookSnapshot(me *engine.MatchingEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depth := defaultDepth
		if raw := r.URL.Query().Get("depth"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				respondError(w, http.StatusBadRequest, "depth must be a positive integer")
				return
			}
			depth = parsed
		}

		snapshot := websocket.BuildBookSnapshot(me.GetOrderBook(), depth)
		respondJSON(w, http.StatusOK, snapshot)
	}
}

// HandleTopOfBook returns best bid/ask, spread and side volumes.
func HandleTopOfBook(me *engine.MatchingEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		book := me.GetOrderBook()
		bidVolume, askVolume := book.GetDepth()

		respondJSON(w, http.StatusOK, TopOfBookResponse{
			Instrument: book.Instrument,
			BestBid:    book.GetBestBidPrice(),
			BestAsk:    book.GetBestAskPrice(),
			Spread:     book.GetSpread(),
			BidVolume:  bidVolume,
			AskVolume:  askVolume,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
}

// HandleStats exposes engine health counters.
func HandleStats(me *engine.MatchingEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, me.GetStats())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

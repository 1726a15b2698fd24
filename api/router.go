// Package api exposes a read-only HTTP surface over the engine: health,
// metrics, book snapshots and the WebSocket feed. There are no order
// entry endpoints; commands reach the engine through typed Command values
// from whatever source drives it.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/websocket"
)

// NewRouter wires the HTTP routes.
func NewRouter(me *engine.MatchingEngine, hub *websocket.Hub) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", HandleHealth(me)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/book", HandleBookSnapshot(me)).Methods(http.MethodGet)
	v1.HandleFunc("/book/top", HandleTopOfBook(me)).Methods(http.MethodGet)
	v1.HandleFunc("/stats", HandleStats(me)).Methods(http.MethodGet)

	if hub != nil {
		router.HandleFunc("/ws", hub.ServeWS)
	}

	return router
}

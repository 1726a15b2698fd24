// Command replayd runs a single-instrument matching engine. Commands come
// from a CSV replay file; trades and order lifecycle events go to the
// configured sinks (structured log, Redis pub/sub, Postgres journal,
// WebSocket feed). A read-only HTTP surface exposes health, metrics and
// book snapshots.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeforge/matchbook/api"
	"github.com/tradeforge/matchbook/config"
	"github.com/tradeforge/matchbook/engine"
	"github.com/tradeforge/matchbook/logging"
	"github.com/tradeforge/matchbook/persistence"
	"github.com/tradeforge/matchbook/pubsub"
	"github.com/tradeforge/matchbook/replay"
	"github.com/tradeforge/matchbook/websocket"
)

func main() {
	log := logging.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	me := engine.NewMatchingEngine(engine.Config{
		Instrument:    cfg.Engine.Instrument,
		VerboseEvents: cfg.Engine.VerboseEvents,
		CommandBuffer: cfg.Engine.CommandBuffer,
	})

	hub := websocket.NewHub()
	go hub.Run()
	me.SubscribeToAllEvents(hub.Listener())

	if cfg.Redis.Enabled {
		publisher, err := pubsub.NewPublisher(&pubsub.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer publisher.Close()
		me.SubscribeToAllEvents(publisher.Listener())
		log.WithField("addr", cfg.Redis.Addr).Info("Redis event sink enabled")
	}

	if cfg.Postgres.Enabled {
		journal, err := persistence.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.WithError(err).Fatal("Failed to open Postgres journal")
		}
		defer journal.Close()
		me.SubscribeToAllEvents(journal.Listener())
		log.Info("Postgres journal sink enabled")
	}

	if err := me.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start matching engine")
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.NewRouter(me, hub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logging.LogServerStarted(cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	if cfg.Replay.File != "" {
		runner := replay.NewRunner(me)
		stats, err := runner.RunFile(ctx, cfg.Replay.File)
		if err != nil {
			log.WithError(err).Error("Replay failed")
		} else {
			log.WithFields(map[string]interface{}{
				"commands": stats.Commands,
				"trades":   stats.Trades,
				"errors":   stats.Errors,
			}).Info("Replay finished")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	if err := me.Stop(); err != nil {
		log.WithError(err).Warn("Engine stop reported an error")
	}
}

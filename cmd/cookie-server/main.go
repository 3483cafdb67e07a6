// Package main is the entry point for the cookie clicker game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/engine"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/network"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/config"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	lowResource := flag.Bool("low-resource", false, "in-memory storage and small buffers")
	flag.Parse()

	appLogger := logger.NewLogger()
	appLogger.Info("Initializing Cookie Clicker authoritative server...")

	cfg := config.LowResourceConfig()
	if !*lowResource {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			appLogger.Error("Invalid configuration: " + err.Error())
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	appLogger.Infof("Opening %s storage...", cfg.Storage.Driver)
	be, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		appLogger.Error("Failed to initialize storage: " + err.Error())
		os.Exit(1)
	}
	defer be.Close()

	collector := metrics.Get()

	appLogger.Info("Bootstrapping EventLog...")
	var persister events.EventPersister
	if be.journal != nil {
		persister = &JournalAdapter{repo: be.journal}
	}
	eventLog := events.NewEventLog(cfg.Game.HistorySize, persister)
	eventLog.OnPersist(collector.RecordEventWrite)

	appLogger.Info("Bootstrapping Engine...")
	gameEngine := engine.NewEngine(be.store, eventLog, appLogger, engine.Options{
		SaveKey:        cfg.Storage.SaveKey,
		MaxTickSeconds: cfg.Game.MaxTickSeconds,
		Metrics:        collector,
	})
	if err := gameEngine.Load(ctx); errors.Is(err, economy.ErrLoadFailed) {
		if !recoverFromJournal(ctx, gameEngine, be.journal, appLogger) {
			appLogger.Warn("Starting from a fresh game: " + err.Error())
		}
	}

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(gameEngine, appLogger, collector, network.HubOptions{
		BroadcastBuffer:      cfg.Network.BroadcastBuffer,
		ClientSendBuffer:     cfg.Network.ClientSendBuffer,
		MaxMessagesPerSecond: cfg.Network.MaxMessagesPerSecond,
		MessageBurst:         cfg.Network.MessageBurst,
	})
	go hub.Run(ctx)
	detach := hub.Attach(eventLog)
	defer detach()

	scheduler := engine.NewScheduler(gameEngine, appLogger, cfg.Game.TickInterval, cfg.Game.AutosaveInterval)
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedulerDone)
	}()

	// Setup API Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	network.NewAPIHandler(gameEngine, eventLog, be.journal, appLogger).RegisterRoutes(mux)
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/metrics/prometheus", collector.PrometheusHandler())

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed: " + err.Error())
			cancel()
		}
	}()

	appLogger.Info("Server running. Press Ctrl+C to exit.")
	<-ctx.Done()

	appLogger.Info("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown: " + err.Error())
	}
	// The scheduler performs the final save.
	<-schedulerDone
}

// Package main runs the game in a terminal with an in-process engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/CookieClicker/server/internal/audio"
	"github.com/MRamiBalles/CookieClicker/server/internal/engine"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/config"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
)

const frameInterval = 50 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	logPath := flag.String("log", "cookie-term.log", "log file (the terminal is busy drawing)")
	flag.Parse()

	if err := run(*configPath, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "cookie-term: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	appLogger := logger.NewWriterLogger(logFile)

	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	eventLog := events.NewEventLog(cfg.Game.HistorySize, nil)
	gameEngine := engine.NewEngine(store, eventLog, appLogger, engine.Options{
		SaveKey:        cfg.Storage.SaveKey,
		MaxTickSeconds: cfg.Game.MaxTickSeconds,
	})

	board := audio.NewSoundBoard(audio.DefaultVolume)
	if err := board.Initialize(); err != nil {
		// Non-fatal, the game runs without sound.
		appLogger.Warn("Audio initialization failed: " + err.Error())
	}
	defer board.Close()
	eventLog.Subscribe(board.HandleEvent)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	view := startSession(ctx, screen, gameEngine, eventLog)
	board.SetEnabled(gameEngine.State().Settings.SoundEnabled)

	scheduler := engine.NewScheduler(gameEngine, appLogger, cfg.Game.TickInterval, cfg.Game.AutosaveInterval)
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedulerDone)
	}()
	defer func() {
		scheduler.Stop()
		<-schedulerDone
	}()

	loop(ctx, screen, view)
	return nil
}

// startSession attaches a renderer to the engine and then loads the save, so
// load outcomes such as an unreadable save reach the status line.
func startSession(ctx context.Context, screen tcell.Screen, gameEngine *engine.Engine, eventLog *events.EventLog) *ui {
	view := newUI(screen, gameEngine)
	eventLog.Subscribe(view.handleEvent)
	_ = gameEngine.Load(ctx)
	return view
}

// openStore uses the configured SQLite file; any other driver keeps the save
// in memory for this session.
func openStore(cfg config.StorageConfig) (engine.Store, func(), error) {
	if cfg.Driver != config.DriverSQLite {
		return storage.NewMemoryKVStore(), func() {}, nil
	}
	db, err := storage.InitSQLite(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewSQLiteKVStore(db), func() { db.Close() }, nil
}

func loop(ctx context.Context, screen tcell.Screen, view *ui) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				// Screen finalized.
				return
			}
			eventChan <- ev
		}
	}()

	view.draw()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !view.handleKey(ctx, ev) {
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			view.draw()
		case <-ticker.C:
			view.draw()
		}
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/server/internal/network"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/config"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
)

// backend is the opened persistence layer. journal is nil when disabled
// or unsupported by the driver.
type backend struct {
	store   storage.KVStore
	journal storage.EventRepository
	db      *sql.DB
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func openBackend(ctx context.Context, cfg config.StorageConfig) (*backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &backend{store: storage.NewMemoryKVStore()}, nil
	case config.DriverSQLite:
		db, err := storage.InitSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		b := &backend{store: storage.NewSQLiteKVStore(db), db: db}
		if cfg.Journal {
			b.journal = storage.NewSQLiteEventRepository(db)
		}
		return b, nil
	case config.DriverPostgres:
		db, err := storage.InitPostgres(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		b := &backend{store: storage.NewPostgresKVStore(db), db: db}
		if cfg.Journal {
			b.journal = storage.NewPostgresEventRepository(db)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// JournalAdapter translates domain events to storage events.
// COOKIES_CHANGED fires on nearly every tick and is not journaled.
type JournalAdapter struct {
	repo storage.EventRepository
}

func (a *JournalAdapter) Append(event events.GameEvent) error {
	if event.Type == events.EventTypeCookiesChanged {
		return nil
	}
	return a.repo.Append(context.Background(), storage.GameEvent{
		ID:        event.ID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		Payload:   network.PayloadMap(event.Payload),
	})
}

type restorer interface {
	Restore(ctx context.Context, levels map[economy.Kind]int, multiplier float64)
}

// recoverFromJournal rebuilds upgrades and the multiplier from the journal
// after the save could not be read. It reports whether anything was restored.
func recoverFromJournal(ctx context.Context, game restorer, journal storage.EventRepository, log *logger.Logger) bool {
	if journal == nil {
		return false
	}
	rebuilt, err := storage.NewReconstructor(journal).Rebuild(ctx)
	if err != nil {
		log.Error("Journal recovery failed: " + err.Error())
		return false
	}
	if rebuilt.Empty() {
		log.Info("Journal is empty, nothing to recover")
		return false
	}

	levels := make(map[economy.Kind]int, len(rebuilt.Levels))
	for kind, n := range rebuilt.Levels {
		levels[economy.Kind(kind)] = n
	}
	game.Restore(ctx, levels, rebuilt.PrestigeMultiplier)
	log.Warnf("Recovered %d upgrade kinds and multiplier %.2f from the journal", len(levels), rebuilt.PrestigeMultiplier)
	return true
}

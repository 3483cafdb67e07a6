package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/metrics"
)

// DefaultTickInterval matches an animation frame.
const DefaultTickInterval = time.Second / 60

// DefaultAutosaveInterval is how often progress is written without a purchase.
const DefaultAutosaveInterval = time.Minute

// Scheduler drives the engine: a fast tick loop and a slow autosave loop.
// The two loops share nothing but the engine.
type Scheduler struct {
	engine           *Engine
	logger           *logger.Logger
	metrics          *metrics.Collector
	tickInterval     time.Duration
	autosaveInterval time.Duration
	stopChan         chan struct{}
	stopOnce         sync.Once
}

// NewScheduler creates a scheduler. Non-positive intervals pick defaults.
func NewScheduler(e *Engine, log *logger.Logger, tickInterval, autosaveInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	if autosaveInterval <= 0 {
		autosaveInterval = DefaultAutosaveInterval
	}
	return &Scheduler{
		engine:           e,
		logger:           log,
		metrics:          e.metrics,
		tickInterval:     tickInterval,
		autosaveInterval: autosaveInterval,
		stopChan:         make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called, then saves once more.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infof("Scheduler started: tick every %v, autosave every %v", s.tickInterval, s.autosaveInterval)

	// Time spent before Run (loading, wiring) is not production time.
	s.engine.Resume()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.autosaveLoop(ctx)
	}()
	wg.Wait()

	// The run context is already done; the final save gets its own deadline.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.engine.Save(saveCtx); err != nil {
		s.logger.Warn("Final save failed: " + err.Error())
	}
	s.logger.Info("Scheduler stopped.")
}

// Stop ends both loops. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			s.engine.Advance()
			s.metrics.RecordTick(time.Since(start))
		}
	}
}

func (s *Scheduler) autosaveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.autosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			// Failures surface as SAVE_FAILED; the next interval tries again.
			_ = s.engine.Save(ctx)
		}
	}
}

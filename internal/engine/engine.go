package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/metrics"
	"github.com/MRamiBalles/CookieClicker/server/internal/save"
)

// DefaultSaveKey is the store key holding the snapshot.
const DefaultSaveKey = "cookieClickerSave"

// DefaultMaxTickSeconds caps a single accrual step.
const DefaultMaxTickSeconds = 60.0

// Store is the key-value persistence the engine saves into.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current time using the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Options configures a new Engine. Zero values pick defaults.
type Options struct {
	SaveKey        string
	MaxTickSeconds float64
	Clock          Clock
	Metrics        *metrics.Collector
}

// Engine owns the game state and the rules that transform it.
// Every command is atomic with respect to the others.
type Engine struct {
	mu     sync.Mutex
	state  economy.State
	saveMu sync.Mutex // orders snapshot writes

	store    Store
	saveKey  string
	maxTick  float64
	clock    Clock
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
}

// NewEngine creates an engine holding the default starting state.
func NewEngine(store Store, eventLog *events.EventLog, log *logger.Logger, opts Options) *Engine {
	if opts.SaveKey == "" {
		opts.SaveKey = DefaultSaveKey
	}
	if opts.MaxTickSeconds <= 0 {
		opts.MaxTickSeconds = DefaultMaxTickSeconds
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Get()
	}

	return &Engine{
		state:    economy.NewState(opts.Clock.Now()),
		store:    store,
		saveKey:  opts.SaveKey,
		maxTick:  opts.MaxTickSeconds,
		clock:    opts.Clock,
		eventLog: eventLog,
		logger:   log,
		metrics:  opts.Metrics,
	}
}

// EventLog exposes the log renderers subscribe to.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}

// publish must be called without e.mu held so listeners may call back in.
func (e *Engine) publish(evs ...events.GameEvent) {
	for _, ev := range evs {
		e.eventLog.Append(ev)
	}
}

// event stamps the next sequence number. Commands build their events while
// holding e.mu so delivery follows the order state changed in.
func (e *Engine) event(eventType events.EventType, payload interface{}) events.GameEvent {
	ev := events.New(eventType, e.clock.Now(), payload)
	ev.Seq = e.eventLog.NextSeq()
	return ev
}

func (e *Engine) cookiesChangedLocked() events.GameEvent {
	return e.event(events.EventTypeCookiesChanged, events.CookiesChangedPayload{
		Cookies:          e.state.Cookies,
		CookiesPerSecond: e.state.CookiesPerSecond,
	})
}

// clampElapsed guards against clock regression and suspended tabs.
func (e *Engine) clampElapsed(elapsed float64) float64 {
	if math.IsNaN(elapsed) || elapsed < 0 {
		return 0
	}
	if elapsed > e.maxTick {
		return e.maxTick
	}
	return elapsed
}

// Tick accrues passive production for elapsedSeconds of simulated time.
func (e *Engine) Tick(elapsedSeconds float64) {
	e.mu.Lock()
	ev, changed := e.tickLocked(elapsedSeconds)
	e.mu.Unlock()

	if changed {
		e.publish(ev)
	}
}

func (e *Engine) tickLocked(elapsedSeconds float64) (events.GameEvent, bool) {
	if !e.state.Accrue(e.clampElapsed(elapsedSeconds)) {
		return events.GameEvent{}, false
	}
	return e.cookiesChangedLocked(), true
}

// Advance ticks by the wall-clock time since the previous Advance or Resume.
func (e *Engine) Advance() {
	e.mu.Lock()
	now := e.clock.Now()
	elapsed := now.Sub(e.state.LastUpdate).Seconds()
	e.state.LastUpdate = now
	ev, changed := e.tickLocked(elapsed)
	e.mu.Unlock()

	if changed {
		e.publish(ev)
	}
}

// Resume restarts elapsed-time tracking without crediting the gap.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.state.LastUpdate = e.clock.Now()
	e.mu.Unlock()
}

// Click credits one click worth of cookies and returns the amount.
func (e *Engine) Click() float64 {
	e.mu.Lock()
	amount := economy.ClickValue(e.state.PrestigeMultiplier)
	e.state.Credit(amount)
	evs := []events.GameEvent{
		e.cookiesChangedLocked(),
		e.event(events.EventTypeClick, events.ClickPayload{Amount: amount}),
	}
	e.mu.Unlock()

	e.metrics.RecordClick()
	e.publish(evs...)
	return amount
}

// Purchase buys one level of kind and saves.
// Returns an error matching economy.ErrInvalidUpgradeKind or economy.ErrInsufficientFunds.
func (e *Engine) Purchase(ctx context.Context, kind economy.Kind) error {
	e.mu.Lock()
	cost, level, err := e.state.Buy(kind)
	var evs []events.GameEvent
	var funds *economy.InsufficientFundsError
	switch {
	case err == nil:
		evs = append(evs,
			e.event(events.EventTypeUpgradePurchased, events.UpgradePurchasedPayload{Kind: string(kind), Level: level, Cost: cost}),
			e.cookiesChangedLocked(),
		)
	case errors.As(err, &funds):
		evs = append(evs, e.event(events.EventTypePurchaseRejected, events.PurchaseRejectedPayload{
			Kind:      string(kind),
			Reason:    economy.ErrInsufficientFunds.Error(),
			Required:  funds.Required,
			Available: funds.Available,
		}))
	}
	e.mu.Unlock()

	if errors.Is(err, economy.ErrInvalidUpgradeKind) {
		e.logger.Error("Purchase of unknown upgrade kind: " + string(kind))
		return err
	}

	e.metrics.RecordPurchase(err == nil)
	e.publish(evs...)
	if err != nil {
		return err
	}

	e.logger.Event("UPGRADE_PURCHASED", "purchase", fmt.Sprintf("%s -> level %d for %.0f", kind, level, cost))
	e.autosave(ctx)
	return nil
}

// Prestige resets progress for a permanent multiplier and saves.
// Returns the gain, or an error matching economy.ErrPrestigeThresholdNotMet.
func (e *Engine) Prestige(ctx context.Context) (int, error) {
	e.mu.Lock()
	cookies := e.state.Cookies
	gain, err := e.state.Prestige()
	var evs []events.GameEvent
	if err != nil {
		evs = append(evs, e.event(events.EventTypePrestigeRejected, events.PrestigeRejectedPayload{
			Reason:   economy.ErrPrestigeThresholdNotMet.Error(),
			Cookies:  cookies,
			Required: economy.PrestigeThreshold,
		}))
	} else {
		evs = append(evs,
			e.event(events.EventTypePrestiged, events.PrestigedPayload{Gain: gain, Multiplier: e.state.PrestigeMultiplier}),
			e.cookiesChangedLocked(),
		)
	}
	multiplier := e.state.PrestigeMultiplier
	e.mu.Unlock()

	e.metrics.RecordPrestige(err == nil)
	e.publish(evs...)
	if err != nil {
		return 0, err
	}

	e.logger.Event("PRESTIGED", "prestige", fmt.Sprintf("gain %d, multiplier now %.2f", gain, multiplier))
	e.autosave(ctx)
	return gain, nil
}

// SetSoundEnabled toggles sound effects and saves.
func (e *Engine) SetSoundEnabled(ctx context.Context, enabled bool) {
	e.mu.Lock()
	e.state.Settings.SoundEnabled = enabled
	ev := e.settingsChangedLocked()
	e.mu.Unlock()

	e.publish(ev)
	e.autosave(ctx)
}

// SetNumberFormat switches the display mode and saves.
func (e *Engine) SetNumberFormat(ctx context.Context, mode economy.NumberFormat) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", economy.ErrInvalidNumberFormat, mode)
	}

	e.mu.Lock()
	e.state.Settings.NumberFormat = mode
	ev := e.settingsChangedLocked()
	e.mu.Unlock()

	e.publish(ev)
	e.autosave(ctx)
	return nil
}

func (e *Engine) settingsChangedLocked() events.GameEvent {
	return e.event(events.EventTypeSettingsChanged, events.SettingsChangedPayload{
		SoundEnabled: e.state.Settings.SoundEnabled,
		NumberFormat: string(e.state.Settings.NumberFormat),
	})
}

// autosave persists after a meaningful mutation. Failures are already
// reported through SAVE_FAILED; the next save tries again.
func (e *Engine) autosave(ctx context.Context) {
	_ = e.Save(ctx)
}

// Save writes the current snapshot to the store. It is not retried on failure.
func (e *Engine) Save(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	st := e.state.Clone()
	e.mu.Unlock()

	start := time.Now()
	blob, err := save.Encode(st, e.clock.Now())
	if err == nil {
		err = e.store.Set(ctx, e.saveKey, blob)
	}
	e.metrics.RecordSave(time.Since(start), err)

	if err != nil {
		e.logger.Error("Failed to save game: " + err.Error())
		e.publish(e.event(events.EventTypeSaveFailed, events.PersistencePayload{Key: e.saveKey, Error: err.Error()}))
		return fmt.Errorf("failed to save game: %w", err)
	}

	e.publish(e.event(events.EventTypeSaved, events.PersistencePayload{Key: e.saveKey, Bytes: len(blob)}))
	return nil
}

// Load replaces the state with the stored snapshot.
//
// A missing key starts from defaults. An unreadable store or an unparseable
// snapshot also starts from defaults and returns an error matching
// economy.ErrLoadFailed, which callers treat as a notice.
func (e *Engine) Load(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	now := e.clock.Now()
	blob, found, err := e.store.Get(ctx, e.saveKey)

	var (
		st      economy.State
		loadErr error
		outcome events.EventType
	)
	payload := events.PersistencePayload{Key: e.saveKey}
	switch {
	case err != nil:
		st = economy.NewState(now)
		loadErr = &economy.LoadFailedError{Err: err}
		outcome = events.EventTypeLoadFailed
		payload.Error = err.Error()
		e.logger.Error("Failed to read save: " + err.Error())
	case !found:
		st = economy.NewState(now)
		outcome = events.EventTypeNoSaveFound
		e.logger.Info("No save found under " + e.saveKey)
	default:
		st, loadErr = save.Decode(blob, now)
		payload.Bytes = len(blob)
		if loadErr != nil {
			outcome = events.EventTypeLoadFailed
			payload.Error = loadErr.Error()
			e.logger.Warn("Save unreadable, starting from defaults: " + loadErr.Error())
		} else {
			outcome = events.EventTypeLoaded
			e.logger.Info(fmt.Sprintf("Game loaded: %.0f cookies, multiplier %.2f", st.Cookies, st.PrestigeMultiplier))
		}
	}

	e.mu.Lock()
	e.state = st
	evs := []events.GameEvent{e.event(outcome, payload), e.cookiesChangedLocked()}
	e.mu.Unlock()

	e.metrics.RecordLoad(loadErr != nil)
	e.publish(evs...)
	return loadErr
}

// Restore adopts upgrade levels and a prestige multiplier recovered outside
// the save, for instance from the event journal after an unreadable save.
// The bank and settings are kept. Unknown kinds and negative levels are
// ignored, and the multiplier never drops below the current one.
func (e *Engine) Restore(ctx context.Context, levels map[economy.Kind]int, multiplier float64) {
	e.mu.Lock()
	for _, k := range economy.Kinds {
		e.state.Levels[k] = 0
	}
	applied := make(map[string]int, len(levels))
	for k, n := range levels {
		if !k.Valid() || n <= 0 {
			continue
		}
		e.state.Levels[k] = n
		applied[string(k)] = n
	}
	if multiplier > e.state.PrestigeMultiplier {
		e.state.PrestigeMultiplier = multiplier
	}
	e.state.Recalculate()
	evs := []events.GameEvent{
		e.event(events.EventTypeRestored, events.RestoredPayload{Levels: applied, Multiplier: e.state.PrestigeMultiplier}),
		e.cookiesChangedLocked(),
	}
	cps := e.state.CookiesPerSecond
	e.mu.Unlock()

	e.publish(evs...)
	e.logger.Event("RESTORED", "restore", fmt.Sprintf("%d upgrade kinds, %.1f cookies per second", len(applied), cps))
	e.autosave(ctx)
}

// State returns a deep copy of the current state.
func (e *Engine) State() economy.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// PrestigePreview reports the gain a prestige would grant right now.
func (e *Engine) PrestigePreview() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PrestigePreview()
}

package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/MRamiBalles/CookieClicker/server/internal/events"
)

// DefaultVolume keeps effects well below clipping when several overlap.
const DefaultVolume = 0.3

// SoundBoard mixes effects into the speaker and follows the sound setting.
type SoundBoard struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	volume      float64
	enabled     bool
	initialized bool
}

// NewSoundBoard creates a board that is enabled but not yet attached to a device.
func NewSoundBoard(volume float64) *SoundBoard {
	return &SoundBoard{
		mixer:   &beep.Mixer{},
		volume:  volume,
		enabled: true,
	}
}

// Initialize opens the audio device and starts the mixer.
func (b *SoundBoard) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}
	if err := speaker.Init(SampleRate, SampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(b.mixer)
	b.initialized = true
	return nil
}

// Close silences everything still playing.
func (b *SoundBoard) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}
	speaker.Lock()
	b.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	b.initialized = false
}

// SetEnabled turns effects on or off.
func (b *SoundBoard) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Enabled reports whether effects are played.
func (b *SoundBoard) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Play queues s. It reports whether anything was queued.
func (b *SoundBoard) Play(s Sound) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return false
	}
	streamer, err := Effect(s, b.volume)
	if err != nil {
		return false
	}
	if b.initialized {
		speaker.Lock()
		defer speaker.Unlock()
	}
	b.mixer.Add(streamer)
	return true
}

// Pending reports how many effects are still queued or playing.
func (b *SoundBoard) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		speaker.Lock()
		defer speaker.Unlock()
	}
	return b.mixer.Len()
}

// HandleEvent maps engine events to effects. Subscribe it to the event log.
func (b *SoundBoard) HandleEvent(ev events.GameEvent) {
	switch ev.Type {
	case events.EventTypeClick:
		b.Play(SoundClick)
	case events.EventTypeUpgradePurchased:
		b.Play(SoundPurchase)
	case events.EventTypePurchaseRejected, events.EventTypePrestigeRejected:
		b.Play(SoundReject)
	case events.EventTypePrestiged:
		b.Play(SoundPrestige)
	case events.EventTypeSettingsChanged:
		if p, ok := ev.Payload.(events.SettingsChangedPayload); ok {
			b.SetEnabled(p.SoundEnabled)
		}
	}
}

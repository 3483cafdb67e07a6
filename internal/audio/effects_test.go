package audio

import (
	"testing"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/events"
)

// drain streams s to the end and returns the number of samples and the peak.
func drain(t *testing.T, s interface {
	Stream([][2]float64) (int, bool)
}) (int, float64) {
	t.Helper()
	buf := make([][2]float64, 512)
	total, peak := 0, 0.0
	for i := 0; i < 10000; i++ {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			for _, v := range frame {
				if v > peak {
					peak = v
				}
				if -v > peak {
					peak = -v
				}
			}
		}
		total += n
		if !ok {
			return total, peak
		}
	}
	t.Fatal("effect never ended")
	return 0, 0
}

func TestEffectsAreFiniteAndBounded(t *testing.T) {
	for _, s := range []Sound{SoundClick, SoundPurchase, SoundReject, SoundPrestige} {
		streamer, err := Effect(s, 1)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		n, peak := drain(t, streamer)

		var want int
		for _, nt := range scores[s] {
			want += SampleRate.N(nt.duration)
		}
		if n != want {
			t.Errorf("%s: expected %d samples, got %d", s, want, n)
		}
		if peak > 1 || peak == 0 {
			t.Errorf("%s: peak %f out of range", s, peak)
		}
	}
}

func TestEffectZeroVolumeIsSilent(t *testing.T) {
	streamer, err := Effect(SoundClick, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, peak := drain(t, streamer); peak != 0 {
		t.Errorf("expected silence, got peak %f", peak)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(SoundPurchase); got != 180*time.Millisecond {
		t.Errorf("expected 180ms, got %v", got)
	}
}

func TestSoundBoardFollowsSettings(t *testing.T) {
	b := NewSoundBoard(DefaultVolume)

	b.HandleEvent(events.New(events.EventTypeClick, time.Now(), events.ClickPayload{Amount: 1}))
	if b.Pending() != 1 {
		t.Fatalf("expected one queued effect, got %d", b.Pending())
	}

	b.HandleEvent(events.New(events.EventTypeSettingsChanged, time.Now(), events.SettingsChangedPayload{SoundEnabled: false, NumberFormat: "flat"}))
	if b.Enabled() {
		t.Fatal("expected board disabled by SETTINGS_CHANGED")
	}
	if b.Play(SoundPrestige) {
		t.Error("disabled board should not queue effects")
	}
	if b.Pending() != 1 {
		t.Errorf("expected queue unchanged, got %d", b.Pending())
	}

	// Without a device the test plays the part of the speaker.
	buf := make([][2]float64, SampleRate.N(100*time.Millisecond))
	for i := 0; i < 3; i++ {
		b.mixer.Stream(buf)
	}
	if b.Pending() != 0 {
		t.Errorf("expected finished effect to leave the mixer, got %d", b.Pending())
	}
}

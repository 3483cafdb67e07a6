// Package audio plays short synthesized sound effects for game events.
package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
)

// SampleRate is used for every effect and for the speaker.
const SampleRate = beep.SampleRate(44100)

// Sound identifies one effect.
type Sound int

const (
	SoundClick Sound = iota
	SoundPurchase
	SoundReject
	SoundPrestige
)

func (s Sound) String() string {
	switch s {
	case SoundClick:
		return "click"
	case SoundPurchase:
		return "purchase"
	case SoundReject:
		return "reject"
	case SoundPrestige:
		return "prestige"
	default:
		return "unknown"
	}
}

type note struct {
	freq     float64
	duration time.Duration
}

var scores = map[Sound][]note{
	SoundClick:    {{freq: 880, duration: 40 * time.Millisecond}},
	SoundPurchase: {{freq: 660, duration: 70 * time.Millisecond}, {freq: 990, duration: 110 * time.Millisecond}},
	SoundReject:   {{freq: 140, duration: 160 * time.Millisecond}},
	SoundPrestige: {
		{freq: 523.25, duration: 100 * time.Millisecond},
		{freq: 659.25, duration: 100 * time.Millisecond},
		{freq: 783.99, duration: 100 * time.Millisecond},
		{freq: 1046.5, duration: 250 * time.Millisecond},
	},
}

// Duration is the total length of s.
func Duration(s Sound) time.Duration {
	var d time.Duration
	for _, n := range scores[s] {
		d += n.duration
	}
	return d
}

// Effect builds a finite streamer for s at the given volume (0..1).
func Effect(s Sound, volume float64) (beep.Streamer, error) {
	notes := scores[s]
	parts := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		tone, err := generators.SineTone(SampleRate, n.freq)
		if err != nil {
			return nil, err
		}
		length := SampleRate.N(n.duration)
		parts = append(parts, newFade(beep.Take(length, tone), length))
	}
	return newVolume(beep.Seq(parts...), volume), nil
}

// fade ramps in over the first few milliseconds and out over the last
// quarter so notes do not click.
type fade struct {
	streamer beep.Streamer
	pos      int
	total    int
	attack   int
	release  int
}

func newFade(s beep.Streamer, total int) *fade {
	return &fade{
		streamer: s,
		total:    total,
		attack:   SampleRate.N(5 * time.Millisecond),
		release:  total / 4,
	}
}

func (f *fade) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		if f.attack > 0 && f.pos < f.attack {
			vol = float64(f.pos) / float64(f.attack)
		}
		if remaining := f.total - f.pos; f.release > 0 && remaining < f.release {
			vol = math.Min(vol, float64(remaining)/float64(f.release))
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		f.pos++
	}
	return n, ok
}

func (f *fade) Err() error { return f.streamer.Err() }

// math.Log2(0) is -Inf, so zero volume is expressed as Silent.
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(math.Min(vol, 1))}
}

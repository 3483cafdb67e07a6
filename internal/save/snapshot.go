// Package save converts game state to and from the persisted Snapshot blob.
// Decoding is a parse-with-defaults step: it always yields a fully valid state.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
)

// Snapshot is the flat persisted record.
type Snapshot struct {
	Cookies            float64        `json:"cookies" jsonschema:"minimum=0,description=Spendable cookies (floor of rawCookies)"`
	RawCookies         float64        `json:"rawCookies" jsonschema:"minimum=0,description=High precision cookie accumulator"`
	CookiesPerSecond   float64        `json:"cookiesPerSecond" jsonschema:"minimum=0,description=Informational only; recomputed on load"`
	PrestigeMultiplier float64        `json:"prestigeMultiplier" jsonschema:"minimum=1,description=Permanent production multiplier"`
	Upgrades           map[string]int `json:"upgrades" jsonschema:"description=Level per upgrade kind"`
	Settings           SettingsRecord `json:"settings"`
	SavedAt            time.Time      `json:"savedAt"`
}

// SettingsRecord is the persisted form of economy.Settings.
type SettingsRecord struct {
	SoundEnabled bool   `json:"soundEnabled"`
	NumberFormat string `json:"numberFormat" jsonschema:"enum=flat,enum=abbreviated"`
}

// FromState builds the snapshot for s.
func FromState(s economy.State, savedAt time.Time) Snapshot {
	upgrades := make(map[string]int, len(economy.Kinds))
	for _, k := range economy.Kinds {
		upgrades[string(k)] = s.Levels[k]
	}
	return Snapshot{
		Cookies:            s.Cookies,
		RawCookies:         s.RawCookies,
		CookiesPerSecond:   s.CookiesPerSecond,
		PrestigeMultiplier: s.PrestigeMultiplier,
		Upgrades:           upgrades,
		Settings: SettingsRecord{
			SoundEnabled: s.Settings.SoundEnabled,
			NumberFormat: string(s.Settings.NumberFormat),
		},
		SavedAt: savedAt.UTC(),
	}
}

// Encode serializes s as a Snapshot blob.
func Encode(s economy.State, savedAt time.Time) ([]byte, error) {
	blob, err := json.Marshal(FromState(s, savedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return blob, nil
}

// Decode parses blob into a state. It never returns a partially initialized
// state: an unparseable blob yields the default state and an error matching
// economy.ErrLoadFailed. LastUpdate is always now.
func Decode(blob []byte, now time.Time) (economy.State, error) {
	s := economy.NewState(now)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil {
		return s, &economy.LoadFailedError{Err: err}
	}
	if fields == nil {
		return s, &economy.LoadFailedError{Err: errors.New("snapshot is not an object")}
	}

	cookies, cookiesOK := nonNegative(fields["cookies"])
	raw, rawOK := nonNegative(fields["rawCookies"])
	switch {
	case rawOK && (!cookiesOK || math.Floor(raw) == math.Floor(cookies)):
		s.SetBank(raw)
	case cookiesOK:
		// Older saves kept fractional cookies in a single field.
		s.SetBank(cookies)
	}

	if m, ok := number(fields["prestigeMultiplier"]); ok && m >= economy.DefaultPrestigeMult {
		s.PrestigeMultiplier = m
	}

	var upgrades map[string]json.RawMessage
	if err := json.Unmarshal(fields["upgrades"], &upgrades); err == nil {
		for name, v := range upgrades {
			k := economy.Kind(name)
			if !k.Valid() {
				continue
			}
			if level, ok := decodeLevel(v); ok {
				s.Levels[k] = level
			}
		}
	}

	var settings map[string]json.RawMessage
	if err := json.Unmarshal(fields["settings"], &settings); err == nil {
		var sound *bool
		if err := json.Unmarshal(settings["soundEnabled"], &sound); err == nil && sound != nil {
			s.Settings.SoundEnabled = *sound
		}
		var mode string
		if err := json.Unmarshal(settings["numberFormat"], &mode); err == nil {
			if f, err := economy.ParseNumberFormat(mode); err == nil {
				s.Settings.NumberFormat = f
			}
		}
	}

	// The cached rate is never trusted.
	s.Recalculate()
	return s, nil
}

// decodeLevel accepts a bare count or a legacy {"level": n} object.
func decodeLevel(v json.RawMessage) (int, bool) {
	if n, ok := nonNegative(v); ok {
		return integral(n)
	}
	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(v, &legacy); err != nil {
		return 0, false
	}
	if n, ok := nonNegative(legacy["level"]); ok {
		return integral(n)
	}
	return 0, false
}

func integral(n float64) (int, bool) {
	if n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func number(v json.RawMessage) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func nonNegative(v json.RawMessage) (float64, bool) {
	n, ok := number(v)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

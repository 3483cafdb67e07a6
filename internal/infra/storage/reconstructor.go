// Package storage - reconstructor.go
// Rebuilds shop progress from the event journal: state = f(events).
package storage

import (
	"context"
	"fmt"
	"time"
)

// Journal event types the reconstructor folds. They match the engine's
// event names.
const (
	journalUpgradePurchased = "UPGRADE_PURCHASED"
	journalPrestiged        = "PRESTIGED"
	journalRestored         = "RESTORED"
)

// Reconstructor rebuilds upgrade levels and the prestige multiplier from
// the event journal. This is used for:
// 1. Recovering progress when the save snapshot is unreadable
// 2. Auditing the live state against the journal
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RebuiltState is what the journal says the shop looks like. The bank is
// not journaled, so it is not part of it.
type RebuiltState struct {
	Levels             map[string]int `json:"levels"`
	PrestigeMultiplier float64        `json:"prestige_multiplier"`
	Purchases          int            `json:"purchases"`
	Prestiges          int            `json:"prestiges"`
	LastEventAt        time.Time      `json:"last_event_at,omitempty"`
}

// Empty reports whether the journal held nothing to rebuild from.
func (s *RebuiltState) Empty() bool {
	return s.Purchases == 0 && s.Prestiges == 0 && len(s.Levels) == 0
}

// Rebuild replays the journal, oldest first.
func (r *Reconstructor) Rebuild(ctx context.Context) (*RebuiltState, error) {
	events, err := r.eventRepo.GetAllByTypes(ctx, journalUpgradePurchased, journalPrestiged, journalRestored)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	state := &RebuiltState{
		Levels:             make(map[string]int),
		PrestigeMultiplier: 1,
	}
	for _, e := range events {
		r.applyEventToState(state, e)
	}
	return state, nil
}

// applyEventToState modifies state based on event type.
func (r *Reconstructor) applyEventToState(state *RebuiltState, event GameEvent) {
	switch event.EventType {
	case journalUpgradePurchased:
		kind, _ := event.Payload["kind"].(string)
		level, ok := event.Payload["level"].(float64)
		if kind == "" || !ok || level < 1 {
			return
		}
		state.Levels[kind] = int(level)
		state.Purchases++
	case journalPrestiged:
		state.Levels = make(map[string]int)
		if m, ok := event.Payload["multiplier"].(float64); ok && m > state.PrestigeMultiplier {
			state.PrestigeMultiplier = m
		}
		state.Prestiges++
	case journalRestored:
		state.Levels = make(map[string]int)
		if levels, ok := event.Payload["levels"].(map[string]interface{}); ok {
			for kind, v := range levels {
				if n, ok := v.(float64); ok && n >= 1 {
					state.Levels[kind] = int(n)
				}
			}
		}
		if m, ok := event.Payload["multiplier"].(float64); ok && m > state.PrestigeMultiplier {
			state.PrestigeMultiplier = m
		}
	default:
		return
	}
	state.LastEventAt = event.Timestamp
}

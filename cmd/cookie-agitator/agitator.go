package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/network"
)

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64

	mu        sync.Mutex
	latencies []time.Duration
	byType    map[string]int64
}

// NewStats returns empty counters.
func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 10000),
		byType:    make(map[string]int64),
	}
}

// RecordSend counts one written command and how long the write took.
func (s *Stats) RecordSend(latency time.Duration) {
	atomic.AddInt64(&s.MessagesSent, 1)
	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.mu.Unlock()
}

// Observe counts the messages in one frame. The server batches queued
// messages into a frame separated by newlines.
func (s *Stats) Observe(frame []byte) {
	for _, raw := range bytes.Split(frame, []byte{'\n'}) {
		if len(raw) == 0 {
			continue
		}
		atomic.AddInt64(&s.MessagesReceived, 1)

		var head struct {
			Type string `json:"type"`
		}
		typ := "UNKNOWN"
		if err := json.Unmarshal(raw, &head); err == nil && head.Type != "" {
			typ = head.Type
		}
		s.mu.Lock()
		s.byType[typ]++
		s.mu.Unlock()
	}
}

// Report is the JSON summary written at the end of a run.
type Report struct {
	MessagesSent     int64            `json:"messages_sent"`
	MessagesReceived int64            `json:"messages_received"`
	Errors           int64            `json:"errors"`
	ErrorRate        float64          `json:"error_rate"`
	Throughput       float64          `json:"throughput_per_sec"`
	ByType           map[string]int64 `json:"received_by_type"`
	LatencyMin       time.Duration    `json:"latency_min_ns"`
	LatencyAvg       time.Duration    `json:"latency_avg_ns"`
	LatencyMax       time.Duration    `json:"latency_max_ns"`
	Verdict          string           `json:"verdict"`
	Config           map[string]any   `json:"config"`
}

// Report summarizes the run.
func (s *Stats) Report(config Config) Report {
	sent := atomic.LoadInt64(&s.MessagesSent)
	errs := atomic.LoadInt64(&s.Errors)
	r := Report{
		MessagesSent:     sent,
		MessagesReceived: atomic.LoadInt64(&s.MessagesReceived),
		Errors:           errs,
		ErrorRate:        float64(errs) / float64(sent+1),
		ByType:           make(map[string]int64),
		Config: map[string]any{
			"clients":     config.NumClients,
			"interval":    config.ActionInterval.String(),
			"duration":    config.TestDuration.String(),
			"click_ratio": config.ClickRatio,
		},
	}
	if secs := config.TestDuration.Seconds(); secs > 0 {
		r.Throughput = float64(sent) / secs
	}

	s.mu.Lock()
	for typ, n := range s.byType {
		r.ByType[typ] = n
	}
	if len(s.latencies) > 0 {
		var total time.Duration
		r.LatencyMin, r.LatencyMax = s.latencies[0], s.latencies[0]
		for _, l := range s.latencies {
			total += l
			if l < r.LatencyMin {
				r.LatencyMin = l
			}
			if l > r.LatencyMax {
				r.LatencyMax = l
			}
		}
		r.LatencyAvg = total / time.Duration(len(s.latencies))
	}
	s.mu.Unlock()

	expected := float64(config.NumClients) * config.TestDuration.Seconds() * 5
	switch {
	case errs == 0 && float64(sent) > expected:
		r.Verdict = "TEST PASSED: System handled the load"
	case r.ErrorRate < 0.05:
		r.Verdict = "TEST WARNING: Some errors detected"
	default:
		r.Verdict = "TEST FAILED: High error rate"
	}
	return r
}

// actionSource produces the command stream for one simulated player.
type actionSource struct {
	rng        *rand.Rand
	clickRatio float64
}

func newActionSource(seed int64, clickRatio float64) *actionSource {
	return &actionSource{rng: rand.New(rand.NewSource(seed)), clickRatio: clickRatio}
}

// Next returns a CLICK most of the time, otherwise a purchase of a random
// upgrade or, rarely, a SYNC.
func (a *actionSource) Next() network.PlayerAction {
	roll := a.rng.Float64()
	switch {
	case roll < a.clickRatio:
		return network.PlayerAction{Type: network.CommandClick}
	case roll < a.clickRatio+(1-a.clickRatio)*0.9:
		kind := economy.Kinds[a.rng.Intn(len(economy.Kinds))]
		payload, _ := json.Marshal(map[string]string{"kind": string(kind)})
		return network.PlayerAction{Type: network.CommandPurchase, Payload: payload}
	default:
		return network.PlayerAction{Type: network.CommandSync}
	}
}

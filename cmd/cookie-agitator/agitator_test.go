package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/network"
)

func TestObserveSplitsBatchedFrames(t *testing.T) {
	s := NewStats()
	s.Observe([]byte(`{"type":"VIEW"}` + "\n" + `{"type":"CLICK"}` + "\n" + `{"type":"CLICK"}`))
	s.Observe([]byte(`garbage`))

	r := s.Report(Config{NumClients: 1, TestDuration: time.Second})
	if r.MessagesReceived != 4 {
		t.Fatalf("expected 4 messages, got %d", r.MessagesReceived)
	}
	if r.ByType["CLICK"] != 2 || r.ByType["VIEW"] != 1 || r.ByType["UNKNOWN"] != 1 {
		t.Errorf("unexpected breakdown %v", r.ByType)
	}
}

func TestReportLatencyAndVerdict(t *testing.T) {
	s := NewStats()
	for _, l := range []time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond} {
		s.RecordSend(l)
	}
	r := s.Report(Config{NumClients: 1, TestDuration: 0})
	if r.LatencyMin != time.Millisecond || r.LatencyMax != 3*time.Millisecond || r.LatencyAvg != 2*time.Millisecond {
		t.Errorf("unexpected latency %v/%v/%v", r.LatencyMin, r.LatencyAvg, r.LatencyMax)
	}
	if r.Throughput != 0 {
		t.Errorf("zero duration should report zero throughput, got %v", r.Throughput)
	}
	if r.Verdict != "TEST PASSED: System handled the load" {
		t.Errorf("unexpected verdict %q", r.Verdict)
	}

	s.Errors = 3
	if r := s.Report(Config{NumClients: 1, TestDuration: time.Second}); r.Verdict != "TEST FAILED: High error rate" {
		t.Errorf("unexpected verdict %q", r.Verdict)
	}
}

func TestActionSourceProducesValidCommands(t *testing.T) {
	src := newActionSource(7, 0.5)
	seen := map[string]int{}
	for i := 0; i < 500; i++ {
		a := src.Next()
		seen[a.Type]++
		if a.Type != network.CommandPurchase {
			continue
		}
		var p struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			t.Fatalf("bad purchase payload %s: %v", a.Payload, err)
		}
		if _, err := economy.ParseKind(p.Kind); err != nil {
			t.Errorf("generated unknown kind %q", p.Kind)
		}
	}
	if seen[network.CommandClick] == 0 || seen[network.CommandPurchase] == 0 {
		t.Errorf("expected clicks and purchases, got %v", seen)
	}
}

func TestActionSourceAllClicks(t *testing.T) {
	src := newActionSource(1, 1)
	for i := 0; i < 50; i++ {
		if a := src.Next(); a.Type != network.CommandClick {
			t.Fatalf("expected only clicks, got %s", a.Type)
		}
	}
}

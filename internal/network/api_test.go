package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/engine"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/metrics"
)

type failingJournal struct{}

func (failingJournal) Append(context.Context, storage.GameEvent) error { return errors.New("offline") }
func (failingJournal) GetRecent(context.Context, int) ([]storage.GameEvent, error) {
	return nil, errors.New("offline")
}
func (failingJournal) GetByEventType(context.Context, string, int) ([]storage.GameEvent, error) {
	return nil, errors.New("offline")
}
func (failingJournal) GetAllByTypes(context.Context, ...string) ([]storage.GameEvent, error) {
	return nil, errors.New("offline")
}

func newAPI(t *testing.T, journal storage.EventRepository) (*APIHandler, *engine.Engine, *http.ServeMux) {
	t.Helper()
	eventLog := events.NewEventLog(64, nil)
	eng := engine.NewEngine(storage.NewMemoryKVStore(), eventLog, logger.Discard(), engine.Options{Metrics: metrics.New()})
	api := NewAPIHandler(eng, eventLog, journal, logger.Discard())
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return api, eng, mux
}

func get(t *testing.T, mux *http.ServeMux, target string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if v != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return rec
}

func TestHandleState(t *testing.T) {
	_, eng, mux := newAPI(t, nil)
	eng.Click()

	var view engine.View
	rec := get(t, mux, "/api/state", &view)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if view.Cookies != 1 || len(view.Upgrades) != len(economy.Kinds) {
		t.Errorf("unexpected view %+v", view)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/state", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestHandleSchema(t *testing.T) {
	_, _, mux := newAPI(t, nil)
	rec := get(t, mux, "/api/schema", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "prestigeMultiplier") {
		t.Errorf("schema missing snapshot fields: %s", rec.Body.String())
	}
}

func TestHandleHistoryFromMemory(t *testing.T) {
	_, eng, mux := newAPI(t, nil)
	for i := 0; i < 3; i++ {
		eng.Click()
	}
	_ = eng.Purchase(context.Background(), economy.KindCursor)

	var resp HistoryResponse
	get(t, mux, "/api/history?type=CLICK&limit=2", &resp)
	if resp.Source != "memory" || resp.TotalEvents != 2 {
		t.Fatalf("unexpected history %+v", resp)
	}
	for _, e := range resp.Events {
		if e.Type != "CLICK" || e.Impact != "POSITIVE" {
			t.Errorf("unexpected event %+v", e)
		}
	}

	get(t, mux, "/api/history?type=PURCHASE_REJECTED", &resp)
	if len(resp.Events) != 1 || resp.Events[0].Summary != "Could not afford cursor: 3 of 10 cookies." {
		t.Errorf("unexpected rejection history %+v", resp.Events)
	}

	if rec := get(t, mux, "/api/history?limit=zero", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHandleHistoryFromJournal(t *testing.T) {
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	defer db.Close()
	repo := storage.NewSQLiteEventRepository(db)
	err = repo.Append(context.Background(), storage.GameEvent{
		ID:        "e1",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType: "UPGRADE_PURCHASED",
		Payload:   map[string]interface{}{"kind": "farm", "level": 2, "cost": 1265},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	_, _, mux := newAPI(t, repo)
	var resp HistoryResponse
	get(t, mux, "/api/history", &resp)
	if resp.Source != "journal" || len(resp.Events) != 1 {
		t.Fatalf("unexpected history %+v", resp)
	}
	if got := resp.Events[0].Summary; got != "Bought Cookie Farm (level 2) for 1,265 cookies." {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestHandleHistoryFallsBackToMemory(t *testing.T) {
	_, eng, mux := newAPI(t, failingJournal{})
	eng.Click()

	var resp HistoryResponse
	get(t, mux, "/api/history?type=CLICK", &resp)
	if resp.Source != "memory" || len(resp.Events) != 1 {
		t.Errorf("expected memory fallback, got %+v", resp)
	}
}

func TestHandleStats(t *testing.T) {
	_, eng, mux := newAPI(t, nil)
	eng.Click()
	eng.Click()

	var resp struct {
		Stats map[string]int `json:"stats"`
	}
	get(t, mux, "/api/history/stats", &resp)
	if resp.Stats["CLICK"] != 2 || resp.Stats["total_events"] != 4 {
		t.Errorf("unexpected stats %v", resp.Stats)
	}
}

func TestPayloadMap(t *testing.T) {
	m := PayloadMap(events.UpgradePurchasedPayload{Kind: "cursor", Level: 1, Cost: 10})
	if m["kind"] != "cursor" || m["level"].(float64) != 1 {
		t.Errorf("unexpected map %v", m)
	}
	if PayloadMap(nil) != nil {
		t.Errorf("nil payload should map to nil")
	}
}

func TestHandleAudit(t *testing.T) {
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	defer db.Close()
	repo := storage.NewSQLiteEventRepository(db)
	err = repo.Append(context.Background(), storage.GameEvent{
		ID:        "e1",
		Timestamp: time.Now(),
		EventType: "UPGRADE_PURCHASED",
		Payload:   map[string]interface{}{"kind": "cursor", "level": 1, "cost": 10},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	_, _, mux := newAPI(t, repo)
	var resp AuditResponse
	get(t, mux, "/api/audit", &resp)
	if resp.Consistent || len(resp.Mismatches) != 1 || !strings.HasPrefix(resp.Mismatches[0], "cursor:") {
		t.Fatalf("expected a cursor mismatch, got %+v", resp)
	}
	if resp.Journal.Levels["cursor"] != 1 || resp.LiveLevels["cursor"] != 0 {
		t.Errorf("unexpected levels journal=%v live=%v", resp.Journal.Levels, resp.LiveLevels)
	}
}

func TestHandleAuditWithoutJournal(t *testing.T) {
	_, _, mux := newAPI(t, nil)
	if rec := get(t, mux, "/api/audit", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a journal, got %d", rec.Code)
	}

	_, _, mux = newAPI(t, failingJournal{})
	if rec := get(t, mux, "/api/audit", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for an unreadable journal, got %d", rec.Code)
	}
}

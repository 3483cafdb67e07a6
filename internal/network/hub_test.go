package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/CookieClicker/server/internal/engine"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/metrics"
)

type wsFixture struct {
	engine  *engine.Engine
	hub     *Hub
	metrics *metrics.Collector
	conn    *websocket.Conn
	pending [][]byte
	stop    context.CancelFunc
}

func newWSFixture(t *testing.T, opts HubOptions) *wsFixture {
	t.Helper()
	m := metrics.New()
	eventLog := events.NewEventLog(128, nil)
	eng := engine.NewEngine(storage.NewMemoryKVStore(), eventLog, logger.Discard(), engine.Options{Metrics: m})

	hub := NewHub(eng, logger.Discard(), m, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	detach := hub.Attach(eventLog)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		detach()
		cancel()
		srv.Close()
	})
	return &wsFixture{engine: eng, hub: hub, metrics: m, conn: conn, stop: cancel}
}

func (f *wsFixture) send(t *testing.T, msg string) {
	t.Helper()
	if err := f.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// next returns the next JSON message, splitting frames the write pump batched.
func (f *wsFixture) next(t *testing.T) map[string]interface{} {
	t.Helper()
	for len(f.pending) == 0 {
		f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := f.conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		f.pending = bytes.Split(frame, []byte{'\n'})
	}
	raw := f.pending[0]
	f.pending = f.pending[1:]

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

// until reads messages until one of type typ arrives.
func (f *wsFixture) until(t *testing.T, typ string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 20; i++ {
		if m := f.next(t); m["type"] == typ {
			return m
		}
	}
	t.Fatalf("no %s message received", typ)
	return nil
}

func TestInitialViewThenClick(t *testing.T) {
	f := newWSFixture(t, HubOptions{})

	first := f.next(t)
	if first["type"] != MessageTypeView {
		t.Fatalf("expected VIEW first, got %v", first["type"])
	}
	view := first["payload"].(map[string]interface{})
	if view["cookies"].(float64) != 0 {
		t.Errorf("expected fresh view, got %v", view)
	}

	f.send(t, `{"type":"CLICK"}`)
	click := f.until(t, string(events.EventTypeClick))
	if amount := click["payload"].(map[string]interface{})["amount"].(float64); amount != 1 {
		t.Errorf("expected click amount 1, got %v", amount)
	}
	if got := f.engine.State().Cookies; got != 1 {
		t.Errorf("expected engine to hold 1 cookie, got %v", got)
	}
}

func TestPurchaseRejectedIsBroadcast(t *testing.T) {
	f := newWSFixture(t, HubOptions{})
	f.until(t, MessageTypeView)

	f.send(t, `{"type":"PURCHASE","payload":{"kind":"cursor"}}`)
	rejected := f.until(t, string(events.EventTypePurchaseRejected))
	p := rejected["payload"].(map[string]interface{})
	if p["kind"] != "cursor" || p["required"].(float64) != 10 {
		t.Errorf("unexpected rejection payload %v", p)
	}
}

func TestInvalidCommandsReplyWithError(t *testing.T) {
	f := newWSFixture(t, HubOptions{})
	f.until(t, MessageTypeView)

	cases := []struct {
		msg     string
		command string
	}{
		{`{"type":"PURCHASE","payload":{"kind":"portal"}}`, CommandPurchase},
		{`{"type":"PURCHASE"}`, CommandPurchase},
		{`{"type":"SET_NUMBER_FORMAT","payload":{"mode":"roman"}}`, CommandSetNumberFormat},
		{`{"type":"SET_SOUND","payload":{}}`, CommandSetSound},
		{`{"type":"DANCE"}`, "DANCE"},
		{`not json`, ""},
	}
	for _, c := range cases {
		f.send(t, c.msg)
		reply := f.until(t, MessageTypeError)
		if got := reply["payload"].(map[string]interface{})["command"]; got != c.command {
			t.Errorf("%s: expected error for %q, got %v", c.msg, c.command, got)
		}
	}
}

func TestSyncAndSettings(t *testing.T) {
	f := newWSFixture(t, HubOptions{})
	f.until(t, MessageTypeView)

	f.send(t, `{"type":"SET_NUMBER_FORMAT","payload":{"mode":"abbreviated"}}`)
	f.until(t, string(events.EventTypeSettingsChanged))
	f.send(t, `{"type":"SET_SOUND","payload":{"enabled":false}}`)
	f.until(t, string(events.EventTypeSettingsChanged))

	f.send(t, `{"type":"SYNC"}`)
	view := f.until(t, MessageTypeView)["payload"].(map[string]interface{})
	settings := view["settings"].(map[string]interface{})
	if settings["numberFormat"] != "abbreviated" || settings["soundEnabled"] != false {
		t.Errorf("unexpected settings in view %v", settings)
	}
}

func TestRateLimit(t *testing.T) {
	f := newWSFixture(t, HubOptions{MaxMessagesPerSecond: 0.001, MessageBurst: 1})
	f.until(t, MessageTypeView)

	f.send(t, `{"type":"CLICK"}`)
	f.until(t, string(events.EventTypeClick))
	f.send(t, `{"type":"CLICK"}`)
	reply := f.until(t, MessageTypeError)
	if got := reply["payload"].(map[string]interface{})["error"]; got != errRateLimited.Error() {
		t.Errorf("expected rate limit error, got %v", got)
	}
	if atomic.LoadInt64(&f.metrics.WSRateLimited) != 1 {
		t.Errorf("expected one rate-limited message recorded")
	}
	if got := f.engine.State().Cookies; got != 1 {
		t.Errorf("limited click should not count, got %v cookies", got)
	}
}

func TestBroadcastNeverBlocks(t *testing.T) {
	m := metrics.New()
	hub := NewHub(nil, logger.Discard(), m, HubOptions{BroadcastBuffer: 1})

	// Run is not started, so the queue fills after one event.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			hub.BroadcastEvent(events.New(events.EventTypeSaved, time.Now(), nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastEvent blocked on a full queue")
	}
	if got := atomic.LoadInt64(&m.WSErrors); got != 4 {
		t.Errorf("expected 4 dropped events, got %d", got)
	}
}

func TestShutdownReleasesConnectionGauge(t *testing.T) {
	f := newWSFixture(t, HubOptions{})
	f.until(t, MessageTypeView)
	if got := atomic.LoadInt64(&f.metrics.WSConnectionsActive); got != 1 {
		t.Fatalf("expected 1 active connection, got %d", got)
	}

	f.stop()
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := f.hub.ClientCount(); n != 0 {
		t.Fatalf("expected no clients after shutdown, got %d", n)
	}
	if got := atomic.LoadInt64(&f.metrics.WSConnectionsActive); got != 0 {
		t.Errorf("expected gauge back to 0 after shutdown, got %d", got)
	}
}

// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and gameplay counters.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Command metrics
	Clicks            int64
	Purchases         int64
	PurchasesRejected int64
	Prestiges         int64
	PrestigesRejected int64

	// Persistence metrics
	Saves        int64
	SaveErrors   int64
	SaveLatSum   int64
	Loads        int64
	LoadFailures int64

	// Journal metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64
	WSRateLimited       int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = New()

// New returns an empty collector. Tests use their own instance.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordClick counts a player click.
func (c *Collector) RecordClick() {
	atomic.AddInt64(&c.Clicks, 1)
}

// RecordPurchase counts a purchase attempt.
func (c *Collector) RecordPurchase(ok bool) {
	if ok {
		atomic.AddInt64(&c.Purchases, 1)
	} else {
		atomic.AddInt64(&c.PurchasesRejected, 1)
	}
}

// RecordPrestige counts a prestige attempt.
func (c *Collector) RecordPrestige(ok bool) {
	if ok {
		atomic.AddInt64(&c.Prestiges, 1)
	} else {
		atomic.AddInt64(&c.PrestigesRejected, 1)
	}
}

// RecordSave records a snapshot write.
func (c *Collector) RecordSave(latency time.Duration, err error) {
	atomic.AddInt64(&c.Saves, 1)
	atomic.AddInt64(&c.SaveLatSum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.SaveErrors, 1)
	}
}

// RecordLoad records a snapshot read.
func (c *Collector) RecordLoad(failed bool) {
	atomic.AddInt64(&c.Loads, 1)
	if failed {
		atomic.AddInt64(&c.LoadFailures, 1)
	}
}

// RecordEventWrite records an event write to the journal.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordWSRateLimited records a command dropped by the rate limiter.
func (c *Collector) RecordWSRateLimited() {
	atomic.AddInt64(&c.WSRateLimited, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)
	saves := atomic.LoadInt64(&c.Saves)

	// Calculate averages
	var tickAvg, eventAvg, saveAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}
	if saves > 0 {
		saveAvg = float64(atomic.LoadInt64(&c.SaveLatSum)) / float64(saves) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"commands": map[string]interface{}{
			"clicks":             atomic.LoadInt64(&c.Clicks),
			"purchases":          atomic.LoadInt64(&c.Purchases),
			"purchases_rejected": atomic.LoadInt64(&c.PurchasesRejected),
			"prestiges":          atomic.LoadInt64(&c.Prestiges),
			"prestiges_rejected": atomic.LoadInt64(&c.PrestigesRejected),
		},

		"persistence": map[string]interface{}{
			"saves":            saves,
			"save_errors":      atomic.LoadInt64(&c.SaveErrors),
			"avg_save_lat_ms":  saveAvg,
			"loads":            atomic.LoadInt64(&c.Loads),
			"load_failures":    atomic.LoadInt64(&c.LoadFailures),
			"events_written":   eventsWritten,
			"avg_event_lat_ms": eventAvg,
			"max_event_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"event_errors":     atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
			"rate_limited":       atomic.LoadInt64(&c.WSRateLimited),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("cookie_tick_count", "Total tick cycles", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP cookie_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE cookie_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "cookie_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		counter("cookie_clicks_total", "Total cookie clicks", atomic.LoadInt64(&c.Clicks))

		fmt.Fprintf(w, "# HELP cookie_purchases_total Upgrade purchase attempts\n")
		fmt.Fprintf(w, "# TYPE cookie_purchases_total counter\n")
		fmt.Fprintf(w, "cookie_purchases_total{result=\"ok\"} %d\n", atomic.LoadInt64(&c.Purchases))
		fmt.Fprintf(w, "cookie_purchases_total{result=\"rejected\"} %d\n\n", atomic.LoadInt64(&c.PurchasesRejected))

		fmt.Fprintf(w, "# HELP cookie_prestiges_total Prestige attempts\n")
		fmt.Fprintf(w, "# TYPE cookie_prestiges_total counter\n")
		fmt.Fprintf(w, "cookie_prestiges_total{result=\"ok\"} %d\n", atomic.LoadInt64(&c.Prestiges))
		fmt.Fprintf(w, "cookie_prestiges_total{result=\"rejected\"} %d\n\n", atomic.LoadInt64(&c.PrestigesRejected))

		counter("cookie_saves_total", "Total snapshot writes", atomic.LoadInt64(&c.Saves))
		counter("cookie_save_errors_total", "Failed snapshot writes", atomic.LoadInt64(&c.SaveErrors))
		counter("cookie_load_failures_total", "Snapshots that could not be used", atomic.LoadInt64(&c.LoadFailures))
		counter("cookie_events_written", "Total events written to the journal", atomic.LoadInt64(&c.EventsWritten))
		counter("cookie_event_write_errors", "Total journal write errors", atomic.LoadInt64(&c.EventWriteErrors))

		fmt.Fprintf(w, "# HELP cookie_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE cookie_ws_connections gauge\n")
		fmt.Fprintf(w, "cookie_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP cookie_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE cookie_ws_messages_total counter\n")
		fmt.Fprintf(w, "cookie_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "cookie_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		counter("cookie_ws_rate_limited_total", "Commands dropped by the rate limiter", atomic.LoadInt64(&c.WSRateLimited))
	}
}

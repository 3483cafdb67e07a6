package network

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/format"
	"github.com/MRamiBalles/CookieClicker/server/internal/infra/storage"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/save"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// APIHandler serves the read-only HTTP API.
type APIHandler struct {
	game     Commander
	eventLog *events.EventLog
	journal  storage.EventRepository // optional
	logger   *logger.Logger
}

// NewAPIHandler creates the HTTP API. journal may be nil, in which case
// history comes from the in-memory event log.
func NewAPIHandler(game Commander, el *events.EventLog, journal storage.EventRepository, log *logger.Logger) *APIHandler {
	return &APIHandler{
		game:     game,
		eventLog: el,
		journal:  journal,
		logger:   log,
	}
}

// HistoryEvent is an event prepared for display.
type HistoryEvent struct {
	ID        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Type      string                 `json:"type"`
	Summary   string                 `json:"summary"`
	Impact    string                 `json:"impact"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HistoryResponse is the API response for the event history.
type HistoryResponse struct {
	Source      string         `json:"source"` // "journal" or "memory"
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []HistoryEvent `json:"events"`
}

// RegisterRoutes sets up the API routes.
func (a *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", a.HandleState)
	mux.HandleFunc("/api/schema", a.HandleSchema)
	mux.HandleFunc("/api/history", a.HandleHistory)
	mux.HandleFunc("/api/history/stats", a.HandleStats)
	mux.HandleFunc("/api/audit", a.HandleAudit)
}

// HandleState returns the renderer view.
// GET /api/state
func (a *APIHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.writeJSON(w, a.game.View())
}

// HandleSchema returns the JSON Schema of the save snapshot.
// GET /api/schema
func (a *APIHandler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	schema, err := save.Schema()
	if err != nil {
		a.logger.Error("Failed to build snapshot schema: " + err.Error())
		a.jsonError(w, "Schema unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.Write(schema)
}

// HandleHistory returns recent events, newest last.
// GET /api/history?type=UPGRADE_PURCHASED&limit=20
func (a *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventType := r.URL.Query().Get("type")
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	resp := HistoryResponse{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      []HistoryEvent{},
	}
	if eventType != "" {
		resp.FilteredBy = "type " + eventType
	}

	if stored, err := a.fromJournal(r, eventType, limit); err != nil {
		a.logger.Warn("Journal unavailable, serving in-memory history: " + err.Error())
	} else if stored != nil {
		resp.Source = "journal"
		resp.Events = stored
	}
	if resp.Source == "" {
		resp.Source = "memory"
		resp.Events = a.fromMemory(eventType, limit)
	}
	resp.TotalEvents = len(resp.Events)

	a.writeJSON(w, resp)
}

func (a *APIHandler) fromJournal(r *http.Request, eventType string, limit int) ([]HistoryEvent, error) {
	if a.journal == nil {
		return nil, nil
	}
	var (
		stored []storage.GameEvent
		err    error
	)
	if eventType != "" {
		stored, err = a.journal.GetByEventType(r.Context(), eventType, limit)
	} else {
		stored, err = a.journal.GetRecent(r.Context(), limit)
	}
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEvent, 0, len(stored))
	for _, e := range stored {
		out = append(out, convertToHistoryEvent(e.ID, e.Timestamp, e.EventType, e.Payload))
	}
	return out, nil
}

func (a *APIHandler) fromMemory(eventType string, limit int) []HistoryEvent {
	var retained []events.GameEvent
	if eventType != "" {
		retained = a.eventLog.GetByType(events.EventType(eventType))
	} else {
		retained = a.eventLog.Replay()
	}
	if len(retained) > limit {
		retained = retained[len(retained)-limit:]
	}
	out := make([]HistoryEvent, 0, len(retained))
	for _, e := range retained {
		out = append(out, convertToHistoryEvent(e.ID, e.Timestamp, string(e.Type), PayloadMap(e.Payload)))
	}
	return out
}

// HandleStats counts retained events per type.
// GET /api/history/stats
func (a *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	allEvents := a.eventLog.Replay()
	stats := map[string]int{"total_events": len(allEvents)}
	for _, e := range allEvents {
		stats[string(e.Type)]++
	}

	a.writeJSON(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// AuditResponse compares the live shop with a replay of the journal.
type AuditResponse struct {
	Consistent     bool                  `json:"consistent"`
	Mismatches     []string              `json:"mismatches"`
	Journal        *storage.RebuiltState `json:"journal"`
	LiveLevels     map[string]int        `json:"live_levels"`
	LiveMultiplier float64               `json:"live_multiplier"`
	GeneratedAt    string                `json:"generated_at"`
}

// HandleAudit rebuilds levels and the multiplier from the journal and
// reports where the engine disagrees. Journal writes trail the engine
// slightly, so a mismatch right after a purchase is expected.
// GET /api/audit
func (a *APIHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.journal == nil {
		a.jsonError(w, "Journal disabled", http.StatusNotFound)
		return
	}

	rebuilt, err := storage.NewReconstructor(a.journal).Rebuild(r.Context())
	if err != nil {
		a.logger.Warn("Audit failed: " + err.Error())
		a.jsonError(w, "Journal unavailable", http.StatusServiceUnavailable)
		return
	}

	view := a.game.View()
	resp := AuditResponse{
		Mismatches:     []string{},
		Journal:        rebuilt,
		LiveLevels:     make(map[string]int, len(view.Upgrades)),
		LiveMultiplier: view.PrestigeMultiplier,
		GeneratedAt:    time.Now().Format(time.RFC3339),
	}
	for _, u := range view.Upgrades {
		kind := string(u.Kind)
		resp.LiveLevels[kind] = u.Level
		if journaled := rebuilt.Levels[kind]; journaled != u.Level {
			resp.Mismatches = append(resp.Mismatches, fmt.Sprintf("%s: live level %d, journal %d", kind, u.Level, journaled))
		}
	}
	if math.Abs(view.PrestigeMultiplier-rebuilt.PrestigeMultiplier) > 1e-9 {
		resp.Mismatches = append(resp.Mismatches, fmt.Sprintf("multiplier: live %.2f, journal %.2f", view.PrestigeMultiplier, rebuilt.PrestigeMultiplier))
	}
	resp.Consistent = len(resp.Mismatches) == 0

	a.writeJSON(w, resp)
}

// PayloadMap flattens a typed payload into the generic form the journal stores.
func PayloadMap(payload interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func convertToHistoryEvent(id string, at time.Time, eventType string, details map[string]interface{}) HistoryEvent {
	return HistoryEvent{
		ID:        id,
		Timestamp: at.Format(time.RFC3339),
		Type:      eventType,
		Summary:   summarizeEvent(eventType, details),
		Impact:    determineImpact(eventType),
		Details:   details,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(eventType string, d map[string]interface{}) string {
	num := func(key string) float64 {
		f, _ := d[key].(float64)
		return f
	}
	switch events.EventType(eventType) {
	case events.EventTypeClick:
		return "Clicked the cookie for " + format.Rate(num("amount")) + "."
	case events.EventTypeUpgradePurchased:
		name, _ := d["kind"].(string)
		if u, ok := economy.Lookup(economy.Kind(name)); ok {
			name = u.Name
		}
		return fmt.Sprintf("Bought %s (level %d) for %s cookies.", name, int(num("level")), format.Format(num("cost"), economy.NumberFormatFlat))
	case events.EventTypePurchaseRejected:
		return fmt.Sprintf("Could not afford %v: %s of %s cookies.", d["kind"],
			format.Format(num("available"), economy.NumberFormatFlat), format.Format(num("required"), economy.NumberFormatFlat))
	case events.EventTypePrestiged:
		return fmt.Sprintf("Prestiged for %d levels, multiplier now x%.1f.", int(num("gain")), num("multiplier"))
	case events.EventTypePrestigeRejected:
		return "Prestige refused below " + format.Format(num("required"), economy.NumberFormatAbbreviated) + " cookies."
	case events.EventTypeSettingsChanged:
		return "Settings changed."
	case events.EventTypeSaved:
		return "Game saved."
	case events.EventTypeSaveFailed:
		return "Save failed."
	case events.EventTypeLoaded:
		return "Game loaded."
	case events.EventTypeLoadFailed:
		return "Save could not be read; started fresh."
	case events.EventTypeNoSaveFound:
		return "No save found; started fresh."
	case events.EventTypeRestored:
		return fmt.Sprintf("Restored upgrades from the journal, multiplier x%.1f.", num("multiplier"))
	case events.EventTypeCookiesChanged:
		return "Bank now " + format.Format(num("cookies"), economy.NumberFormatFlat) + " cookies."
	default:
		return "Something happened."
	}
}

// determineImpact classifies the event impact.
func determineImpact(eventType string) string {
	switch events.EventType(eventType) {
	case events.EventTypeUpgradePurchased, events.EventTypePrestiged, events.EventTypeClick, events.EventTypeRestored:
		return "POSITIVE"
	case events.EventTypePurchaseRejected, events.EventTypePrestigeRejected, events.EventTypeSaveFailed, events.EventTypeLoadFailed:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

func (a *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to write API response: " + err.Error())
	}
}

// jsonError sends an error response.
func (a *APIHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

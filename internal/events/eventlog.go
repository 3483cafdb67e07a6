// Package events provides the engine-to-renderer event stream.
// The engine publishes here; renderers, the WebSocket hub and the journal subscribe.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeCookiesChanged   EventType = "COOKIES_CHANGED"
	EventTypeClick            EventType = "CLICK"
	EventTypeUpgradePurchased EventType = "UPGRADE_PURCHASED"
	EventTypePurchaseRejected EventType = "PURCHASE_REJECTED"
	EventTypePrestiged        EventType = "PRESTIGED"
	EventTypePrestigeRejected EventType = "PRESTIGE_REJECTED"
	EventTypeSettingsChanged  EventType = "SETTINGS_CHANGED"
	EventTypeSaved            EventType = "SAVED"
	EventTypeSaveFailed       EventType = "SAVE_FAILED"
	EventTypeLoaded           EventType = "LOADED"
	EventTypeLoadFailed       EventType = "LOAD_FAILED"
	EventTypeNoSaveFound      EventType = "NO_SAVE_FOUND"
	EventTypeRestored         EventType = "RESTORED"
)

// GameEvent represents an immutable record of something the engine did.
// Seq orders events from one log; renderers can drop anything older than
// what they already applied.
type GameEvent struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"` // Event-specific data
}

// New stamps a fresh event.
func New(eventType EventType, at time.Time, payload interface{}) GameEvent {
	return GameEvent{
		ID:        GenerateEventID(),
		Timestamp: at,
		Type:      eventType,
		Payload:   payload,
	}
}

// Listener receives published events synchronously.
type Listener func(GameEvent)

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// DefaultHistorySize bounds the in-memory history when no size is given.
const DefaultHistorySize = 512

// journalBacklog is how many events may wait for the persister.
const journalBacklog = 256

// EventLog keeps a bounded in-memory history of events and fans them out.
//
// Events are delivered to listeners and the persister in Seq order, one at
// a time. A producer that stamps events under its own lock with NextSeq gets
// the same order its state changes happened in, even when it publishes after
// unlocking.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	capacity  int
	listeners map[int]Listener
	nextID    int
	persister EventPersister
	onPersist func(latency time.Duration, err error)

	seq       uint64               // last number handed out
	delivered uint64               // last number delivered
	pending   map[uint64]GameEvent // appended but waiting for an earlier Seq
	draining  bool

	journalOnce sync.Once
	journal     chan GameEvent
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(capacity int, persister EventPersister) *EventLog {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &EventLog{
		events:    make([]GameEvent, 0, capacity),
		capacity:  capacity,
		listeners: make(map[int]Listener),
		persister: persister,
		pending:   make(map[uint64]GameEvent),
	}
}

// OnPersist registers a hook called after every journal write.
func (el *EventLog) OnPersist(fn func(latency time.Duration, err error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onPersist = fn
}

// Subscribe registers a listener and returns a function that removes it.
func (el *EventLog) Subscribe(fn Listener) (unsubscribe func()) {
	el.mu.Lock()
	id := el.nextID
	el.nextID++
	el.listeners[id] = fn
	el.mu.Unlock()

	return func() {
		el.mu.Lock()
		delete(el.listeners, id)
		el.mu.Unlock()
	}
}

// NextSeq reserves the next sequence number. Every reserved number must be
// appended, otherwise delivery waits at the gap.
func (el *EventLog) NextSeq() uint64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.seq++
	return el.seq
}

// Append records an event and delivers it to every listener.
//
// Events without a reserved Seq are numbered on arrival. When another
// goroutine is already delivering, or an earlier reserved event has not
// arrived yet, Append queues the event and returns; it is delivered in turn.
// Listeners may append from inside a callback.
func (el *EventLog) Append(event GameEvent) {
	el.mu.Lock()
	if event.Seq == 0 || event.Seq <= el.delivered {
		el.seq++
		event.Seq = el.seq
	}
	el.pending[event.Seq] = event
	if el.draining {
		el.mu.Unlock()
		return
	}
	el.draining = true
	el.mu.Unlock()

	el.drain()
}

func (el *EventLog) drain() {
	for {
		el.mu.Lock()
		event, ok := el.pending[el.delivered+1]
		if !ok {
			el.draining = false
			el.mu.Unlock()
			return
		}
		delete(el.pending, event.Seq)
		el.delivered = event.Seq

		if len(el.events) == el.capacity {
			copy(el.events, el.events[1:])
			el.events = el.events[:len(el.events)-1]
		}
		el.events = append(el.events, event)

		listeners := make([]Listener, 0, len(el.listeners))
		for id := 0; id < el.nextID; id++ {
			if l, ok := el.listeners[id]; ok {
				listeners = append(listeners, l)
			}
		}
		persist := el.persister != nil
		el.mu.Unlock()

		if persist {
			el.persist(event)
		}
		for _, l := range listeners {
			l(event)
		}
	}
}

// persist hands event to the journal writer, which writes in Seq order off
// the caller's goroutine. It blocks only when the backlog is full.
func (el *EventLog) persist(event GameEvent) {
	el.journalOnce.Do(func() {
		el.journal = make(chan GameEvent, journalBacklog)
		go el.writeJournal()
	})
	el.journal <- event
}

func (el *EventLog) writeJournal() {
	for e := range el.journal {
		start := time.Now()
		err := el.persister.Append(e)

		el.mu.RLock()
		onPersist := el.onPersist
		el.mu.RUnlock()
		if onPersist != nil {
			onPersist(time.Since(start), err)
		}
	}
}

// GetByType returns retained events of one type, oldest first.
func (el *EventLog) GetByType(eventType EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the retained history, oldest first.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}

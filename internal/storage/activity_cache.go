package storage

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultRecentErrorsCapacity is the number of recent errors to track.
	DefaultRecentErrorsCapacity = 100

	// DefaultRecentTracesCapacity is the number of recent traces to track.
	DefaultRecentTracesCapacity = 50
)

// ActivityCache provides fast access to recent trace activity for frequent
// polling and live UI refresh. Counters use atomics for lock-free reads.
type ActivityCache struct {
	spansReceived atomic.Uint64

	// Generation counter for change detection; incremented on any receipt.
	generation atomic.Uint64

	// Recent errors, separate from the main span buffer so errors survive
	// being evicted by high-volume healthy traffic.
	recentErrors *RingBuffer[*ErrorEntry]

	// Recent traces deduplicated by service:rootSpan - one entry per unique
	// combination, showing the most recent occurrence.
	recentTracesMu   sync.RWMutex
	recentTraces     map[string]*TraceEntry // key: "service:rootSpan"
	traceIDToKey     map[string]string
	traceInsertOrder []string // keys in insertion order for eviction

	// Subscriber notification for real-time streaming (e.g. WebSocket).
	subscriberMu     sync.Mutex
	subscribers      map[uint64]chan struct{}
	nextSubscriberID uint64

	startTime time.Time
}

// ErrorEntry captures minimal error info for activity tracking.
type ErrorEntry struct {
	TraceID   string
	SpanID    string
	Service   string
	SpanName  string
	ErrorMsg  string
	Timestamp uint64 // unix nano
}

// TraceEntry captures trace-level info for activity tracking.
type TraceEntry struct {
	TraceID    string
	Service    string
	RootSpan   string
	Status     string // OK, ERROR, UNSET
	DurationMs float64
	ErrorMsg   string
	Timestamp  uint64 // start time, unix nano
	SpanCount  int
	HasRoot    bool // true once the actual root span has been seen
}

// NewActivityCache creates an empty activity cache.
func NewActivityCache() *ActivityCache {
	return &ActivityCache{
		recentErrors:     NewRingBuffer[*ErrorEntry](DefaultRecentErrorsCapacity),
		recentTraces:     make(map[string]*TraceEntry),
		traceIDToKey:     make(map[string]string),
		traceInsertOrder: make([]string, 0, DefaultRecentTracesCapacity),
		subscribers:      make(map[uint64]chan struct{}),
		startTime:        time.Now(),
	}
}

// Subscribe returns a notification channel and an unsubscribe function.
// The channel receives a signal whenever new spans arrive; it is buffered
// with capacity 1 so rapid updates coalesce.
func (h *ActivityCache) Subscribe() (<-chan struct{}, func()) {
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()

	id := h.nextSubscriberID
	h.nextSubscriberID++

	ch := make(chan struct{}, 1)
	h.subscribers[id] = ch

	unsubscribe := func() {
		h.subscriberMu.Lock()
		defer h.subscriberMu.Unlock()
		delete(h.subscribers, id)
	}

	return ch, unsubscribe
}

// notifySubscribers sends a non-blocking signal to all subscriber channels.
func (h *ActivityCache) notifySubscribers() {
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Pending notification already queued; coalesce.
		}
	}
}

// RecordSpan records a span for activity tracking.
// Called from Store when spans are received.
func (h *ActivityCache) RecordSpan(span *StoredSpan) {
	h.spansReceived.Add(1)
	h.generation.Add(1)

	if span.StatusCode == "ERROR" {
		errorMsg := ""
		if span.Span.Status != nil {
			errorMsg = span.Span.Status.Message
		}
		h.recentErrors.Push(&ErrorEntry{
			TraceID:   span.TraceID,
			SpanID:    span.SpanID,
			Service:   span.ServiceName,
			SpanName:  span.SpanName,
			ErrorMsg:  errorMsg,
			Timestamp: span.Span.StartTimeUnixNano,
		})
	}

	h.updateTraceEntry(span)
	h.notifySubscribers()
}

// updateTraceEntry updates or creates a trace entry, deduplicating by
// service:rootSpan so repeated runs of the same operation keep one row.
func (h *ActivityCache) updateTraceEntry(span *StoredSpan) {
	h.recentTracesMu.Lock()
	defer h.recentTracesMu.Unlock()

	traceID := span.TraceID
	isRoot := span.ParentSpanID == ""

	errorMsg := ""
	if span.StatusCode == "ERROR" && span.Span.Status != nil {
		errorMsg = span.Span.Status.Message
	}

	var durationMs float64
	if span.Span.EndTimeUnixNano > span.Span.StartTimeUnixNano {
		durationMs = float64(span.Span.EndTimeUnixNano-span.Span.StartTimeUnixNano) / 1_000_000.0
	}

	// Continuing an existing trace?
	if existingKey, exists := h.traceIDToKey[traceID]; exists {
		if entry, ok := h.recentTraces[existingKey]; ok {
			entry.SpanCount++
			if isRoot && !entry.HasRoot {
				// Root arrived after children: re-key from the child span
				// name to the real root span name.
				newKey := span.ServiceName + ":" + span.SpanName
				if newKey != existingKey {
					delete(h.recentTraces, existingKey)
					h.recentTraces[newKey] = entry
					h.traceIDToKey[traceID] = newKey
					h.updateInsertOrder(existingKey, newKey)
				}
				entry.RootSpan = span.SpanName
				entry.HasRoot = true
				entry.DurationMs = durationMs
				entry.Timestamp = span.Span.StartTimeUnixNano
			}
			if span.StatusCode == "ERROR" {
				entry.Status = "ERROR"
				entry.ErrorMsg = errorMsg
			}
			return
		}
	}

	// New trace. Displace any older entry for the same service:spanName.
	key := span.ServiceName + ":" + span.SpanName
	if existing, exists := h.recentTraces[key]; exists {
		delete(h.traceIDToKey, existing.TraceID)
	}

	h.recentTraces[key] = &TraceEntry{
		TraceID:    traceID,
		Service:    span.ServiceName,
		RootSpan:   span.SpanName,
		Status:     span.StatusCode,
		DurationMs: durationMs,
		ErrorMsg:   errorMsg,
		Timestamp:  span.Span.StartTimeUnixNano,
		SpanCount:  1,
		HasRoot:    isRoot,
	}
	h.traceIDToKey[traceID] = key

	h.updateInsertOrder("", key)
	h.evictOldestTraces()
}

// updateInsertOrder removes oldKey (if given), then moves newKey to the end.
func (h *ActivityCache) updateInsertOrder(oldKey, newKey string) {
	if oldKey != "" {
		for i, k := range h.traceInsertOrder {
			if k == oldKey {
				h.traceInsertOrder = append(h.traceInsertOrder[:i], h.traceInsertOrder[i+1:]...)
				break
			}
		}
	}

	for i, k := range h.traceInsertOrder {
		if k == newKey {
			h.traceInsertOrder = append(h.traceInsertOrder[:i], h.traceInsertOrder[i+1:]...)
			break
		}
	}

	h.traceInsertOrder = append(h.traceInsertOrder, newKey)
}

// evictOldestTraces removes the oldest entries when over capacity.
func (h *ActivityCache) evictOldestTraces() {
	for len(h.traceInsertOrder) > DefaultRecentTracesCapacity {
		oldestKey := h.traceInsertOrder[0]
		h.traceInsertOrder = h.traceInsertOrder[1:]

		if entry, exists := h.recentTraces[oldestKey]; exists {
			delete(h.traceIDToKey, entry.TraceID)
			delete(h.recentTraces, oldestKey)
		}
	}
}

// SpansReceived returns the total number of spans received.
func (h *ActivityCache) SpansReceived() uint64 {
	return h.spansReceived.Load()
}

// Generation returns the current generation counter.
func (h *ActivityCache) Generation() uint64 {
	return h.generation.Load()
}

// UptimeSeconds returns the uptime in seconds.
func (h *ActivityCache) UptimeSeconds() float64 {
	return time.Since(h.startTime).Seconds()
}

// RecentErrors returns the n most recent errors.
func (h *ActivityCache) RecentErrors(n int) []*ErrorEntry {
	return h.recentErrors.Recent(n)
}

// RecentErrorCount returns the number of recent errors tracked.
func (h *ActivityCache) RecentErrorCount() int {
	return h.recentErrors.Len()
}

// RecentTraces returns the n most recent trace entries, oldest first.
func (h *ActivityCache) RecentTraces(n int) []*TraceEntry {
	h.recentTracesMu.RLock()
	defer h.recentTracesMu.RUnlock()

	count := len(h.traceInsertOrder)
	if n > count {
		n = count
	}
	if n == 0 {
		return nil
	}

	result := make([]*TraceEntry, 0, n)
	for i := 0; i < n; i++ {
		key := h.traceInsertOrder[count-n+i]
		if entry, exists := h.recentTraces[key]; exists {
			entryCopy := *entry
			result = append(result, &entryCopy)
		}
	}
	return result
}

// Clear resets all activity cache data.
func (h *ActivityCache) Clear() {
	h.spansReceived.Store(0)
	h.generation.Store(0)
	h.recentErrors.Clear()

	h.recentTracesMu.Lock()
	h.recentTraces = make(map[string]*TraceEntry)
	h.traceIDToKey = make(map[string]string)
	h.traceInsertOrder = make([]string, 0, DefaultRecentTracesCapacity)
	h.recentTracesMu.Unlock()

	h.startTime = time.Now()
}

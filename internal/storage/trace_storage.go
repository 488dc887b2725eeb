package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/brokle-ai/spanline/internal/timeline"
)

// StoredSpan wraps a protobuf span with indexed fields for efficient
// querying. It preserves the full OTLP hierarchy:
// ResourceSpans -> ScopeSpans -> Span.
type StoredSpan struct {
	ResourceSpan *tracepb.ResourceSpans
	ScopeSpan    *tracepb.ScopeSpans
	Span         *tracepb.Span

	// Indexed fields for fast lookup
	TraceID      string
	SpanID       string
	ParentSpanID string // empty = root span
	ServiceName  string
	SpanName     string
	StatusCode   string // "OK", "ERROR", "UNSET"
}

// TimelineSpan converts the stored span into the layout engine's input type.
func (s *StoredSpan) TimelineSpan() timeline.Span {
	return timeline.Span{
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentSpanID: s.ParentSpanID,
		ServiceName:  s.ServiceName,
		SpanName:     s.SpanName,
		StartNano:    s.Span.StartTimeUnixNano,
		EndNano:      s.Span.EndTimeUnixNano,
		StatusCode:   s.StatusCode,
	}
}

// TimelineSpans converts a batch of stored spans for the layout engine.
func TimelineSpans(spans []*StoredSpan) []timeline.Span {
	result := make([]timeline.Span, len(spans))
	for i, s := range spans {
		result[i] = s.TimelineSpan()
	}
	return result
}

// TraceStorage stores and indexes OTLP trace spans.
type TraceStorage struct {
	spans      *RingBuffer[*StoredSpan]
	traceIndex map[string][]*StoredSpan // trace_id -> spans
	mu         sync.RWMutex             // protects traceIndex
}

// NewTraceStorage creates trace storage with the specified span capacity.
func NewTraceStorage(capacity int) *TraceStorage {
	return &TraceStorage{
		spans:      NewRingBuffer[*StoredSpan](capacity),
		traceIndex: make(map[string][]*StoredSpan),
	}
}

// Ingest unpacks an OTLP export payload into stored spans, indexes them,
// and returns the stored records so callers can fan them out (activity
// tracking, live subscribers).
func (ts *TraceStorage) Ingest(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) []*StoredSpan {
	var stored []*StoredSpan
	for _, rs := range resourceSpans {
		serviceName := extractServiceName(rs.Resource)

		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				s := &StoredSpan{
					ResourceSpan: rs,
					ScopeSpan:    ss,
					Span:         span,
					TraceID:      idToString(span.TraceId),
					SpanID:       idToString(span.SpanId),
					ParentSpanID: idToString(span.ParentSpanId),
					ServiceName:  serviceName,
					SpanName:     span.Name,
					StatusCode:   statusCodeString(span.Status),
				}
				ts.addSpan(s)
				stored = append(stored, s)
			}
		}
	}
	return stored
}

// ReceiveSpans implements the otlpreceiver.SpanReceiver interface.
func (ts *TraceStorage) ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error {
	ts.Ingest(ctx, resourceSpans)
	return nil
}

// addSpan adds a span to storage and updates the trace index.
// The trace index grows unbounded relative to the ring buffer; acceptable
// for bounded sessions, same tradeoff the buffer capacity already makes.
func (ts *TraceStorage) addSpan(span *StoredSpan) {
	ts.spans.Push(span)

	ts.mu.Lock()
	ts.traceIndex[span.TraceID] = append(ts.traceIndex[span.TraceID], span)
	ts.mu.Unlock()
}

// RecentSpans returns the n most recent spans in chronological order.
func (ts *TraceStorage) RecentSpans(n int) []*StoredSpan {
	return ts.spans.Recent(n)
}

// AllSpans returns all stored spans in chronological order.
func (ts *TraceStorage) AllSpans() []*StoredSpan {
	return ts.spans.All()
}

// SpansByTraceID returns all spans for a trace, or nil if unknown.
func (ts *TraceStorage) SpansByTraceID(traceID string) []*StoredSpan {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	spans := ts.traceIndex[traceID]
	if len(spans) == 0 {
		return nil
	}

	// Copy to keep callers clear of concurrent appends.
	result := make([]*StoredSpan, len(spans))
	copy(result, spans)
	return result
}

// SpansRange returns spans in the absolute buffer position range [start, end).
func (ts *TraceStorage) SpansRange(start, end int) []*StoredSpan {
	return ts.spans.Range(start, end)
}

// Position returns the absolute buffer position of the next span.
func (ts *TraceStorage) Position() int {
	return ts.spans.Position()
}

// Services returns the sorted set of service names across stored spans.
func (ts *TraceStorage) Services() []string {
	seen := make(map[string]struct{})
	for _, span := range ts.spans.All() {
		seen[span.ServiceName] = struct{}{}
	}

	services := make([]string, 0, len(seen))
	for svc := range seen {
		services = append(services, svc)
	}
	sort.Strings(services)
	return services
}

// Stats returns current storage statistics.
func (ts *TraceStorage) Stats() StorageStats {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	return StorageStats{
		SpanCount:  ts.spans.Len(),
		Capacity:   ts.spans.Cap(),
		TraceCount: len(ts.traceIndex),
	}
}

// Clear removes all stored spans and resets indexes.
func (ts *TraceStorage) Clear() {
	ts.spans.Clear()

	ts.mu.Lock()
	ts.traceIndex = make(map[string][]*StoredSpan)
	ts.mu.Unlock()
}

// StorageStats contains statistics about trace storage.
type StorageStats struct {
	SpanCount  int `json:"span_count"`  // current number of spans stored
	Capacity   int `json:"capacity"`    // maximum number of spans
	TraceCount int `json:"trace_count"` // number of distinct traces
}

// extractServiceName extracts the service.name attribute from an OTLP
// resource. Returns "unknown" if not found.
func extractServiceName(resource *resourcepb.Resource) string {
	if resource == nil {
		return "unknown"
	}

	for _, attr := range resource.Attributes {
		if attr.Key == "service.name" {
			if sv := attr.Value.GetStringValue(); sv != "" {
				return sv
			}
		}
	}

	return "unknown"
}

// statusCodeString maps an OTLP span status to its string form.
func statusCodeString(status *tracepb.Status) string {
	if status == nil {
		return "UNSET"
	}
	switch status.Code {
	case tracepb.Status_STATUS_CODE_OK:
		return "OK"
	case tracepb.Status_STATUS_CODE_ERROR:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// idToString converts a trace or span ID byte slice to a hex string.
func idToString(id []byte) string {
	if len(id) == 0 {
		return ""
	}
	return fmt.Sprintf("%x", id)
}

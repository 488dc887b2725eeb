package storage

import (
	"context"
	"fmt"
	"sort"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/brokle-ai/spanline/internal/timeline"
)

// Store is the unified storage layer behind the OTLP receiver, file reader,
// web UI, and CLI. It combines the span buffer with activity tracking and
// bookmark support, and answers timeline layout queries.
type Store struct {
	spans     *TraceStorage
	activity  *ActivityCache
	bookmarks *BookmarkManager
}

// NewStore creates a store with the specified span buffer capacity.
func NewStore(spanCapacity int) *Store {
	return &Store{
		spans:     NewTraceStorage(spanCapacity),
		activity:  NewActivityCache(),
		bookmarks: NewBookmarkManager(),
	}
}

// Spans returns the underlying trace storage.
func (st *Store) Spans() *TraceStorage {
	return st.spans
}

// Activity returns the activity cache.
func (st *Store) Activity() *ActivityCache {
	return st.activity
}

// Bookmarks returns the bookmark manager.
func (st *Store) Bookmarks() *BookmarkManager {
	return st.bookmarks
}

// ReceiveSpans implements the otlpreceiver.SpanReceiver interface.
// Spans are stored, indexed, and recorded for activity tracking, which
// also wakes any live subscribers.
func (st *Store) ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error {
	for _, span := range st.spans.Ingest(ctx, resourceSpans) {
		st.activity.RecordSpan(span)
	}
	return nil
}

// TraceTimeline computes the timeline layout for one trace.
// Returns an error when the trace is unknown.
func (st *Store) TraceTimeline(traceID string) (timeline.Layout, error) {
	spans := st.spans.SpansByTraceID(traceID)
	if len(spans) == 0 {
		return timeline.Layout{}, fmt.Errorf("trace %q not found", traceID)
	}
	return timeline.Build(TimelineSpans(spans)), nil
}

// CreateBookmark records a named bookmark at the current buffer position.
func (st *Store) CreateBookmark(name string) error {
	return st.bookmarks.Create(name, st.spans.Position())
}

// SpansSince returns spans recorded after the named bookmark.
func (st *Store) SpansSince(bookmark string) ([]*StoredSpan, error) {
	b, err := st.bookmarks.Get(bookmark)
	if err != nil {
		return nil, err
	}
	return st.spans.SpansRange(b.SpanPos, st.spans.Position()), nil
}

// QueryResult contains filtered spans plus a quick summary.
type QueryResult struct {
	Filter  QueryFilter   `json:"filter"`
	Spans   []*StoredSpan `json:"spans"`
	Summary QuerySummary  `json:"summary"`
}

// QuerySummary provides quick stats about a query result.
type QuerySummary struct {
	SpanCount int      `json:"span_count"`
	Services  []string `json:"services"`
	TraceIDs  []string `json:"trace_ids"`
}

// Query performs a filtered span query, optionally scoped to everything
// recorded since a bookmark.
func (st *Store) Query(filter QueryFilter) (*QueryResult, error) {
	var spans []*StoredSpan
	var err error

	if filter.SinceBookmark != "" {
		spans, err = st.SpansSince(filter.SinceBookmark)
		if err != nil {
			return nil, err
		}
	} else {
		spans = st.spans.AllSpans()
	}

	spans = FilterSpans(spans, filter)
	if filter.Limit > 0 && len(spans) > filter.Limit {
		spans = spans[:filter.Limit]
	}

	return &QueryResult{
		Filter:  filter,
		Spans:   spans,
		Summary: buildQuerySummary(spans),
	}, nil
}

// Stats returns statistics across storage and bookmarks.
type Stats struct {
	Spans     StorageStats `json:"spans"`
	Bookmarks int          `json:"bookmark_count"`
}

// Stats returns current storage statistics.
func (st *Store) Stats() Stats {
	return Stats{
		Spans:     st.spans.Stats(),
		Bookmarks: st.bookmarks.Count(),
	}
}

// Services returns the sorted set of known service names.
func (st *Store) Services() []string {
	return st.spans.Services()
}

// Clear removes all spans, activity, and bookmarks. A complete reset.
func (st *Store) Clear() {
	st.spans.Clear()
	st.activity.Clear()
	st.bookmarks.Clear()
}

func buildQuerySummary(spans []*StoredSpan) QuerySummary {
	serviceSet := make(map[string]struct{})
	traceIDSet := make(map[string]struct{})
	for _, span := range spans {
		serviceSet[span.ServiceName] = struct{}{}
		traceIDSet[span.TraceID] = struct{}{}
	}

	services := make([]string, 0, len(serviceSet))
	for svc := range serviceSet {
		services = append(services, svc)
	}
	sort.Strings(services)

	traceIDs := make([]string, 0, len(traceIDSet))
	for tid := range traceIDSet {
		traceIDs = append(traceIDs, tid)
	}
	sort.Strings(traceIDs)

	return QuerySummary{
		SpanCount: len(spans),
		Services:  services,
		TraceIDs:  traceIDs,
	}
}

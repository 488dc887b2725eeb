package storage

import (
	"context"
	"testing"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

func TestStore_ReceiveUpdatesActivity(t *testing.T) {
	st := NewStore(100)

	err := st.ReceiveSpans(context.Background(), []*tracepb.ResourceSpans{
		makeResourceSpans("api", makeSpan(1, 1, 0, "GET /", 0, 1_000_000)),
	})
	if err != nil {
		t.Fatalf("ReceiveSpans failed: %v", err)
	}

	if st.Activity().SpansReceived() != 1 {
		t.Errorf("activity spans = %d, want 1", st.Activity().SpansReceived())
	}
	if st.Stats().Spans.SpanCount != 1 {
		t.Errorf("stored spans = %d, want 1", st.Stats().Spans.SpanCount)
	}
}

func TestStore_TraceTimeline(t *testing.T) {
	st := NewStore(100)
	ctx := context.Background()

	st.ReceiveSpans(ctx, []*tracepb.ResourceSpans{
		makeResourceSpans("api", makeSpan(7, 1, 0, "GET /orders", 0, 100_000_000)),
		makeResourceSpans("db", makeSpan(7, 2, 1, "SELECT", 10_000_000, 40_000_000)),
	})

	layout, err := st.TraceTimeline(idToString(fullTraceID(7)))
	if err != nil {
		t.Fatalf("TraceTimeline failed: %v", err)
	}
	if len(layout.Spans) != 2 {
		t.Fatalf("expected 2 positioned spans, got %d", len(layout.Spans))
	}

	root := layout.Spans[0]
	child := layout.Spans[1]
	if root.Depth != 0 || root.StartOffsetPct != 0 || root.WidthPct != 100 {
		t.Errorf("root layout = %+v, want depth 0 at (0,100)", root)
	}
	if child.Depth != 1 || child.StartOffsetPct != 10 || child.WidthPct != 30 {
		t.Errorf("child layout = %+v, want depth 1 at (10,30)", child)
	}
	if layout.Window.TotalDurationMs != 100 {
		t.Errorf("window = %+v, want 100ms total", layout.Window)
	}
}

func TestStore_TraceTimelineUnknown(t *testing.T) {
	st := NewStore(10)
	if _, err := st.TraceTimeline("missing"); err == nil {
		t.Error("expected error for unknown trace")
	}
}

func TestStore_BookmarkScopedQuery(t *testing.T) {
	st := NewStore(100)
	ctx := context.Background()

	st.ReceiveSpans(ctx, []*tracepb.ResourceSpans{
		makeResourceSpans("api", makeSpan(1, 1, 0, "before", 0, 1)),
	})

	if err := st.CreateBookmark("deploy"); err != nil {
		t.Fatalf("CreateBookmark failed: %v", err)
	}

	st.ReceiveSpans(ctx, []*tracepb.ResourceSpans{
		makeResourceSpans("api", makeSpan(2, 2, 0, "after", 0, 1)),
	})

	res, err := st.Query(QueryFilter{SinceBookmark: "deploy"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Spans) != 1 || res.Spans[0].SpanName != "after" {
		t.Errorf("bookmark query = %d spans, want only the post-bookmark span", len(res.Spans))
	}

	if _, err := st.Query(QueryFilter{SinceBookmark: "missing"}); err == nil {
		t.Error("expected error for unknown bookmark")
	}
}

func TestStore_QueryFilterAndLimit(t *testing.T) {
	st := NewStore(100)
	ctx := context.Background()

	for i := byte(1); i <= 5; i++ {
		st.ReceiveSpans(ctx, []*tracepb.ResourceSpans{
			makeResourceSpans("api", makeSpan(i, i, 0, "op", 0, 1)),
		})
	}

	res, err := st.Query(QueryFilter{ServiceName: "api", Limit: 3})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Spans) != 3 {
		t.Errorf("limited query = %d spans, want 3", len(res.Spans))
	}
	if res.Summary.SpanCount != 3 || len(res.Summary.Services) != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
}

func TestStore_Clear(t *testing.T) {
	st := NewStore(10)
	st.ReceiveSpans(context.Background(), []*tracepb.ResourceSpans{
		makeResourceSpans("api", makeSpan(1, 1, 0, "op", 0, 1)),
	})
	st.CreateBookmark("b")

	st.Clear()

	if st.Stats().Spans.SpanCount != 0 || st.Stats().Bookmarks != 0 {
		t.Errorf("stats after clear = %+v, want zeros", st.Stats())
	}
	if st.Activity().SpansReceived() != 0 {
		t.Error("activity not cleared")
	}
}

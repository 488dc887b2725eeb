package storage

import (
	"testing"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

func activitySpan(traceID, spanID, parentID, service, name, status string, startNano, endNano uint64) *StoredSpan {
	span := &tracepb.Span{
		StartTimeUnixNano: startNano,
		EndTimeUnixNano:   endNano,
	}
	if status == "ERROR" {
		span.Status = &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR, Message: "boom"}
	}
	return &StoredSpan{
		Span:         span,
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentID,
		ServiceName:  service,
		SpanName:     name,
		StatusCode:   status,
	}
}

func TestActivityCache_CountersAndGeneration(t *testing.T) {
	ac := NewActivityCache()

	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "GET /", "OK", 0, 1_000_000))
	ac.RecordSpan(activitySpan("t1", "s2", "s1", "db", "query", "OK", 0, 500_000))

	if ac.SpansReceived() != 2 {
		t.Errorf("SpansReceived = %d, want 2", ac.SpansReceived())
	}
	if ac.Generation() != 2 {
		t.Errorf("Generation = %d, want 2", ac.Generation())
	}
}

func TestActivityCache_ErrorTracking(t *testing.T) {
	ac := NewActivityCache()

	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "GET /", "OK", 0, 1))
	ac.RecordSpan(activitySpan("t2", "s2", "", "api", "GET /fail", "ERROR", 0, 1))

	errors := ac.RecentErrors(10)
	if len(errors) != 1 {
		t.Fatalf("expected 1 recent error, got %d", len(errors))
	}
	if errors[0].TraceID != "t2" || errors[0].ErrorMsg != "boom" {
		t.Errorf("unexpected error entry: %+v", errors[0])
	}
}

func TestActivityCache_TraceDeduplication(t *testing.T) {
	ac := NewActivityCache()

	// Two runs of the same service:rootSpan keep one row, the newer one.
	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "GET /users", "OK", 100, 200))
	ac.RecordSpan(activitySpan("t2", "s2", "", "api", "GET /users", "OK", 300, 400))

	traces := ac.RecentTraces(10)
	if len(traces) != 1 {
		t.Fatalf("expected 1 deduplicated trace, got %d", len(traces))
	}
	if traces[0].TraceID != "t2" {
		t.Errorf("kept trace = %q, want the newer t2", traces[0].TraceID)
	}
}

func TestActivityCache_RootRekeying(t *testing.T) {
	ac := NewActivityCache()

	// Child arrives first, then the root: entry re-keys to the root name.
	ac.RecordSpan(activitySpan("t1", "s2", "s1", "api", "child-op", "OK", 150, 180))
	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "GET /orders", "OK", 100, 200))

	traces := ac.RecentTraces(10)
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(traces))
	}
	entry := traces[0]
	if entry.RootSpan != "GET /orders" {
		t.Errorf("RootSpan = %q, want GET /orders", entry.RootSpan)
	}
	if !entry.HasRoot {
		t.Error("expected HasRoot after root span arrived")
	}
	if entry.SpanCount != 2 {
		t.Errorf("SpanCount = %d, want 2", entry.SpanCount)
	}
}

func TestActivityCache_ErrorPropagatesToTrace(t *testing.T) {
	ac := NewActivityCache()

	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "GET /", "OK", 0, 10))
	ac.RecordSpan(activitySpan("t1", "s2", "s1", "db", "query", "ERROR", 2, 5))

	traces := ac.RecentTraces(10)
	if len(traces) != 1 || traces[0].Status != "ERROR" {
		t.Errorf("expected trace status ERROR, got %+v", traces)
	}
}

func TestActivityCache_SubscribeNotifies(t *testing.T) {
	ac := NewActivityCache()

	ch, unsubscribe := ac.Subscribe()
	defer unsubscribe()

	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "op", "OK", 0, 1))

	select {
	case <-ch:
	default:
		t.Error("expected a pending notification after RecordSpan")
	}

	// Multiple records coalesce into one pending signal.
	ac.RecordSpan(activitySpan("t2", "s2", "", "api", "op2", "OK", 0, 1))
	ac.RecordSpan(activitySpan("t3", "s3", "", "api", "op3", "OK", 0, 1))
	<-ch
	select {
	case <-ch:
		t.Error("expected notifications to coalesce")
	default:
	}
}

func TestActivityCache_Eviction(t *testing.T) {
	ac := NewActivityCache()

	for i := 0; i < DefaultRecentTracesCapacity+10; i++ {
		ac.RecordSpan(activitySpan(
			spanKey("t", i), spanKey("s", i), "", "svc", spanKey("op", i), "OK", 0, 1))
	}

	traces := ac.RecentTraces(1000)
	if len(traces) != DefaultRecentTracesCapacity {
		t.Errorf("tracked traces = %d, want capacity %d", len(traces), DefaultRecentTracesCapacity)
	}
}

func TestActivityCache_Clear(t *testing.T) {
	ac := NewActivityCache()
	ac.RecordSpan(activitySpan("t1", "s1", "", "api", "op", "ERROR", 0, 1))

	ac.Clear()

	if ac.SpansReceived() != 0 || ac.Generation() != 0 {
		t.Error("counters not reset")
	}
	if ac.RecentErrorCount() != 0 {
		t.Error("errors not cleared")
	}
	if len(ac.RecentTraces(10)) != 0 {
		t.Error("traces not cleared")
	}
}

func spanKey(prefix string, i int) string {
	return prefix + string(rune('A'+i%26)) + string(rune('a'+(i/26)%26))
}

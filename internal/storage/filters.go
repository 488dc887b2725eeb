package storage

import (
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// QueryFilter specifies span query criteria. Empty fields are ignored;
// set fields combine with AND logic.
type QueryFilter struct {
	ServiceName string `json:"service_name,omitempty"`
	TraceID     string `json:"trace_id,omitempty"`
	SpanName    string `json:"span_name,omitempty"`

	// Status filters
	ErrorsOnly bool   `json:"errors_only,omitempty"`
	SpanStatus string `json:"span_status,omitempty"` // "OK", "ERROR", "UNSET"

	// Duration filters (nanoseconds)
	MinDurationNs *uint64 `json:"min_duration_ns,omitempty"`
	MaxDurationNs *uint64 `json:"max_duration_ns,omitempty"`

	// Attribute filters
	HasAttribute    string            `json:"has_attribute,omitempty"`
	AttributeEquals map[string]string `json:"attribute_equals,omitempty"`

	// Bookmark-based range: only spans recorded since this bookmark.
	SinceBookmark string `json:"since_bookmark,omitempty"`

	Limit int `json:"limit,omitempty"` // 0 = no limit
}

// empty reports whether no span-level criteria are set.
func (f QueryFilter) empty() bool {
	return f.ServiceName == "" && f.TraceID == "" && f.SpanName == "" &&
		!f.ErrorsOnly && f.SpanStatus == "" &&
		f.MinDurationNs == nil && f.MaxDurationNs == nil &&
		f.HasAttribute == "" && len(f.AttributeEquals) == 0
}

// FilterSpans applies all set criteria with AND logic.
func FilterSpans(spans []*StoredSpan, f QueryFilter) []*StoredSpan {
	if f.empty() {
		return spans
	}

	result := make([]*StoredSpan, 0, len(spans)/10) // estimate 10% match rate
	for _, span := range spans {
		if f.ServiceName != "" && span.ServiceName != f.ServiceName {
			continue
		}
		if f.TraceID != "" && span.TraceID != f.TraceID {
			continue
		}
		if f.SpanName != "" && span.SpanName != f.SpanName {
			continue
		}
		if !matchesStatus(span, f) {
			continue
		}
		if !matchesDuration(span, f) {
			continue
		}
		if !matchesAttributes(span.Span.Attributes, f) {
			continue
		}
		result = append(result, span)
	}
	return result
}

// GroupSpansByTraceID groups spans by their trace ID.
func GroupSpansByTraceID(spans []*StoredSpan) map[string][]*StoredSpan {
	traces := make(map[string][]*StoredSpan)
	for _, span := range spans {
		traces[span.TraceID] = append(traces[span.TraceID], span)
	}
	return traces
}

func matchesStatus(span *StoredSpan, f QueryFilter) bool {
	if f.ErrorsOnly && span.StatusCode != "ERROR" {
		return false
	}
	if f.SpanStatus != "" && span.StatusCode != f.SpanStatus {
		return false
	}
	return true
}

func matchesDuration(span *StoredSpan, f QueryFilter) bool {
	if f.MinDurationNs == nil && f.MaxDurationNs == nil {
		return true
	}

	// Clamp against bad data where end precedes start.
	var dur uint64
	if span.Span.EndTimeUnixNano > span.Span.StartTimeUnixNano {
		dur = span.Span.EndTimeUnixNano - span.Span.StartTimeUnixNano
	}

	if f.MinDurationNs != nil && dur < *f.MinDurationNs {
		return false
	}
	if f.MaxDurationNs != nil && dur > *f.MaxDurationNs {
		return false
	}
	return true
}

func matchesAttributes(attrs []*commonpb.KeyValue, f QueryFilter) bool {
	if f.HasAttribute != "" && !hasAttribute(attrs, f.HasAttribute) {
		return false
	}
	for key, want := range f.AttributeEquals {
		if attributeString(attrs, key) != want {
			return false
		}
	}
	return true
}

func hasAttribute(attrs []*commonpb.KeyValue, key string) bool {
	for _, attr := range attrs {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// attributeString returns the string form of an attribute value, or ""
// when the key is absent. Only string values compare; other value types
// never match an equality filter.
func attributeString(attrs []*commonpb.KeyValue, key string) string {
	for _, attr := range attrs {
		if attr.Key == key && attr.Value != nil {
			return attr.Value.GetStringValue()
		}
	}
	return ""
}

// Package timeline computes Gantt-style layout for trace spans: nesting
// depth from parent/child chains, horizontal bar positions as percentages of
// the observed time window, and axis tick labels. It is a pure computation
// package with no I/O and no dependency on storage types.
package timeline

// Span is the input type for timeline layout.
type Span struct {
	TraceID      string
	SpanID       string
	ParentSpanID string // empty = root span
	ServiceName  string
	SpanName     string
	StartNano    uint64
	EndNano      uint64 // 0 = no explicit end; derived from DurationNano
	DurationNano uint64 // fallback for end time when EndNano is 0
	StatusCode   string // "OK", "ERROR", "UNSET"
}

// HasError reports whether the span carries an error status.
func (s Span) HasError() bool {
	return s.StatusCode == "ERROR" || s.StatusCode == "STATUS_CODE_ERROR"
}

// DurationMillis returns the span's elapsed time in milliseconds, deriving
// the end from the duration field when no explicit end is present.
func (s Span) DurationMillis() float64 {
	return endMillis(s) - startMillis(s)
}

// PositionedSpan is a Span with its resolved layout coordinates.
type PositionedSpan struct {
	Span
	Depth          int
	StartOffsetPct float64 // [0,100], offset from the window start
	WidthPct       float64 // [1,100], floored so every span stays visible
}

// Window is the observed time window for a span set, from the earliest
// start to the latest end.
type Window struct {
	MinTimeMs       float64
	MaxTimeMs       float64
	TotalDurationMs float64
}

// Layout is the computed timeline for one span set: positioned spans in
// render order plus the shared window bounds.
type Layout struct {
	Spans  []PositionedSpan
	Window Window
}

// Package viz renders plain-text views of trace data: waterfall timelines,
// service summaries, and recent-activity tables. Layout geometry comes from
// the timeline package; viz only draws.
package viz

// ServiceStats describes one service for the service summary bar chart.
type ServiceStats struct {
	Name       string
	SpanCount  int
	ErrorCount int
}

// BufferStats describes span buffer fill levels for the stats overview.
type BufferStats struct {
	SpanCount     int
	SpanCapacity  int
	TraceCount    int
	BookmarkCount int
}

// ActivityTrace describes one recent trace for the activity table.
type ActivityTrace struct {
	TraceID    string
	Service    string
	RootSpan   string
	Status     string
	DurationMs float64
	ErrorMsg   string
}

// ActivityError describes one recent error for the activity table.
type ActivityError struct {
	TraceID   string
	Service   string
	SpanName  string
	ErrorMsg  string
	Timestamp uint64
}

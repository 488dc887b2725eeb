package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brokle-ai/spanline/internal/timeline"
)

const (
	maxSpansPerTrace = 50
	maxTraces        = 5
	maxInputSpans    = 500 // cap input to avoid laying out huge result sets
	defaultBarWidth  = 20
)

// Waterfall renders a text waterfall for the given spans, one section per
// trace. Bar positions come from the timeline layout engine, so the text
// view and the web view agree on geometry. Width controls the total line
// width; 0 uses a sensible default (80).
func Waterfall(spans []timeline.Span, width int) string {
	if len(spans) == 0 {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	if len(spans) > maxInputSpans {
		spans = spans[:maxInputSpans]
	}

	// Group spans by trace
	byTrace := make(map[string][]timeline.Span)
	var traceOrder []string
	for _, s := range spans {
		if _, seen := byTrace[s.TraceID]; !seen {
			traceOrder = append(traceOrder, s.TraceID)
		}
		byTrace[s.TraceID] = append(byTrace[s.TraceID], s)
	}

	// Earliest trace first
	sort.Slice(traceOrder, func(i, j int) bool {
		return earliestStart(byTrace[traceOrder[i]]) < earliestStart(byTrace[traceOrder[j]])
	})

	overflow := 0
	if len(traceOrder) > maxTraces {
		overflow = len(traceOrder) - maxTraces
		traceOrder = traceOrder[:maxTraces]
	}

	var b strings.Builder
	for i, tid := range traceOrder {
		if i > 0 {
			b.WriteByte('\n')
		}
		renderTrace(&b, tid, byTrace[tid], width)
	}

	if overflow > 0 {
		fmt.Fprintf(&b, "\n... +%d more traces\n", overflow)
	}

	return b.String()
}

func renderTrace(b *strings.Builder, traceID string, spans []timeline.Span, width int) {
	layout := timeline.Build(spans)

	shortID := traceID
	if len(shortID) > 6 {
		shortID = shortID[:6]
	}
	windowMs := layout.Window.MaxTimeMs - layout.Window.MinTimeMs
	fmt.Fprintf(b, "Trace %s (%d spans, %s)\n", shortID, len(layout.Spans), timeline.FormatElapsed(windowMs))

	rows := layout.Spans
	spanOverflow := 0
	if len(rows) > maxSpansPerTrace {
		spanOverflow = len(rows) - maxSpansPerTrace
		rows = rows[:maxSpansPerTrace]
	}

	// Pass 1: max duration + error suffix length, for right-edge alignment
	maxDurErrLen := 0
	for _, row := range rows {
		durLen := len(timeline.FormatElapsed(row.DurationMillis()))
		if row.HasError() {
			durLen += len(errSuffix)
		}
		if durLen > maxDurErrLen {
			maxDurErrLen = durLen
		}
	}

	// Pass 2: render rows
	for _, row := range rows {
		renderSpanRow(b, row, width, maxDurErrLen)
	}

	if spanOverflow > 0 {
		fmt.Fprintf(b, "  ... +%d more spans\n", spanOverflow)
	}

	writeAxis(b, layout.Window)
}

const errSuffix = " !! ERR"

func renderSpanRow(b *strings.Builder, row timeline.PositionedSpan, width, maxDurErrLen int) {
	barWidth := defaultBarWidth

	// Indent by nesting depth
	prefix := " " + strings.Repeat("  ", row.Depth)

	label := row.ServiceName + "." + row.SpanName

	suffix := ""
	if row.HasError() {
		suffix = errSuffix
	}

	durStr := timeline.FormatElapsed(row.DurationMillis())

	// Layout: prefix + label + " [" + bar + "] " + durErr
	fixedCols := len(prefix) + 2 + barWidth + 2 + maxDurErrLen
	labelBudget := width - fixedCols
	if labelBudget < 8 {
		labelBudget = 8
	}
	if len(label) > labelBudget {
		label = label[:labelBudget-1] + "…"
	}
	paddedLabel := label + strings.Repeat(" ", labelBudget-len(label))

	bar := buildBar(row.StartOffsetPct, row.WidthPct, barWidth)

	durErr := durStr + suffix
	paddedDurErr := durErr + strings.Repeat(" ", maxDurErrLen-len(durErr))

	fmt.Fprintf(b, "%s%s [%s] %s\n", prefix, paddedLabel, bar, paddedDurErr)
}

// buildBar maps percentage offsets onto a fixed number of text columns.
// The width floor in the layout guarantees at least one active column.
func buildBar(startPct, widthPct float64, barWidth int) string {
	startCol := int(startPct / 100 * float64(barWidth))
	barLen := int(math.Round(widthPct / 100 * float64(barWidth)))
	if barLen < 1 {
		barLen = 1
	}
	if startCol > barWidth-1 {
		startCol = barWidth - 1
	}
	if startCol+barLen > barWidth {
		barLen = barWidth - startCol
	}

	bar := make([]byte, barWidth)
	for i := range bar {
		if i >= startCol && i < startCol+barLen {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return string(bar)
}

// writeAxis prints the tick labels for the trace's time window.
func writeAxis(b *strings.Builder, w timeline.Window) {
	ticks := timeline.Ticks(w.TotalDurationMs, timeline.DefaultTickIntervals)
	labels := make([]string, len(ticks))
	for i, tick := range ticks {
		labels[i] = tick.Label
	}
	fmt.Fprintf(b, "  scale: %s\n", strings.Join(labels, " · "))
}

func earliestStart(spans []timeline.Span) uint64 {
	if len(spans) == 0 {
		return 0
	}
	min := spans[0].StartNano
	for _, s := range spans[1:] {
		if s.StartNano < min {
			min = s.StartNano
		}
	}
	return min
}

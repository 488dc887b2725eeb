package timeline

import "sort"

const nanosPerMilli = 1e6

// minWidthPct keeps every span bar visible and clickable regardless of its
// true duration relative to the window.
const minWidthPct = 1.0

// Build computes the timeline layout for a set of spans. It is a pure
// function of the span set: input order does not affect the result beyond
// the defined output sort (start ascending, then depth, then span ID).
func Build(spans []Span) Layout {
	if len(spans) == 0 {
		return Layout{}
	}

	depths := resolveDepths(spans)

	minMs := startMillis(spans[0])
	maxMs := minMs
	for _, s := range spans {
		if start := startMillis(s); start < minMs {
			minMs = start
		}
		if end := endMillis(s); end > maxMs {
			maxMs = end
		}
	}

	total := maxMs - minMs
	degenerate := total == 0
	if degenerate {
		// Zero-width window: every span fills the full width. Total of 1
		// keeps downstream division safe.
		total = 1
	}

	out := make([]PositionedSpan, 0, len(spans))
	for _, s := range spans {
		ps := PositionedSpan{Span: s, Depth: depths[s.SpanID]}
		if degenerate {
			ps.StartOffsetPct = 0
			ps.WidthPct = 100
		} else {
			start := startMillis(s)
			end := endMillis(s)
			ps.StartOffsetPct = (start - minMs) / total * 100
			ps.WidthPct = (end - start) / total * 100
			if ps.WidthPct < minWidthPct {
				ps.WidthPct = minWidthPct
			}
		}
		out = append(out, ps)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartNano != out[j].StartNano {
			return out[i].StartNano < out[j].StartNano
		}
		// Same start instant: parents stack above their children.
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].SpanID < out[j].SpanID
	})

	return Layout{
		Spans: out,
		Window: Window{
			MinTimeMs:       minMs,
			MaxTimeMs:       maxMs,
			TotalDurationMs: total,
		},
	}
}

func startMillis(s Span) float64 {
	return float64(s.StartNano) / nanosPerMilli
}

// endMillis derives the span end, falling back to start+duration and then
// to a zero-width interval. Ends reported before the start are clamped to
// the start to tolerate bad data.
func endMillis(s Span) float64 {
	start := startMillis(s)
	switch {
	case s.EndNano != 0:
		end := float64(s.EndNano) / nanosPerMilli
		if end < start {
			return start
		}
		return end
	case s.DurationNano != 0:
		return start + float64(s.DurationNano)/nanosPerMilli
	default:
		return start
	}
}

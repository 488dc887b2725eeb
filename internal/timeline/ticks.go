package timeline

import "fmt"

// DefaultTickIntervals divides the axis into five segments, yielding six
// tick marks at 0%, 20%, 40%, 60%, 80%, and 100%.
const DefaultTickIntervals = 5

// Tick is one axis label positioned along the timeline header.
type Tick struct {
	PercentPosition float64
	Label           string
}

// Ticks produces evenly spaced axis labels for a window of the given width.
// Each label shows elapsed time from the window start. Pass intervals <= 0
// for the default.
func Ticks(totalDurationMs float64, intervals int) []Tick {
	if intervals <= 0 {
		intervals = DefaultTickIntervals
	}

	ticks := make([]Tick, 0, intervals+1)
	for i := 0; i <= intervals; i++ {
		frac := float64(i) / float64(intervals)
		ticks = append(ticks, Tick{
			PercentPosition: frac * 100,
			Label:           FormatElapsed(totalDurationMs * frac),
		})
	}
	return ticks
}

// FormatElapsed renders an elapsed time in the adaptive style common to
// tracing UIs: whole microseconds below 1ms, whole milliseconds below 1s,
// seconds with two decimals from 1s up.
func FormatElapsed(ms float64) string {
	switch {
	case ms == 0:
		return "0ms"
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 1000:
		return fmt.Sprintf("%.0fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

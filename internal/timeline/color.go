package timeline

// ErrorColor overrides depth-based coloring for spans with error status.
const ErrorColor = "red"

// depthPalette rotates a small set of hues so sibling nesting levels stay
// visually distinguishable without needing a unique color per depth.
var depthPalette = []string{"blue", "teal", "amber", "violet", "rose"}

// ColorClass returns the color class for a span bar. Coloring is purely
// cosmetic and has no effect on layout geometry.
func ColorClass(depth int, hasError bool) string {
	if hasError {
		return ErrorColor
	}
	if depth < 0 {
		depth = 0
	}
	return depthPalette[depth%len(depthPalette)]
}

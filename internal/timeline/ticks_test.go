package timeline

import "testing"

func TestTicks_Positions(t *testing.T) {
	ticks := Ticks(2500, 5)
	if len(ticks) != 6 {
		t.Fatalf("expected 6 ticks, got %d", len(ticks))
	}

	wantPct := []float64{0, 20, 40, 60, 80, 100}
	wantLabel := []string{"0ms", "500ms", "1.00s", "1.50s", "2.00s", "2.50s"}
	for i, tick := range ticks {
		if !closeTo(tick.PercentPosition, wantPct[i]) {
			t.Errorf("tick %d position = %f, want %f", i, tick.PercentPosition, wantPct[i])
		}
		if tick.Label != wantLabel[i] {
			t.Errorf("tick %d label = %q, want %q", i, tick.Label, wantLabel[i])
		}
	}
}

func TestTicks_DefaultIntervals(t *testing.T) {
	ticks := Ticks(100, 0)
	if len(ticks) != DefaultTickIntervals+1 {
		t.Errorf("expected %d ticks for default intervals, got %d", DefaultTickIntervals+1, len(ticks))
	}
}

func TestTicks_SubMillisecondWindow(t *testing.T) {
	ticks := Ticks(0.5, 5)
	// 0.1ms steps render as whole microseconds
	if ticks[1].Label != "100µs" {
		t.Errorf("tick 1 label = %q, want %q", ticks[1].Label, "100µs")
	}
	if ticks[5].Label != "500µs" {
		t.Errorf("tick 5 label = %q, want %q", ticks[5].Label, "500µs")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		ms       float64
		expected string
	}{
		{0, "0ms"},
		{0.5, "500µs"},
		{0.0042, "4µs"},
		{1, "1ms"},
		{500, "500ms"},
		{999, "999ms"},
		{1000, "1.00s"},
		{1500, "1.50s"},
		{2500, "2.50s"},
		{61_000, "61.00s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.ms); got != tt.expected {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.ms, got, tt.expected)
		}
	}
}

package timeline

import (
	"math"
	"testing"
)

func TestSelectTimeRangeClamping(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		wantStart  float64
		wantEnd    float64
	}{
		{"normal selection", 5, 20, 5, 20},
		{"below minimum span", 5, 5.05, 5, 5.1},
		{"zero span", 5, 5, 5, 5.1},
		{"inverted range swapped", 20, 5, 5, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Viewport
			v.SelectTimeRange(tt.start, tt.end)

			if !v.Zoomed() {
				t.Fatal("expected Zoomed after time selection")
			}
			start, end := v.TimeRange(0, 60)
			if math.Abs(start-tt.wantStart) > 1e-9 || math.Abs(end-tt.wantEnd) > 1e-9 {
				t.Fatalf("TimeRange = [%g, %g], want [%g, %g]", start, end, tt.wantStart, tt.wantEnd)
			}
			if end <= start {
				t.Fatal("selection produced an empty or inverted range")
			}
		})
	}
}

func TestSelectPitchRange(t *testing.T) {
	var v Viewport

	// sub-semitone drag is interaction noise: no-op, still unzoomed
	v.SelectPitchRange(60, 60)
	if v.Zoomed() {
		t.Fatal("degenerate selection must be a no-op")
	}

	v.SelectPitchRange(60, 65)
	if !v.Zoomed() {
		t.Fatal("expected Zoomed after pitch selection")
	}
	lo, hi := v.PitchRange(nil)
	if hi-lo < MinPitchSpan {
		t.Fatalf("pitch span %d < minimum %d", hi-lo, MinPitchSpan)
	}
	if lo > 60 || hi < 65 {
		t.Fatalf("pitch range [%d, %d] does not cover selection [60, 65]", lo, hi)
	}

	// inverted selection is swapped, not rejected
	var w Viewport
	w.SelectPitchRange(70, 50)
	lo, hi = w.PitchRange(nil)
	if lo != 50 || hi != 70 {
		t.Fatalf("inverted selection = [%d, %d], want [50, 70]", lo, hi)
	}
}

func TestResetReturnsToUnzoomed(t *testing.T) {
	var v Viewport
	v.SelectTimeRange(2, 9)
	v.SelectPitchRange(48, 72)
	v.Reset()

	if v.Zoomed() {
		t.Fatal("expected Unzoomed after Reset")
	}
	if v != (Viewport{}) {
		t.Fatalf("Reset left residual state: %+v", v)
	}

	// auto-fit recomputes from the full extent again
	start, end := v.TimeRange(0, 42.5)
	if start != 0 || end != 42.5 {
		t.Fatalf("TimeRange after Reset = [%g, %g], want full extent", start, end)
	}

	events := []Event{eventWithMIDI(t, 0, 60), eventWithMIDI(t, 1, 62)}
	lo, hi := v.PitchRange(events)
	wantLo, wantHi, _ := AutoFitPitchRange(events)
	if lo != wantLo || hi != wantHi {
		t.Fatalf("PitchRange after Reset = [%d, %d], want auto-fit [%d, %d]", lo, hi, wantLo, wantHi)
	}
}

func TestPitchRangeFallbackWithoutEvents(t *testing.T) {
	var v Viewport
	lo, hi := v.PitchRange(nil)
	if hi-lo < MinPitchSpan {
		t.Fatalf("fallback span %d < minimum %d", hi-lo, MinPitchSpan)
	}
}

package timeline

// MinTimeSpan is the smallest selectable time window in seconds
const MinTimeSpan = 0.1

// minPitchSelection is the smallest drag that counts as a deliberate pitch
// selection; anything under a semitone is treated as an accidental click.
const minPitchSelection = 1

// Viewport is the currently selected time and note-range window over a
// timeline, independent of any renderer. It is a small value type with
// pure transition methods; all bound-setting operations clamp defensively
// instead of erroring, since this is user-interactive state.
//
// A viewport is either Unzoomed (full data extent) or Zoomed with a time
// range and an optional pitch range. It never outlives its timeline.
type Viewport struct {
	hasTime   bool
	timeStart float64
	timeEnd   float64
	hasPitch  bool
	minMIDI   int
	maxMIDI   int
}

// Zoomed reports whether any selection is active
func (v *Viewport) Zoomed() bool {
	return v.hasTime || v.hasPitch
}

// SelectTimeRange zooms to [start, end]. An inverted range is swapped and
// the span is clamped to at least MinTimeSpan by extending the end.
func (v *Viewport) SelectTimeRange(start, end float64) {
	if end < start {
		start, end = end, start
	}
	if end < start+MinTimeSpan {
		end = start + MinTimeSpan
	}

	v.hasTime = true
	v.timeStart = start
	v.timeEnd = end
}

// SelectPitchRange zooms to a MIDI range, typically translated from pixel
// coordinates by the renderer. Selections under a semitone are routine
// interaction noise and are ignored; accepted selections are expanded to
// at least MinPitchSpan semitones.
func (v *Viewport) SelectPitchRange(minMIDI, maxMIDI int) {
	if maxMIDI < minMIDI {
		minMIDI, maxMIDI = maxMIDI, minMIDI
	}
	if maxMIDI-minMIDI < minPitchSelection {
		return
	}

	v.minMIDI, v.maxMIDI, _ = expandPitchRange(minMIDI, maxMIDI)
	v.hasPitch = true
}

// Reset discards both time and pitch bounds, returning to Unzoomed
func (v *Viewport) Reset() {
	*v = Viewport{}
}

// TimeRange resolves the visible time window: the selection when one is
// active, otherwise the full extent supplied by the caller.
func (v *Viewport) TimeRange(fullStart, fullEnd float64) (start, end float64) {
	if v.hasTime {
		return v.timeStart, v.timeEnd
	}
	return fullStart, fullEnd
}

// PitchRange resolves the visible MIDI window: the selection when one is
// active, otherwise an auto-fit over the visible events. With no events it
// falls back to the octave around A4.
func (v *Viewport) PitchRange(visible []Event) (minMIDI, maxMIDI int) {
	if v.hasPitch {
		return v.minMIDI, v.maxMIDI
	}
	if lo, hi, ok := AutoFitPitchRange(visible); ok {
		return lo, hi
	}
	return 63, 75
}

// Package timeline maintains the time-ordered series of accepted pitch
// events produced by a capture or file-analysis session, and the spatial
// and range queries a visualizer needs on top of it.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cyrus07424/hummingMelodyTranscriber/logging"
	"github.com/cyrus07424/hummingMelodyTranscriber/pitch"
)

// Accepted frequency band for pitch events. Voiced estimates outside the
// band are discarded before they reach the timeline.
const (
	MinFrequency = 80.0
	MaxFrequency = 2000.0
)

// SegmentGap is the silence between consecutive events beyond which they
// belong to separate musical phrases. Fixed, not user-configurable.
const SegmentGap = 0.2

// MinPitchSpan is the minimum rendered pitch range in semitones
const MinPitchSpan = 12

// ErrOutOfOrder reports an append whose time precedes the last event. It
// signals a frame-source or clock bug upstream; events are never silently
// reordered.
var ErrOutOfOrder = errors.New("event out of order")

// Event is one accepted pitch observation. Events are immutable once
// created; Note and MIDI are always derived from Frequency.
type Event struct {
	Time      float64 `json:"time"`      // seconds from stream origin
	Frequency float64 `json:"frequency"` // Hz
	MIDI      int     `json:"midi"`
	Note      string  `json:"note"`
}

// NewEvent derives a pitch event from a voiced frequency estimate. It
// returns ok == false when the frequency falls outside the accepted band.
func NewEvent(time, frequency float64) (Event, bool) {
	if frequency < MinFrequency || frequency > MaxFrequency {
		return Event{}, false
	}

	note, ok := pitch.NoteForFrequency(frequency)
	if !ok {
		return Event{}, false
	}

	return Event{
		Time:      time,
		Frequency: frequency,
		MIDI:      note.MIDI,
		Note:      note.Name,
	}, true
}

// Timeline is an append-only, time-indexed sequence of pitch events. It is
// owned exclusively by the session that produced it and is not safe for
// concurrent use; the session layer serializes access.
type Timeline struct {
	events []Event
	logger logging.Logger
}

// New creates an empty timeline
func New() *Timeline {
	return &Timeline{
		logger: logging.WithFields(logging.Fields{"component": "timeline"}),
	}
}

// Append adds an event at the end of the timeline. An event whose time
// precedes the last appended event is rejected with ErrOutOfOrder and the
// timeline is left untouched.
func (t *Timeline) Append(ev Event) error {
	if n := len(t.events); n > 0 && ev.Time < t.events[n-1].Time {
		t.logger.Warn("rejecting out-of-order event", logging.Fields{
			"time":      ev.Time,
			"last_time": t.events[n-1].Time,
		})
		return fmt.Errorf("%w: time %.4f < last %.4f", ErrOutOfOrder, ev.Time, t.events[len(t.events)-1].Time)
	}

	t.events = append(t.events, ev)
	return nil
}

// Len returns the number of events
func (t *Timeline) Len() int {
	return len(t.events)
}

// Events returns the full event sequence. The slice is shared with the
// timeline; callers must not mutate it.
func (t *Timeline) Events() []Event {
	return t.events
}

// Span returns the time extent of the timeline
func (t *Timeline) Span() (start, end float64, ok bool) {
	if len(t.events) == 0 {
		return 0, 0, false
	}
	return t.events[0].Time, t.events[len(t.events)-1].Time, true
}

// Range returns the maximal contiguous run of events with
// start <= Time <= end. The result shares storage with the timeline.
func (t *Timeline) Range(start, end float64) []Event {
	lo := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time >= start
	})
	hi := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time > end
	})
	if lo >= hi {
		return nil
	}
	return t.events[lo:hi]
}

// Nearest returns the event among the given (already range-filtered) events
// that minimizes Euclidean distance to (x, y) under the caller-supplied
// projection from (time, midi) to view coordinates. Ties go to the first
// event in iteration order. ok is false when no event lies within maxDist.
func Nearest(events []Event, x, y, maxDist float64, project func(time float64, midi int) (float64, float64)) (Event, bool) {
	best := Event{}
	bestDist := math.Inf(1)

	for _, ev := range events {
		px, py := project(ev.Time, ev.MIDI)
		d := math.Hypot(px-x, py-y)
		if d < bestDist {
			best = ev
			bestDist = d
		}
	}

	if bestDist > maxDist {
		return Event{}, false
	}
	return best, true
}

// AutoFitPitchRange returns the MIDI range spanning the events, expanded to
// at least MinPitchSpan semitones so a degenerate single-note recording
// still renders with a legible vertical scale. The deficit is split between
// top and bottom, the odd semitone extending downward.
func AutoFitPitchRange(events []Event) (minMIDI, maxMIDI int, ok bool) {
	if len(events) == 0 {
		return 0, 0, false
	}

	minMIDI, maxMIDI = events[0].MIDI, events[0].MIDI
	for _, ev := range events[1:] {
		if ev.MIDI < minMIDI {
			minMIDI = ev.MIDI
		}
		if ev.MIDI > maxMIDI {
			maxMIDI = ev.MIDI
		}
	}

	return expandPitchRange(minMIDI, maxMIDI)
}

// expandPitchRange widens [minMIDI, maxMIDI] to at least MinPitchSpan
// semitones, biased to extend downward first.
func expandPitchRange(minMIDI, maxMIDI int) (int, int, bool) {
	if deficit := MinPitchSpan - (maxMIDI - minMIDI); deficit > 0 {
		down := (deficit + 1) / 2
		minMIDI -= down
		maxMIDI += deficit - down
	}
	return minMIDI, maxMIDI, true
}

// Segments splits a run of events into musical phrases: consecutive events
// stay connected iff the gap between them is below SegmentGap.
func Segments(events []Event) [][]Event {
	if len(events) == 0 {
		return nil
	}

	var segments [][]Event
	start := 0
	for i := 1; i < len(events); i++ {
		if events[i].Time-events[i-1].Time >= SegmentGap {
			segments = append(segments, events[start:i])
			start = i
		}
	}
	return append(segments, events[start:])
}

// GridLines returns time-axis tick positions for [start, end] with adaptive
// spacing: 10 s ticks beyond a 30 s span, 5 s beyond 10 s, otherwise 1 s.
func GridLines(start, end float64) []float64 {
	if end <= start {
		return nil
	}

	span := end - start
	var interval float64
	switch {
	case span > 30:
		interval = 10
	case span > 10:
		interval = 5
	default:
		interval = 1
	}

	var ticks []float64
	for tick := math.Ceil(start/interval) * interval; tick <= end+1e-9; tick += interval {
		ticks = append(ticks, tick)
	}
	return ticks
}

// Stats summarizes the pitch content of a run of events
type Stats struct {
	MeanFrequency float64 `json:"mean_frequency"`
	MedianMIDI    int     `json:"median_midi"`
	MinMIDI       int     `json:"min_midi"`
	MaxMIDI       int     `json:"max_midi"`
	Duration      float64 `json:"duration"`
}

// SegmentStats computes summary statistics over a run of events, typically
// one phrase from Segments.
func SegmentStats(events []Event) (Stats, bool) {
	if len(events) == 0 {
		return Stats{}, false
	}

	freqs := make([]float64, len(events))
	midis := make([]float64, len(events))
	for i, ev := range events {
		freqs[i] = ev.Frequency
		midis[i] = float64(ev.MIDI)
	}
	sort.Float64s(midis)

	s := Stats{
		MeanFrequency: stat.Mean(freqs, nil),
		MedianMIDI:    int(math.Round(stat.Quantile(0.5, stat.Empirical, midis, nil))),
		MinMIDI:       int(midis[0]),
		MaxMIDI:       int(midis[len(midis)-1]),
		Duration:      events[len(events)-1].Time - events[0].Time,
	}
	return s, true
}

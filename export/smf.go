// Package export turns a pitch timeline into a monophonic note list and
// writes it as a Standard MIDI File.
package export

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cyrus07424/hummingMelodyTranscriber/logging"
	"github.com/cyrus07424/hummingMelodyTranscriber/timeline"
)

// minNoteDuration is the floor for the final note of a phrase, which has no
// following onset to bound it and may otherwise have zero extent.
const minNoteDuration = 0.05

// NoteEvent is one held note of the transcribed melody
type NoteEvent struct {
	Start    float64 `json:"start"`    // seconds
	Duration float64 `json:"duration"` // seconds
	MIDI     int     `json:"midi"`
}

// Notes flattens timeline events into held notes: events are split into
// phrases at the segment gap, and consecutive events with the same MIDI
// number inside a phrase merge into one note. A note's extent runs from
// its first event to the start of the next note in the phrase, so held
// notes are contiguous within a phrase.
func Notes(events []timeline.Event) []NoteEvent {
	var notes []NoteEvent

	for _, segment := range timeline.Segments(events) {
		start := 0
		for i := 1; i <= len(segment); i++ {
			if i < len(segment) && segment[i].MIDI == segment[start].MIDI {
				continue
			}

			end := segment[i-1].Time
			if i < len(segment) {
				end = segment[i].Time
			}
			duration := end - segment[start].Time
			// mid-phrase notes stay contiguous with their successor;
			// flooring them would push the note past the next onset
			if i == len(segment) && duration < minNoteDuration {
				duration = minNoteDuration
			}

			notes = append(notes, NoteEvent{
				Start:    segment[start].Time,
				Duration: duration,
				MIDI:     segment[start].MIDI,
			})
			start = i
		}
	}

	return notes
}

// WriteSMF writes the notes as a single-track Standard MIDI File at the
// given tempo. Notes must be sorted by start time and non-overlapping,
// which Notes guarantees for a monophonic timeline.
func WriteSMF(path string, notes []NoteEvent, bpm float64) error {
	if len(notes) == 0 {
		return fmt.Errorf("no notes to export")
	}
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive, got %g", bpm)
	}

	ticks := smf.MetricTicks(960)
	s := smf.New()
	s.TimeFormat = ticks

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("transcribed melody"))
	track.Add(0, smf.MetaTempo(bpm))

	cursor := 0.0
	for _, note := range notes {
		if note.MIDI < 0 || note.MIDI > 127 {
			return fmt.Errorf("midi number %d out of range", note.MIDI)
		}

		onDelta := ticks.Ticks(bpm, seconds(note.Start-cursor))
		track.Add(onDelta, midi.NoteOn(0, uint8(note.MIDI), 100))
		track.Add(ticks.Ticks(bpm, seconds(note.Duration)), midi.NoteOff(0, uint8(note.MIDI)))
		cursor = note.Start + note.Duration
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Info("wrote MIDI file", logging.Fields{
		"path":  path,
		"notes": len(notes),
		"bpm":   bpm,
	})
	return nil
}

func seconds(s float64) time.Duration {
	if s < 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

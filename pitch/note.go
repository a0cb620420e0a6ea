package pitch

import (
	"fmt"
	"math"
)

// MinAudibleFrequency is the floor below which frequencies map to no note,
// avoiding nonsensical extreme octaves from numerical noise.
const MinAudibleFrequency = 20.0

// referenceFrequency and referenceMIDI fix equal-temperament tuning:
// A4 = 440 Hz = MIDI 69.
const (
	referenceFrequency = 440.0
	referenceMIDI      = 69
)

// noteNames lists the 12 pitch classes in chromatic order starting at C
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a musical note derived deterministically from a frequency
type Note struct {
	Name  string  `json:"name"`  // pitch class + octave, e.g. "A4"
	MIDI  int     `json:"midi"`  // MIDI note number, 69 = A4
	Cents float64 `json:"cents"` // deviation from the tempered pitch, -50..+50
}

// NoteForFrequency maps a frequency in Hz to the nearest equal-temperament
// note. Frequencies at or below the audible floor yield ok == false.
func NoteForFrequency(frequency float64) (Note, bool) {
	if frequency < MinAudibleFrequency {
		return Note{}, false
	}

	semitones := 12 * math.Log2(frequency/referenceFrequency)
	midi := int(math.Round(semitones)) + referenceMIDI
	cents := 100 * (semitones - float64(midi-referenceMIDI))

	return Note{
		Name:  noteName(midi),
		MIDI:  midi,
		Cents: cents,
	}, true
}

// FrequencyForMIDI returns the tempered frequency of a MIDI note number
func FrequencyForMIDI(midi int) float64 {
	return referenceFrequency * math.Pow(2, float64(midi-referenceMIDI)/12)
}

// noteName renders a MIDI number as pitch class plus octave, C4 = MIDI 60
func noteName(midi int) string {
	pc := midi % 12
	octave := midi/12 - 1
	if pc < 0 {
		pc += 12
		octave--
	}
	return fmt.Sprintf("%s%d", noteNames[pc], octave)
}

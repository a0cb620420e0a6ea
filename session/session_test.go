package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cyrus07424/hummingMelodyTranscriber/pitch"
)

func sinewave(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = 0.6 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return pcm
}

func TestAnalyzeBufferTranscribesSine(t *testing.T) {
	cfg := DefaultConfig(44100)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := sinewave(440, 44100, 2.0)
	if err := s.AnalyzeBuffer(context.Background(), pcm, 44100); err != nil {
		t.Fatalf("AnalyzeBuffer: %v", err)
	}

	events := s.Timeline().Events()
	wantFrames := (len(pcm)-cfg.FrameSize)/cfg.HopSize + 1
	if len(events) != wantFrames {
		t.Fatalf("got %d events, want one per frame (%d)", len(events), wantFrames)
	}

	hop := float64(cfg.HopSize) / float64(cfg.SampleRate)
	for i, ev := range events {
		if ev.Note != "A4" || ev.MIDI != 69 {
			t.Fatalf("event %d = %s/%d, want A4/69", i, ev.Note, ev.MIDI)
		}
		if math.Abs(ev.Time-float64(i)*hop) > 1e-9 {
			t.Fatalf("event %d time = %g, want %g", i, ev.Time, float64(i)*hop)
		}
	}
}

func TestAnalyzeBufferSilenceProducesNoEvents(t *testing.T) {
	s, err := New(DefaultConfig(44100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.AnalyzeBuffer(context.Background(), make([]float64, 44100), 44100); err != nil {
		t.Fatalf("AnalyzeBuffer: %v", err)
	}
	if got := s.Timeline().Len(); got != 0 {
		t.Fatalf("silence produced %d events, want 0", got)
	}
}

func TestAnalyzeBufferResetsTimeline(t *testing.T) {
	s, err := New(DefaultConfig(44100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := sinewave(440, 44100, 1.0)
	if err := s.AnalyzeBuffer(context.Background(), pcm, 44100); err != nil {
		t.Fatal(err)
	}
	first := s.Timeline().Len()

	if err := s.AnalyzeBuffer(context.Background(), pcm, 44100); err != nil {
		t.Fatal(err)
	}
	if got := s.Timeline().Len(); got != first {
		t.Fatalf("second analysis has %d events, want timeline reset to %d", got, first)
	}
}

func TestAnalyzeBufferSampleRateMismatch(t *testing.T) {
	s, err := New(DefaultConfig(44100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = s.AnalyzeBuffer(context.Background(), make([]float64, 48000), 48000)
	if !errors.Is(err, pitch.ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestAnalyzeBufferCancellation(t *testing.T) {
	s, err := New(DefaultConfig(44100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.AnalyzeBuffer(ctx, sinewave(440, 44100, 2.0), 44100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := s.Timeline().Len(); got != 0 {
		t.Fatalf("cancelled analysis appended %d events, want 0", got)
	}
}

func TestProcessChunkLiveAppends(t *testing.T) {
	cfg := DefaultConfig(44100)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := sinewave(220, 44100, 1.0)
	for start := 0; start+1024 <= len(pcm); start += 1024 {
		if err := s.ProcessChunk(pcm[start : start+1024]); err != nil {
			t.Fatalf("ProcessChunk: %v", err)
		}
	}

	events := s.Snapshot()
	if len(events) == 0 {
		t.Fatal("live analysis produced no events")
	}

	last := math.Inf(-1)
	for i, ev := range events {
		if ev.Note != "A3" {
			t.Fatalf("event %d = %s, want A3", i, ev.Note)
		}
		if ev.Time < last {
			t.Fatalf("event times not monotonic at %d: %g after %g", i, ev.Time, last)
		}
		last = ev.Time
	}

	if lvl := s.Level(); lvl.RMS <= 0 || lvl.DB <= -100 {
		t.Fatalf("level = %+v, want audible measurement", lvl)
	}
}

func TestQueriesSafeDuringCapture(t *testing.T) {
	cfg := DefaultConfig(44100)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := sinewave(220, 44100, 1.0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for start := 0; start+1024 <= len(pcm); start += 1024 {
			if err := s.ProcessChunk(pcm[start : start+1024]); err != nil {
				t.Errorf("ProcessChunk: %v", err)
				return
			}
		}
	}()

	// poll the way a view layer does, concurrently with the producer
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}

		if start, end, ok := s.Span(); ok {
			if end < start {
				t.Fatalf("span inverted: [%g, %g]", start, end)
			}
			visible := s.EventsBetween(start, end)
			for i := 1; i < len(visible); i++ {
				if visible[i].Time < visible[i-1].Time {
					t.Fatalf("EventsBetween not monotonic at %d", i)
				}
			}
		}
		_ = s.Snapshot()
		_ = s.Level()
	}

	events := s.Snapshot()
	if len(events) == 0 {
		t.Fatal("capture produced no events")
	}

	start, end, ok := s.Span()
	if !ok || start != events[0].Time || end != events[len(events)-1].Time {
		t.Fatalf("Span() = %g, %g, %v, want %g, %g", start, end, ok,
			events[0].Time, events[len(events)-1].Time)
	}
	if got := s.EventsBetween(start, end); len(got) != len(events) {
		t.Fatalf("EventsBetween over the full span returned %d events, want %d", len(got), len(events))
	}
}

func TestEventsBetweenReturnsCopy(t *testing.T) {
	s, err := New(DefaultConfig(44100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.AnalyzeBuffer(context.Background(), sinewave(440, 44100, 1.0), 44100); err != nil {
		t.Fatal(err)
	}

	start, end, _ := s.Span()
	window := s.EventsBetween(start, end)
	if len(window) == 0 {
		t.Fatal("empty window over the full span")
	}
	window[0].MIDI = -1

	if got := s.Timeline().Events()[0].MIDI; got == -1 {
		t.Fatal("EventsBetween shares storage with the timeline")
	}
}

func TestProcessChunkSilenceLevel(t *testing.T) {
	s, err := New(DefaultConfig(44100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.ProcessChunk(make([]float64, 1024)); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if lvl := s.Level(); lvl.RMS != 0 || lvl.DB != -100 {
		t.Fatalf("level = %+v, want silence floor", lvl)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"hop above frame", func(c *Config) { c.HopSize = c.FrameSize + 1 }, true},
		{"zero hop", func(c *Config) { c.HopSize = 0 }, true},
		{"threshold out of range", func(c *Config) { c.Threshold = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(44100)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

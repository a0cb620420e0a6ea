// Package session ties the frame source, estimator and timeline together
// into one exclusively-owned capture or file-analysis pipeline. A session
// is constructed fresh per recording and torn down with it; at most one
// producer writes to its timeline.
package session

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cyrus07424/hummingMelodyTranscriber/logging"
	"github.com/cyrus07424/hummingMelodyTranscriber/pitch"
	"github.com/cyrus07424/hummingMelodyTranscriber/timeline"
)

// Config holds the fixed analysis parameters of a session
type Config struct {
	SampleRate int     `json:"sample_rate"`
	FrameSize  int     `json:"frame_size"`
	HopSize    int     `json:"hop_size"`
	Threshold  float64 `json:"threshold"`
}

// DefaultConfig returns the standard analysis configuration: 4096-sample
// frames with a 1024-sample hop (~23 ms update interval at 44.1 kHz) and
// the YIN threshold of 0.1.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate: sampleRate,
		FrameSize:  4096,
		HopSize:    1024,
		Threshold:  0.1,
	}
}

// Validate checks the configuration for internal consistency
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive, got %d", c.FrameSize)
	}
	if c.HopSize <= 0 || c.HopSize > c.FrameSize {
		return fmt.Errorf("hop size (%d) must be in (0, frame size %d]", c.HopSize, c.FrameSize)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %g", c.Threshold)
	}
	return nil
}

// Level is the most recent input level measurement
type Level struct {
	RMS float64 `json:"rms"`
	DB  float64 `json:"db"` // dBFS, -100 floor for silence
}

// Session owns one frame source and one timeline and runs the per-frame
// pipeline: frame -> estimate -> note map -> band filter -> append.
//
// The timeline itself is single-owner state; Session serializes its own
// producer against concurrent readers (e.g. a UI), which is the only
// sharing the model permits.
type Session struct {
	cfg       Config
	estimator *pitch.Estimator
	logger    logging.Logger

	mu       sync.RWMutex
	timeline *timeline.Timeline
	framer   *pitch.StreamFramer
	level    Level
	dropped  int64
}

// New creates a session for live capture or batch analysis
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	framer, err := pitch.NewStreamFramer(cfg.SampleRate, cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg: cfg,
		estimator: pitch.NewEstimator(pitch.Params{
			SampleRate: cfg.SampleRate,
			FrameSize:  cfg.FrameSize,
			Threshold:  cfg.Threshold,
		}),
		timeline: timeline.New(),
		framer:   framer,
		level:    Level{DB: -100},
		logger:   logging.WithFields(logging.Fields{"component": "session"}),
	}, nil
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.cfg
}

// AnalyzeBuffer runs the batch path over a fully decoded mono buffer,
// replacing any previous timeline content. It checks ctx between frames so
// large files can be cancelled without blocking a host UI thread; no
// partial event is ever appended.
func (s *Session) AnalyzeBuffer(ctx context.Context, pcm []float64, sampleRate int) error {
	if sampleRate != s.cfg.SampleRate {
		return fmt.Errorf("%w: buffer sample rate %d, session configured for %d",
			pitch.ErrInvalidFrame, sampleRate, s.cfg.SampleRate)
	}

	frames, err := pitch.FrameBuffer(pcm, sampleRate, s.cfg.FrameSize, s.cfg.HopSize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.timeline = timeline.New()
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("analyzing buffer", logging.Fields{
		"samples": len(pcm),
		"frames":  len(frames),
	})

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.processFrame(frame); err != nil {
			return err
		}
	}

	return nil
}

// ProcessChunk runs the live path for one capture chunk: level metering,
// framing at the hop interval, then the per-frame pipeline. The capture
// adapter drops chunks when the session cannot keep up, so backlog stays
// bounded; ProcessChunk itself never queues.
func (s *Session) ProcessChunk(chunk []float64) error {
	if len(chunk) == 0 {
		return nil
	}

	rms, db := measureLevel(chunk)

	s.mu.Lock()
	s.level = Level{RMS: rms, DB: db}
	frames := s.framer.Push(chunk)
	s.mu.Unlock()

	for _, frame := range frames {
		if err := s.processFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

// processFrame estimates one frame and appends the resulting event, if any.
// Unvoiced frames and out-of-band estimates are absorbed here; contract
// violations propagate.
func (s *Session) processFrame(frame pitch.Frame) error {
	est, err := s.estimator.Estimate(frame)
	if err != nil {
		return err
	}
	if !est.Voiced {
		return nil
	}

	ev, ok := timeline.NewEvent(frame.Time, est.Frequency)
	if !ok {
		s.logger.Debug("estimate outside accepted band", logging.Fields{
			"frequency": est.Frequency,
			"time":      frame.Time,
		})
		return nil
	}

	s.mu.Lock()
	err = s.timeline.Append(ev)
	s.mu.Unlock()
	return err
}

// Timeline returns the session's timeline. The pointer stays valid until
// the next AnalyzeBuffer call resets it. The timeline itself is unlocked
// state: call this only once the producer has stopped. Live readers go
// through Span, EventsBetween or Snapshot instead.
func (s *Session) Timeline() *timeline.Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline
}

// Span returns the timeline's time extent under the session lock, safe to
// call while the producer is running.
func (s *Session) Span() (start, end float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Span()
}

// EventsBetween returns a copy of the events with start <= Time <= end,
// safe to hold while the producer keeps appending.
func (s *Session) EventsBetween(start, end float64) []timeline.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := s.timeline.Range(start, end)
	if len(visible) == 0 {
		return nil
	}
	out := make([]timeline.Event, len(visible))
	copy(out, visible)
	return out
}

// Snapshot returns a copy of the current events, safe to hold while the
// producer keeps appending.
func (s *Session) Snapshot() []timeline.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.timeline.Events()
	out := make([]timeline.Event, len(events))
	copy(out, events)
	return out
}

// Level returns the most recent input level measurement
func (s *Session) Level() Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// measureLevel computes RMS and dBFS of a chunk
func measureLevel(chunk []float64) (rms, db float64) {
	sumSquares := 0.0
	for _, v := range chunk {
		sumSquares += v * v
	}
	rms = math.Sqrt(sumSquares / float64(len(chunk)))

	db = -100.0
	if rms > 1e-7 {
		db = 20 * math.Log10(rms)
		if db < -100 {
			db = -100
		}
	}
	return rms, db
}

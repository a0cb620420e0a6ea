// Package capture provides the reference live audio input: a PortAudio
// microphone stream delivering fixed-size mono chunks to the analysis
// session. Echo cancellation, noise suppression and auto gain must be
// disabled on the device for pitch-detection fidelity; PortAudio's default
// raw input satisfies that contract.
package capture

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/cyrus07424/hummingMelodyTranscriber/logging"
)

// Stream captures mono audio from the default input device and pushes
// chunks on a bounded channel. When the consumer falls behind, chunks are
// dropped rather than queued unboundedly: bounded latency over
// completeness.
type Stream struct {
	sampleRate int
	chunkSize  int

	stream  *portaudio.Stream
	chunks  chan []float64
	dropped atomic.Int64
	started bool
	logger  logging.Logger
}

// Open initializes PortAudio and opens the default input stream. The
// stream is not started until Start is called.
func Open(sampleRate, chunkSize int) (*Stream, error) {
	if sampleRate <= 0 || chunkSize <= 0 {
		return nil, fmt.Errorf("sample rate (%d) and chunk size (%d) must be positive", sampleRate, chunkSize)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	s := &Stream{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		chunks:     make(chan []float64, 8),
		logger:     logging.WithFields(logging.Fields{"component": "capture"}),
	}

	stream, err := portaudio.OpenDefaultStream(
		1, // mono input
		0, // no output
		float64(sampleRate),
		chunkSize,
		s.onInput,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	s.stream = stream

	return s, nil
}

// Start begins capture
func (s *Stream) Start() error {
	if s.started {
		return errors.New("capture already started")
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	s.started = true

	s.logger.Info("capture started", logging.Fields{
		"sample_rate": s.sampleRate,
		"chunk_size":  s.chunkSize,
	})
	return nil
}

// Stop ends capture, closes the chunk channel and releases PortAudio
func (s *Stream) Stop() error {
	if !s.started {
		return errors.New("capture not started")
	}
	s.started = false

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}

	close(s.chunks)

	if dropped := s.dropped.Load(); dropped > 0 {
		s.logger.Warn("capture dropped chunks", logging.Fields{"dropped": dropped})
	}
	return firstErr
}

// Chunks returns the channel of captured mono chunks. The channel is
// closed by Stop.
func (s *Stream) Chunks() <-chan []float64 {
	return s.chunks
}

// Dropped returns the number of chunks discarded because the consumer
// could not keep up.
func (s *Stream) Dropped() int64 {
	return s.dropped.Load()
}

// onInput runs on the PortAudio callback thread; it must not block
func (s *Stream) onInput(in []float32) {
	chunk := make([]float64, len(in))
	for i, v := range in {
		chunk[i] = float64(v)
	}

	select {
	case s.chunks <- chunk:
	default:
		s.dropped.Add(1)
	}
}

package pitch

import (
	"fmt"
	"time"
)

// Frame is one fixed-length window of mono samples handed to the estimator.
// Frames are views into transient capture data and are never retained by
// the pipeline after estimation.
type Frame struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Time       float64   `json:"time"` // seconds from stream origin
}

// FrameBuffer slices a fully decoded PCM buffer into overlapping analysis
// frames of frameLen samples advancing by hop samples. The trailing partial
// frame is dropped; frame i starts at i*hop/sampleRate seconds.
func FrameBuffer(pcm []float64, sampleRate, frameLen, hop int) ([]Frame, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if frameLen <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLen)
	}
	if hop <= 0 || hop > frameLen {
		return nil, fmt.Errorf("hop (%d) must be in (0, frame length %d]", hop, frameLen)
	}

	if len(pcm) < frameLen {
		return nil, nil
	}

	numFrames := (len(pcm)-frameLen)/hop + 1
	frames := make([]Frame, 0, numFrames)

	for i := 0; i < numFrames; i++ {
		start := i * hop
		frames = append(frames, Frame{
			Samples:    pcm[start : start+frameLen],
			SampleRate: sampleRate,
			Time:       float64(start) / float64(sampleRate),
		})
	}

	return frames, nil
}

// StreamFramer assembles pushed capture chunks into fixed-size frames for
// live analysis. Frame start times are elapsed wall clock since the first
// pushed chunk, matching the live-capture time base.
type StreamFramer struct {
	sampleRate int
	frameLen   int
	hop        int

	buf     []float64
	started bool
	start   time.Time
	now     func() time.Time
}

// NewStreamFramer creates a framer for a live sample stream
func NewStreamFramer(sampleRate, frameLen, hop int) (*StreamFramer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if frameLen <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLen)
	}
	if hop <= 0 || hop > frameLen {
		return nil, fmt.Errorf("hop (%d) must be in (0, frame length %d]", hop, frameLen)
	}

	return &StreamFramer{
		sampleRate: sampleRate,
		frameLen:   frameLen,
		hop:        hop,
		buf:        make([]float64, 0, frameLen*2),
		now:        time.Now,
	}, nil
}

// Push appends a capture chunk and returns every frame that became complete.
// Returned frames own their sample slices; the chunk may be reused.
func (f *StreamFramer) Push(chunk []float64) []Frame {
	if !f.started {
		f.started = true
		f.start = f.now()
	}

	f.buf = append(f.buf, chunk...)

	var frames []Frame
	for len(f.buf) >= f.frameLen {
		samples := make([]float64, f.frameLen)
		copy(samples, f.buf[:f.frameLen])

		frames = append(frames, Frame{
			Samples:    samples,
			SampleRate: f.sampleRate,
			Time:       f.now().Sub(f.start).Seconds(),
		})

		f.buf = f.buf[f.hop:]
	}

	// Reclaim the advanced prefix so the buffer does not creep
	if len(frames) > 0 {
		remaining := make([]float64, len(f.buf), f.frameLen*2)
		copy(remaining, f.buf)
		f.buf = remaining
	}

	return frames
}

// Pending returns the number of buffered samples not yet emitted as a frame
func (f *StreamFramer) Pending() int {
	return len(f.buf)
}

package pitch

import (
	"math"
	"testing"
	"time"
)

func TestFrameBufferStriding(t *testing.T) {
	tests := []struct {
		name       string
		samples    int
		frameLen   int
		hop        int
		wantFrames int
	}{
		{"exact fit no overlap", 8192, 4096, 4096, 2},
		{"half overlap", 8192, 4096, 2048, 3},
		{"partial tail dropped", 10000, 4096, 1024, 6},
		{"too short", 1000, 4096, 1024, 0},
		{"single frame", 4096, 4096, 1024, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := make([]float64, tt.samples)
			frames, err := FrameBuffer(pcm, 44100, tt.frameLen, tt.hop)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(frames) != tt.wantFrames {
				t.Fatalf("got %d frames, want %d", len(frames), tt.wantFrames)
			}
			for i, f := range frames {
				if len(f.Samples) != tt.frameLen {
					t.Fatalf("frame %d has %d samples, want %d", i, len(f.Samples), tt.frameLen)
				}
				wantTime := float64(i*tt.hop) / 44100
				if math.Abs(f.Time-wantTime) > 1e-12 {
					t.Fatalf("frame %d time = %g, want %g", i, f.Time, wantTime)
				}
			}
		})
	}
}

func TestFrameBufferRejectsBadParams(t *testing.T) {
	pcm := make([]float64, 8192)

	if _, err := FrameBuffer(pcm, 0, 4096, 1024); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := FrameBuffer(pcm, 44100, 0, 1024); err == nil {
		t.Error("expected error for zero frame length")
	}
	if _, err := FrameBuffer(pcm, 44100, 4096, 0); err == nil {
		t.Error("expected error for zero hop")
	}
	if _, err := FrameBuffer(pcm, 44100, 4096, 8192); err == nil {
		t.Error("expected error for hop larger than frame")
	}
}

func TestStreamFramerAssemblesFrames(t *testing.T) {
	framer, err := NewStreamFramer(44100, 8, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// deterministic clock advancing 1ms per reading
	now := time.Unix(0, 0)
	framer.now = func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}

	chunk := []float64{0, 1, 2, 3, 4, 5}

	frames := framer.Push(chunk)
	if len(frames) != 0 {
		t.Fatalf("expected no frame from 6 samples, got %d", len(frames))
	}
	if framer.Pending() != 6 {
		t.Fatalf("pending = %d, want 6", framer.Pending())
	}

	frames = framer.Push(chunk)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames from 12 samples, got %d", len(frames))
	}
	if frames[0].Samples[0] != 0 || frames[1].Samples[0] != 4 {
		t.Fatalf("frames not advanced by hop: first samples %g, %g",
			frames[0].Samples[0], frames[1].Samples[0])
	}
	if frames[1].Time < frames[0].Time {
		t.Fatalf("frame times not monotonic: %g then %g", frames[0].Time, frames[1].Time)
	}
	if framer.Pending() != 4 {
		t.Fatalf("pending = %d, want 4", framer.Pending())
	}
}

func TestStreamFramerFrameOwnsSamples(t *testing.T) {
	framer, err := NewStreamFramer(44100, 4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunk := []float64{1, 2, 3, 4}
	frames := framer.Push(chunk)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}

	chunk[0] = 99
	if frames[0].Samples[0] != 1 {
		t.Fatal("frame samples alias the pushed chunk")
	}
}

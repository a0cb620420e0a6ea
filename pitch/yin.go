package pitch

import (
	"errors"
	"fmt"

	"github.com/mjibson/go-dsp/fft"

	"github.com/cyrus07424/hummingMelodyTranscriber/logging"
)

// ErrInvalidFrame reports a caller contract violation: a frame whose length
// or sample rate does not match the estimator configuration.
var ErrInvalidFrame = errors.New("invalid frame")

// Params configures the YIN estimator
type Params struct {
	SampleRate int     `json:"sample_rate"`
	FrameSize  int     `json:"frame_size"`
	Threshold  float64 `json:"threshold"`
}

// DefaultParams returns estimator defaults for the given sample rate.
// FrameSize 4096 keeps at least two full periods in the frame down to the
// 80 Hz floor at 44.1 kHz.
func DefaultParams(sampleRate int) Params {
	return Params{
		SampleRate: sampleRate,
		FrameSize:  4096,
		Threshold:  0.1,
	}
}

// Validate checks the parameter set for internal consistency
func (p Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	}
	if p.FrameSize < 4 {
		return fmt.Errorf("frame size must be at least 4, got %d", p.FrameSize)
	}
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %g", p.Threshold)
	}
	return nil
}

// Estimate is the outcome of analyzing one frame: either a voiced estimate
// with a fundamental frequency, or unvoiced (silence, noise, non-tonal
// sound). Unvoiced is an ordinary outcome, not an error.
type Estimate struct {
	Voiced    bool    `json:"voiced"`
	Frequency float64 `json:"frequency,omitempty"` // Hz, > 0 when voiced
}

// Unvoiced is the zero estimate, returned for frames with no reliable
// periodicity.
var Unvoiced = Estimate{}

// Estimator detects the fundamental frequency of an audio frame using the
// YIN algorithm.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
//
// The difference function d(tau) = sum_{i=0}^{N-tau-1} (x[i]-x[i+tau])^2 is
// computed exactly via FFT autocorrelation (Wiener-Khinchin) plus prefix-sum
// energy terms, then normalized into the cumulative-mean-normalized
// difference function. The first local minimum below the threshold wins,
// which prefers the true fundamental over its subharmonics; parabolic
// interpolation refines the lag to sub-sample accuracy.
type Estimator struct {
	params Params

	// scratch buffers reused across frames
	padded []float64
	prefix []float64
	diff   []float64
	cmndf  []float64
}

// NewEstimator creates a YIN estimator. Invalid params are replaced with
// defaults for the given sample rate and reported at warn level, so a
// misconfigured caller degrades instead of crashing mid-session.
func NewEstimator(params Params) *Estimator {
	if err := params.Validate(); err != nil {
		logging.Warn("invalid estimator params, using defaults", logging.Fields{
			"error": err.Error(),
		})
		params = DefaultParams(44100)
	}

	n := params.FrameSize
	return &Estimator{
		params: params,
		padded: make([]float64, 2*n),
		prefix: make([]float64, n+1),
		diff:   make([]float64, n/2+1),
		cmndf:  make([]float64, n/2+1),
	}
}

// Params returns the estimator configuration
func (e *Estimator) Params() Params {
	return e.params
}

// Estimate analyzes one frame and returns a voiced frequency estimate or
// Unvoiced. A frame of the wrong length or sample rate is a programming
// error on the caller's side and fails fast with ErrInvalidFrame.
func (e *Estimator) Estimate(frame Frame) (Estimate, error) {
	if len(frame.Samples) != e.params.FrameSize {
		return Unvoiced, fmt.Errorf("%w: got %d samples, want %d",
			ErrInvalidFrame, len(frame.Samples), e.params.FrameSize)
	}
	if frame.SampleRate != e.params.SampleRate {
		return Unvoiced, fmt.Errorf("%w: got sample rate %d, want %d",
			ErrInvalidFrame, frame.SampleRate, e.params.SampleRate)
	}

	e.difference(frame.Samples)
	e.normalize()

	tau := e.absoluteThreshold()
	if tau < 0 {
		return Unvoiced, nil
	}

	refined := e.parabolicInterpolation(tau)
	frequency := float64(e.params.SampleRate) / refined

	return Estimate{Voiced: true, Frequency: frequency}, nil
}

// difference fills e.diff with d(tau) for tau in [0, N/2] using
// d(tau) = E[0, N-tau) + E[tau, N) - 2*r(tau), where r is the linear
// autocorrelation obtained from a zero-padded FFT.
func (e *Estimator) difference(x []float64) {
	n := len(x)

	copy(e.padded, x)
	for i := n; i < 2*n; i++ {
		e.padded[i] = 0
	}

	spectrum := fft.FFTReal(e.padded)
	for i, c := range spectrum {
		spectrum[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	autocorr := fft.IFFT(spectrum)

	e.prefix[0] = 0
	for i, v := range x {
		e.prefix[i+1] = e.prefix[i] + v*v
	}

	total := e.prefix[n]
	for tau := 0; tau <= n/2; tau++ {
		head := e.prefix[n-tau]
		tail := total - e.prefix[tau]
		d := head + tail - 2*real(autocorr[tau])
		// rounding in the FFT can push an exact zero slightly negative
		if d < 0 {
			d = 0
		}
		e.diff[tau] = d
	}
}

// normalize computes the cumulative-mean-normalized difference function,
// d'(0) = 1 and d'(tau) = d(tau)*tau / sum_{j=1}^{tau} d(j).
func (e *Estimator) normalize() {
	e.cmndf[0] = 1

	runningSum := 0.0
	for tau := 1; tau < len(e.diff); tau++ {
		runningSum += e.diff[tau]
		if runningSum == 0 {
			// perfectly flat signal, e.g. all zeros
			e.cmndf[tau] = 1
			continue
		}
		e.cmndf[tau] = e.diff[tau] * float64(tau) / runningSum
	}
}

// absoluteThreshold returns the first local minimum lag below the threshold,
// or -1 when the frame is unvoiced. Searching from the lowest lag upward is
// the standard YIN octave-error mitigation.
func (e *Estimator) absoluteThreshold() int {
	half := len(e.cmndf)

	for tau := 2; tau < half; tau++ {
		if e.cmndf[tau] >= e.params.Threshold {
			continue
		}
		// descend to the bottom of this dip
		for tau+1 < half && e.cmndf[tau+1] < e.cmndf[tau] {
			tau++
		}
		return tau
	}

	return -1
}

// parabolicInterpolation refines an integer lag to sub-sample accuracy by
// fitting a parabola through the CMNDF values around it.
func (e *Estimator) parabolicInterpolation(tau int) float64 {
	half := len(e.cmndf)

	x0 := tau - 1
	if tau < 1 {
		x0 = tau
	}
	x2 := tau + 1
	if x2 >= half {
		x2 = tau
	}

	if x0 == tau {
		if e.cmndf[tau] <= e.cmndf[x2] {
			return float64(tau)
		}
		return float64(x2)
	}
	if x2 == tau {
		if e.cmndf[tau] <= e.cmndf[x0] {
			return float64(tau)
		}
		return float64(x0)
	}

	s0 := e.cmndf[x0]
	s1 := e.cmndf[tau]
	s2 := e.cmndf[x2]

	denom := 2 * (2*s1 - s2 - s0)
	if denom == 0 {
		return float64(tau)
	}
	return float64(tau) + (s2-s0)/denom
}

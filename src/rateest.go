package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Windowed least-squares rate estimator (§4.8). Tracks the
 *	    effective sample rate of a device by fitting a line through
 *	    a rolling window of (cumulative_frames, timestamp) samples.
 *
 *---------------------------------------------------------------*/

import "time"

// DefaultRateWindow is the default rolling window over which the
// estimator fits its line (§4.8: "default ≈5 seconds").
const DefaultRateWindow = 5 * time.Second

type rateSample struct {
	t      time.Time
	frames int64
}

// RateEstimator fits effective_rate/nominal_rate from windowed
// (cumulative_frames, timestamp) observations.
type RateEstimator struct {
	nominalRate int
	window      time.Duration

	samples        []rateSample
	cumulateFrames int64

	ratio float64 // last computed estimated_rate / nominal_rate
}

// NewRateEstimator creates an estimator for a device nominally running at
// nominalRate Hz, using window as the rolling fit window.
func NewRateEstimator(nominalRate int, window time.Duration) *RateEstimator {
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateEstimator{
		nominalRate: nominalRate,
		window:      window,
		ratio:       1.0,
	}
}

// Reset clears all history, as required on device close, format change,
// and severe underrun (§4.8).
func (e *RateEstimator) Reset() {
	e.samples = e.samples[:0]
	e.cumulateFrames = 0
	e.ratio = 1.0
}

// AddFrames records that framesTransferred frames were transferred at
// timestamp ts (the hardware-reported time from frames_queued(), §4.3
// step 1), then refits the line.
func (e *RateEstimator) AddFrames(framesTransferred int, ts time.Time) {
	e.cumulateFrames += int64(framesTransferred)
	e.samples = append(e.samples, rateSample{t: ts, frames: e.cumulateFrames})

	cutoff := ts.Add(-e.window)
	i := 0
	for i < len(e.samples) && e.samples[i].t.Before(cutoff) {
		i++
	}
	// Always keep one sample before the cutoff so the fit still spans
	// useful time even early in the window's life.
	if i > 0 {
		i--
	}
	e.samples = e.samples[i:]

	e.refit()
}

// refit performs an ordinary least-squares fit of frames over elapsed
// time across the retained window and stores the ratio to nominal rate.
func (e *RateEstimator) refit() {
	n := len(e.samples)
	if n < 2 {
		return
	}

	t0 := e.samples[0].t
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range e.samples {
		x := s.t.Sub(t0).Seconds()
		y := float64(s.frames - e.samples[0].frames)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return
	}
	slope := (nf*sumXY - sumX*sumY) / denom // frames/sec = effective rate
	if e.nominalRate > 0 {
		e.ratio = slope / float64(e.nominalRate)
	}
}

// Ratio returns estimated_rate / nominal_rate. Resamplers consume this to
// slew their playback rate so accumulated drift stays bounded (§4.8).
func (e *RateEstimator) Ratio() float64 {
	if len(e.samples) < 2 {
		return 1.0
	}
	return e.ratio
}

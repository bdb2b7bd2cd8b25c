package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Sample-format, rate, and channel-layout conversion chain
 *	    (§2 "Format converter", §3 dev_stream "owns the sample-rate
 *	    and format converter chain").
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Converter turns frames in one AudioFormat into frames in another,
// including resampling driven by an external rate ratio (§4.8).
type Converter struct {
	from, to AudioFormat

	// resamplePos is the fractional read position into the pending
	// input history, used by a simple linear resampler.
	resamplePos float64
	history     []float64 // last input frame per channel, for interpolation
	haveHistory bool
}

// NewConverter builds a converter from one negotiated format to another.
func NewConverter(from, to AudioFormat) *Converter {
	return &Converter{from: from, to: to, history: make([]float64, from.Channels)}
}

// Convert decodes in (frames in c.from's format/rate/channels), resamples
// by rateRatio (estimated_rate/nominal_rate from the destination device's
// RateEstimator, §4.8), converts channel count, and encodes to c.to's
// format, appending the result to dst and returning it.
func (c *Converter) Convert(dst []byte, in []byte, rateRatio float64) []byte {
	if rateRatio <= 0 {
		rateRatio = 1.0
	}

	inFrames := decodeFrames(in, c.from)
	outFrames := c.resample(inFrames, rateRatio)
	outFrames = remapChannels(outFrames, c.from.Channels, c.to.Channels)
	return encodeFrames(dst, outFrames, c.to.Format)
}

// decodeFrames expands interleaved bytes into float64 frames (one slice
// of Channels samples per frame), normalized to [-1, 1].
func decodeFrames(in []byte, f AudioFormat) [][]float64 {
	fb := f.FrameBytes()
	if fb == 0 {
		return nil
	}
	n := len(in) / fb
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		frame := make([]float64, f.Channels)
		for ch := 0; ch < f.Channels; ch++ {
			off := i*fb + ch*f.Format.BytesPerSample()
			frame[ch] = decodeSample(in[off:], f.Format)
		}
		out[i] = frame
	}
	return out
}

func decodeSample(b []byte, format SampleFormat) float64 {
	switch format {
	case FormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(b))) / float64(math.MaxInt16)
	case FormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(b))) / float64(math.MaxInt32)
	case FormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return 0
	}
}

func encodeSample(b []byte, v float64, format SampleFormat) {
	switch format {
	case FormatS16LE:
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(b, uint16(int16(v*math.MaxInt16)))
	case FormatS32LE:
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint32(b, uint32(int32(v*math.MaxInt32)))
	case FormatFloat32LE:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

// resample performs linear interpolation to go from the nominal sample
// rate of c.from to c.to, slewed by rateRatio so the estimated device
// drift is absorbed here rather than in the device buffer (§4.8).
func (c *Converter) resample(in [][]float64, rateRatio float64) [][]float64 {
	if c.from.RateHz == c.to.RateHz && rateRatio == 1.0 {
		return in
	}
	if len(in) == 0 {
		return nil
	}

	step := (float64(c.from.RateHz) / float64(c.to.RateHz)) * rateRatio
	channels := c.from.Channels

	var out [][]float64
	pos := c.resamplePos
	for pos < float64(len(in)) {
		i0 := int(pos)
		i1 := i0 + 1
		frac := pos - float64(i0)

		frame := make([]float64, channels)
		for ch := 0; ch < channels; ch++ {
			v0 := c.sampleAt(in, i0, ch)
			v1 := c.sampleAt(in, i1, ch)
			frame[ch] = v0 + (v1-v0)*frac
		}
		out = append(out, frame)
		pos += step
	}
	c.resamplePos = pos - float64(len(in))
	if len(in) > 0 {
		copy(c.history, in[len(in)-1])
		c.haveHistory = true
	}
	return out
}

func (c *Converter) sampleAt(in [][]float64, i, ch int) float64 {
	if i < 0 {
		if c.haveHistory {
			return c.history[ch]
		}
		return 0
	}
	if i >= len(in) {
		return in[len(in)-1][ch]
	}
	return in[i][ch]
}

// remapChannels converts a frame list between channel counts: upmixing
// mono to stereo duplicates the channel; downmixing stereo to mono
// averages; anything beyond that truncates or zero-pads.
func remapChannels(in [][]float64, fromCh, toCh int) [][]float64 {
	if fromCh == toCh {
		return in
	}
	out := make([][]float64, len(in))
	for i, frame := range in {
		nf := make([]float64, toCh)
		switch {
		case fromCh == 1 && toCh >= 2:
			for ch := 0; ch < toCh; ch++ {
				nf[ch] = frame[0]
			}
		case toCh == 1 && fromCh >= 2:
			var sum float64
			for _, v := range frame {
				sum += v
			}
			nf[0] = sum / float64(fromCh)
		default:
			for ch := 0; ch < toCh && ch < fromCh; ch++ {
				nf[ch] = frame[ch]
			}
		}
		out[i] = nf
	}
	return out
}

func encodeFrames(dst []byte, frames [][]float64, format SampleFormat) []byte {
	bps := format.BytesPerSample()
	for _, frame := range frames {
		buf := make([]byte, bps)
		for _, v := range frame {
			encodeSample(buf, v, format)
			dst = append(dst, buf...)
		}
	}
	return dst
}

// ValidateFormat rejects formats the converter cannot handle, surfaced as
// a policy-rejection error on CONNECT_STREAM (§7).
func ValidateFormat(f AudioFormat) error {
	if f.RateHz <= 0 {
		return fmt.Errorf("audiomix: invalid sample rate %d", f.RateHz)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audiomix: invalid channel count %d", f.Channels)
	}
	if f.Format.BytesPerSample() == 0 {
		return fmt.Errorf("audiomix: unsupported sample format %d", f.Format)
	}
	return nil
}

package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Per-stream-per-device adapter (§3 "Per-stream-per-device
 *	    adapter (dev_stream)"). Binds one Stream to one Device: owns
 *	    the converter chain, the per-device ring offset bookkeeping,
 *	    and timing state.
 *
 *---------------------------------------------------------------*/

import "time"

// DevStream is one (stream, device) attachment. It borrows its Stream
// (non-owning) and is owned by its Device; it cannot outlive either
// (§3 invariant).
type DevStream struct {
	Stream *Stream
	Device *Device

	converter *Converter

	// offset is this dev_stream's private read/write position into the
	// stream's ring, independent of the stream's own ring cursors, so
	// multiple devices can each be at a different point consuming or
	// filling the same stream (§3, §4.9).
	offset int

	lastFetch      time.Time
	longestFetch   time.Duration
	missedCallback int
}

// NewDevStream attaches stream to device, building the converter chain
// between the stream's negotiated format and the device's current format.
func NewDevStream(stream *Stream, device *Device) *DevStream {
	var conv *Converter
	switch stream.Dir {
	case DirOutput:
		conv = NewConverter(stream.Format, device.Format)
	default:
		conv = NewConverter(device.Format, stream.Format)
	}
	return &DevStream{Stream: stream, Device: device, converter: conv}
}

// Offer answers "how many frames can you produce now?" for a playback
// dev_stream (§4.3 step 3): the minimum of stream availability and a
// per-stream cap derived from the callback threshold.
func (ds *DevStream) Offer(maxFrames int) int {
	avail := ds.Stream.ring.Consumer().r.AvailableToRead()
	cap := ds.Stream.CbThresh
	n := avail
	if cap < n {
		n = cap
	}
	if maxFrames < n {
		n = maxFrames
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Fetch pulls up to n frames from the stream's ring, converts them to the
// device's format at the given rate ratio, and returns the converted
// bytes (§4.3 step 5). It records fetch timing stats.
func (ds *DevStream) Fetch(n int, rateRatio float64) []byte {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		if d > ds.longestFetch {
			ds.longestFetch = d
		}
		ds.lastFetch = start
	}()

	raw := make([]byte, n*ds.Stream.Format.FrameBytes())
	got := ds.Stream.ring.Consumer().Read(raw)
	if got == 0 {
		ds.missedCallback++
		return nil
	}
	return ds.converter.Convert(nil, raw[:got*ds.Stream.Format.FrameBytes()], rateRatio)
}

// Deposit converts device-format capture frames into the stream's format,
// applies this stream's gain (§4.4 "per-stream gain applied post-DSP"),
// and writes the result into the stream's ring, advancing this
// dev_stream's device-side offset by the number of frames consumed from
// buf so a later-joining dev_stream can align to it (§4.9).
func (ds *DevStream) Deposit(buf []byte, rateRatio float64) int {
	converted := ds.converter.Convert(nil, buf, rateRatio)
	Scale(ds.Stream.Format.Format, converted, ds.Stream.Gain)
	n := ds.Stream.ring.Producer().Write(converted)
	ds.offset += len(buf) / ds.Device.Format.FrameBytes()
	return n
}

// MissedCallbacks returns the running count of cycles where this
// dev_stream had nothing to offer.
func (ds *DevStream) MissedCallbacks() int { return ds.missedCallback }

// LongestFetch returns the longest observed Fetch duration.
func (ds *DevStream) LongestFetch() time.Duration { return ds.longestFetch }

// SeedOffset sets this dev_stream's starting device-side offset, used for
// capture join alignment (§4.9): a newly attached capture dev_stream must
// not receive samples older than the newest already-delivered sample.
func (ds *DevStream) SeedOffset(framesToSkip int) {
	if framesToSkip <= 0 {
		return
	}
	ds.Stream.ring.Consumer().Skip(framesToSkip)
	ds.offset += framesToSkip
}

// Offset returns this dev_stream's current device-side offset, used by
// later-joining dev_streams as the basis for their join offset (§4.9).
func (ds *DevStream) Offset() int { return ds.offset }

package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Real hardware Backend over gordonklaus/portaudio. One
 *	    instance per direction; Open/Close bracket a portaudio stream
 *	    whose callback just copies into/out of a small internal ring so
 *	    GetBuffer/PutBuffer can stay synchronous, matching the Backend
 *	    contract (§4.1). This is the ALSA/hardware back-end spec.md
 *	    names as an out-of-scope external collaborator (§1); it exists
 *	    here only so the engine has one real, non-null Backend to run
 *	    against outside of tests.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend adapts a portaudio.Stream to Backend. Direction is
// fixed at construction: an output backend writes float32 frames the
// callback drains from ring; an input backend fills ring from the
// callback for GetBuffer/PutBuffer to drain.
type PortAudioBackend struct {
	mu        sync.Mutex
	isCapture bool
	deviceIdx int

	stream *portaudio.Stream
	format AudioFormat

	ring    *ShmRing
	prod    *Producer
	cons    *Consumer
	started bool

	pendingOut []byte // last buffer handed out by GetBuffer, awaiting PutBuffer (output direction)
}

// NewPortAudioBackend builds a backend bound to the portaudio device at
// deviceIdx (as enumerated by the out-of-scope card-discovery
// collaborator; this component only opens the stream).
func NewPortAudioBackend(deviceIdx int, isCapture bool) *PortAudioBackend {
	return &PortAudioBackend{deviceIdx: deviceIdx, isCapture: isCapture}
}

func (b *PortAudioBackend) Open(ctx context.Context, format AudioFormat, bufferSizeFrames int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ValidateFormat(format); err != nil {
		return 0, err
	}
	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("portaudio: initialize: %w", err)
	}
	b.format = format

	ring, err := NewShmRing(format.FrameBytes(), bufferSizeFrames*4)
	if err != nil {
		portaudio.Terminate()
		return 0, fmt.Errorf("portaudio: backing ring: %w", err)
	}
	b.ring = ring
	p := ring.Producer()
	c := ring.Consumer()
	b.prod, b.cons = &p, &c

	devs, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return 0, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	if b.deviceIdx < 0 || b.deviceIdx >= len(devs) {
		portaudio.Terminate()
		return 0, fmt.Errorf("portaudio: device index %d out of range", b.deviceIdx)
	}
	dev := devs[b.deviceIdx]

	params := portaudio.StreamParameters{
		SampleRate:      float64(format.RateHz),
		FramesPerBuffer: bufferSizeFrames,
	}
	if b.isCapture {
		params.Input = portaudio.StreamDeviceParameters{Device: dev, Channels: format.Channels, Latency: dev.DefaultLowInputLatency}
		stream, err := portaudio.OpenStream(params, b.captureCallback)
		if err != nil {
			portaudio.Terminate()
			return 0, fmt.Errorf("portaudio: open input stream: %w", err)
		}
		b.stream = stream
	} else {
		params.Output = portaudio.StreamDeviceParameters{Device: dev, Channels: format.Channels, Latency: dev.DefaultLowOutputLatency}
		stream, err := portaudio.OpenStream(params, b.playbackCallback)
		if err != nil {
			portaudio.Terminate()
			return 0, fmt.Errorf("portaudio: open output stream: %w", err)
		}
		b.stream = stream
	}
	return bufferSizeFrames, nil
}

// playbackCallback runs on portaudio's realtime callback thread; it only
// drains the ring, never blocks.
func (b *PortAudioBackend) playbackCallback(out []float32) {
	raw := make([]byte, len(out)*4)
	n := b.cons.Read(raw)
	decodeFloat32Into(out, raw[:n])
}

// captureCallback mirrors playbackCallback for input streams.
func (b *PortAudioBackend) captureCallback(in []float32) {
	raw := encodeFloat32(in)
	b.prod.Write(raw)
}

func (b *PortAudioBackend) Configure(format AudioFormat) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ValidateFormat(format); err != nil {
		return err
	}
	b.format = format
	return nil
}

func (b *PortAudioBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := b.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	b.started = true
	return nil
}

func (b *PortAudioBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream != nil {
		_ = b.stream.Stop()
		_ = b.stream.Close()
		b.stream = nil
	}
	if b.ring != nil {
		_ = b.ring.Close()
		b.ring = nil
	}
	b.started = false
	portaudio.Terminate()
	return nil
}

func (b *PortAudioBackend) FramesQueued() (int, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring == nil {
		return 0, time.Now(), fmt.Errorf("portaudio: not open")
	}
	if b.isCapture {
		return b.ring.AvailableToRead(), time.Now(), nil
	}
	used := b.ring.CapacityFrames() - b.ring.AvailableToWrite()
	return used, time.Now(), nil
}

func (b *PortAudioBackend) DelayFrames() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return 0, fmt.Errorf("portaudio: not open")
	}
	info := b.stream.Info()
	if b.isCapture {
		return int(info.InputLatency.Seconds() * float64(b.format.RateHz)), nil
	}
	return int(info.OutputLatency.Seconds() * float64(b.format.RateHz)), nil
}

func (b *PortAudioBackend) GetBuffer(wantFrames int) ([]byte, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, wantFrames*b.format.FrameBytes())
	if b.isCapture {
		n := b.cons.Read(buf)
		return buf[:n], n / b.format.FrameBytes(), nil
	}
	b.pendingOut = buf
	return buf, wantFrames, nil
}

func (b *PortAudioBackend) PutBuffer(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isCapture {
		return nil
	}
	if b.pendingOut == nil {
		return fmt.Errorf("portaudio: put_buffer without a matching get_buffer")
	}
	nBytes := n * b.format.FrameBytes()
	if nBytes > len(b.pendingOut) {
		nBytes = len(b.pendingOut)
	}
	b.prod.Write(b.pendingOut[:nBytes])
	b.pendingOut = nil
	return nil
}

func (b *PortAudioBackend) FlushBuffer() (int, error) {
	return 0, nil
}

var (
	_ Backend = (*PortAudioBackend)(nil)
	_ Starter = (*PortAudioBackend)(nil)
)

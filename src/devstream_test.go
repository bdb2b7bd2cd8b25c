package audiomix

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDevStreamOfferCapsAtCallbackThreshold(t *testing.T) {
	format := AudioFormat{Format: FormatS16LE, RateHz: 48000, Channels: 2}
	dev := NewDevice(0, DirOutput, NewNullBackend(false), nil, nil)
	require.NoError(t, dev.Open(context.Background(), 1024, format))

	stream, err := NewStream(NewStreamID(1, 0), DirOutput, format, 128, 4096, EffectNone, 1)
	require.NoError(t, err)
	defer stream.Close()

	// Put more than cb_thresh frames into the stream ring.
	buf := make([]byte, 256*format.FrameBytes())
	stream.Ring().Producer().Write(buf)

	ds := NewDevStream(stream, dev)
	offer := ds.Offer(1024)
	require.Equal(t, 128, offer, "offer must be capped at the stream's callback threshold")
}

func TestDevStreamFetchRecordsMissedCallback(t *testing.T) {
	format := AudioFormat{Format: FormatS16LE, RateHz: 48000, Channels: 2}
	dev := NewDevice(0, DirOutput, NewNullBackend(false), nil, nil)
	require.NoError(t, dev.Open(context.Background(), 1024, format))

	stream, err := NewStream(NewStreamID(1, 0), DirOutput, format, 128, 4096, EffectNone, 1)
	require.NoError(t, err)
	defer stream.Close()

	ds := NewDevStream(stream, dev)
	block := ds.Fetch(128, 1.0)
	require.Nil(t, block)
	require.Equal(t, 1, ds.MissedCallbacks())
}

func TestDevStreamSeedOffsetSkipsFrames(t *testing.T) {
	format := AudioFormat{Format: FormatS16LE, RateHz: 48000, Channels: 2}
	dev := NewDevice(0, DirInput, NewNullBackend(true), nil, nil)
	require.NoError(t, dev.Open(context.Background(), 1024, format))

	stream, err := NewStream(NewStreamID(1, 0), DirInput, format, 128, 4096, EffectNone, 1)
	require.NoError(t, err)
	defer stream.Close()

	buf := make([]byte, 200*format.FrameBytes())
	stream.Ring().Producer().Write(buf)

	ds := NewDevStream(stream, dev)
	ds.SeedOffset(50)
	require.Equal(t, 50, ds.Offset())
}

// §4.4 "per-stream gain applied post-DSP": Deposit must scale captured
// frames by the stream's Gain before writing them into the stream's ring.
func TestDevStreamDepositAppliesPerStreamGain(t *testing.T) {
	format := AudioFormat{Format: FormatS16LE, RateHz: 48000, Channels: 1}
	dev := NewDevice(0, DirInput, NewNullBackend(true), nil, nil)
	require.NoError(t, dev.Open(context.Background(), 1024, format))

	stream, err := NewStream(NewStreamID(1, 0), DirInput, format, 128, 4096, EffectNone, 1)
	require.NoError(t, err)
	defer stream.Close()
	stream.Gain = 0.5

	ds := NewDevStream(stream, dev)

	buf := make([]byte, 4*format.FrameBytes())
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(1000)))
	}

	n := ds.Deposit(buf, 1.0)
	require.Equal(t, 4, n)

	out := make([]byte, 4*format.FrameBytes())
	got := stream.Ring().Consumer().Read(out)
	require.Equal(t, 4, got)
	for i := 0; i < 4; i++ {
		require.Equal(t, int16(500), int16(binary.LittleEndian.Uint16(out[i*2:])))
	}
}

func TestDevStreamDepositUnityGainLeavesSamplesUnchanged(t *testing.T) {
	format := AudioFormat{Format: FormatS16LE, RateHz: 48000, Channels: 1}
	dev := NewDevice(0, DirInput, NewNullBackend(true), nil, nil)
	require.NoError(t, dev.Open(context.Background(), 1024, format))

	stream, err := NewStream(NewStreamID(1, 0), DirInput, format, 128, 4096, EffectNone, 1)
	require.NoError(t, err)
	defer stream.Close()
	require.Equal(t, 1.0, stream.Gain, "NewStream must default Gain to unity")

	ds := NewDevStream(stream, dev)

	buf := make([]byte, 4*format.FrameBytes())
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(1000)))
	}
	ds.Deposit(buf, 1.0)

	out := make([]byte, 4*format.FrameBytes())
	stream.Ring().Consumer().Read(out)
	for i := 0; i < 4; i++ {
		require.Equal(t, int16(1000), int16(binary.LittleEndian.Uint16(out[i*2:])))
	}
}

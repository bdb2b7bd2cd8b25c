package audiomix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Property 1: for an output device in NORMAL_RUN, after every commit
// min_buffer_level <= hw_level <= buffer_size.
func TestPropertyHwLevelStaysWithinBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		format := outputFormat()
		backend := NewNullBackend(false)
		dev := NewDevice(0, DirOutput, backend, nil, nil)
		require.NoError(t, dev.Open(context.Background(), 256, format))

		stream, err := NewStream(NewStreamID(1, 0), DirOutput, format, 256, 4096, EffectNone, 1)
		require.NoError(t, err)
		defer stream.Close()

		frames := rapid.IntRange(1, 256).Draw(rt, "frames")
		payload := make([]byte, frames*format.FrameBytes())
		stream.Ring().Producer().Write(payload)

		ds := NewDevStream(stream, dev)
		dev.Attach(ds)

		require.NoError(t, dev.RunPlaybackCycle(context.Background(), Settings{}))

		hwLevel, _, err := dev.HwLevel()
		require.NoError(t, err)
		if hwLevel == SevereUnderrun {
			return
		}
		require.GreaterOrEqual(t, hwLevel, 0)
		require.LessOrEqual(t, hwLevel, dev.BufferFrames)
	})
}

// Property 2: a dev_stream never offers more than its device's buffer
// holds, and the consumer offset never overtakes the producer offset on
// the backing ring.
func TestPropertyStreamOfferNeverExceedsBufferAndOffsetNeverOvertakes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		format := outputFormat()
		backend := NewNullBackend(false)
		dev := NewDevice(0, DirOutput, backend, nil, nil)
		require.NoError(t, dev.Open(context.Background(), 256, format))

		stream, err := NewStream(NewStreamID(1, 0), DirOutput, format, 256, 4096, EffectNone, 1)
		require.NoError(t, err)
		defer stream.Close()

		written := rapid.IntRange(0, 4096).Draw(rt, "written")
		stream.Ring().Producer().Write(make([]byte, written*format.FrameBytes()))

		ds := NewDevStream(stream, dev)
		offer := ds.Offer(dev.BufferFrames)

		require.LessOrEqual(t, offer, dev.BufferFrames)
		require.LessOrEqual(t, offer, stream.Ring().AvailableToRead())
	})
}

// Property 6: every live stream's client id, recovered from its StreamID,
// matches the client id it was created with; removing a client removes
// all of its streams.
func TestPropertyStreamIDClientIDMatchesAndRemovalIsComplete(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		registry := NewStreamRegistry()
		clientID := uint16(rapid.IntRange(1, 1000).Draw(rt, "clientID"))
		format := outputFormat()

		n := rapid.IntRange(1, 5).Draw(rt, "numStreams")
		var ids []StreamID
		for i := 0; i < n; i++ {
			s, err := registry.Add(clientID, DirOutput, format, 256, 4096, EffectNone, 42)
			require.NoError(t, err)
			require.Equal(t, clientID, s.ID.ClientID())
			ids = append(ids, s.ID)
		}

		for _, id := range ids {
			require.NoError(t, registry.Remove(id))
		}
		require.Empty(t, registry.ForClient(clientID))
	})
}

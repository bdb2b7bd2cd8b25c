package audiomix

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMixAddS16Saturates(t *testing.T) {
	dst := make([]byte, 2)
	src := make([]byte, 2)
	binary.LittleEndian.PutUint16(dst, uint16(int16(30000)))
	binary.LittleEndian.PutUint16(src, uint16(int16(30000)))

	MixAddS16(dst, src)

	got := int16(binary.LittleEndian.Uint16(dst))
	require.Equal(t, int16(32767), got)
}

func TestScaleUnityIsByteIdentical(t *testing.T) {
	// §8 universal property 7: a 1.0 scaler is a byte-for-byte no-op.
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(rt, "n")
		buf := rapid.SliceOfN(rapid.Byte(), n*2, n*2).Draw(rt, "samples")
		orig := append([]byte(nil), buf...)

		Scale(FormatS16LE, buf, 1.0)
		require.Equal(t, orig, buf)
	})
}

func TestMuteDominance(t *testing.T) {
	// §8 universal property 8: Mute always yields silence regardless of
	// what was mixed in before it.
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(rt, "n")
		buf := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "buf")
		Mute(buf)
		for _, b := range buf {
			require.Equal(t, byte(0), b)
		}
	})
}

func TestRampEnvelopeReachesEnd(t *testing.T) {
	r := NewRampEnvelope(0, 1, 4)
	buf := make([]byte, 4*2) // 4 mono frames, S16LE
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(buf[4:], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(buf[6:], uint16(int16(1000)))

	r.ApplyS16(buf, 1)
	require.True(t, r.Done())

	first := int16(binary.LittleEndian.Uint16(buf[0:]))
	last := int16(binary.LittleEndian.Uint16(buf[6:]))
	require.Less(t, int(first), int(last))
}

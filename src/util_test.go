package audiomix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampInt(t *testing.T) {
	require.Equal(t, 0, clampInt(-5, 0, 10))
	require.Equal(t, 10, clampInt(50, 0, 10))
	require.Equal(t, 5, clampInt(5, 0, 10))
}

func TestClampFloat(t *testing.T) {
	require.Equal(t, 0.0, clampFloat(-1.0, 0.0, 1.0))
	require.Equal(t, 1.0, clampFloat(2.0, 0.0, 1.0))
}

func TestFloat32RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	raw := encodeFloat32(samples)
	require.Len(t, raw, len(samples)*4)

	out := make([]float32, len(samples))
	decodeFloat32Into(out, raw)
	require.Equal(t, samples, out)
}

func TestDecodeFloat32IntoZeroFillsShortSource(t *testing.T) {
	raw := encodeFloat32([]float32{1})
	out := make([]float32, 3)
	decodeFloat32Into(out, raw)
	require.Equal(t, []float32{1, 0, 0}, out)
}

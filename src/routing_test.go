package audiomix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterResolvesDefaultDevice(t *testing.T) {
	devices := NewDeviceRegistry()
	dev := NewDevice(0, DirOutput, NewNullBackend(false), nil, nil)
	idx := devices.Add(dev)

	r := NewRouter(devices)
	require.NoError(t, r.SetDefault(idx))

	resolved, ok := r.Resolve(NewStreamID(1, 0), DirOutput)
	require.True(t, ok)
	require.Same(t, dev, resolved)
}

func TestRouterPinOverridesDefault(t *testing.T) {
	devices := NewDeviceRegistry()
	defaultDev := NewDevice(0, DirOutput, NewNullBackend(false), nil, nil)
	pinnedDev := NewDevice(0, DirOutput, NewNullBackend(false), nil, nil)
	defIdx := devices.Add(defaultDev)
	pinIdx := devices.Add(pinnedDev)

	r := NewRouter(devices)
	require.NoError(t, r.SetDefault(defIdx))

	streamID := NewStreamID(2, 0)
	r.Pin(streamID, pinIdx)

	resolved, ok := r.Resolve(streamID, DirOutput)
	require.True(t, ok)
	require.Same(t, pinnedDev, resolved)

	r.Unpin(streamID)
	resolved, ok = r.Resolve(streamID, DirOutput)
	require.True(t, ok)
	require.Same(t, defaultDev, resolved)
}

func TestRouterClearDefaultOnRemove(t *testing.T) {
	devices := NewDeviceRegistry()
	dev := NewDevice(0, DirOutput, NewNullBackend(false), nil, nil)
	idx := devices.Add(dev)

	r := NewRouter(devices)
	require.NoError(t, r.SetDefault(idx))
	r.ClearDefault(idx)

	_, ok := r.Resolve(NewStreamID(1, 0), DirOutput)
	require.False(t, ok)
}

func TestRouterResolveWithNoDefaultFails(t *testing.T) {
	devices := NewDeviceRegistry()
	r := NewRouter(devices)
	_, ok := r.Resolve(NewStreamID(1, 0), DirOutput)
	require.False(t, ok)
}

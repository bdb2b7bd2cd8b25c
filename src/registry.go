package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Control-thread-owned registries of live devices and streams
 *	    (§2, §5). The realtime thread only ever touches the *Device and
 *	    *Stream values it has been handed over the Bus; these maps are
 *	    never read concurrently by the realtime thread, mirroring the
 *	    teacher's convention of a single owning goroutine per mutable
 *	    map (see server.go's client table).
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"
)

// DeviceRegistry tracks every open or opening device, keyed by index.
type DeviceRegistry struct {
	mu   sync.Mutex
	devs map[DeviceIndex]*Device
	next DeviceIndex
}

// NewDeviceRegistry creates an empty registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devs: make(map[DeviceIndex]*Device)}
}

// Add registers dev under a freshly assigned index and returns it.
func (r *DeviceRegistry) Add(dev *Device) DeviceIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.next
	r.next++
	dev.Index = idx
	r.devs[idx] = dev
	return idx
}

// Remove drops a device from the registry. It does not close it; callers
// must have already driven it to StateClose.
func (r *DeviceRegistry) Remove(idx DeviceIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devs, idx)
}

// Get returns the device for idx, if any.
func (r *DeviceRegistry) Get(idx DeviceIndex) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devs[idx]
	return d, ok
}

// List returns a stable-ordered snapshot of every registered device.
func (r *DeviceRegistry) List() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Device, 0, len(r.devs))
	for _, d := range r.devs {
		out = append(out, d)
	}
	return out
}

// ByDirection filters List by direction.
func (r *DeviceRegistry) ByDirection(dir Direction) []*Device {
	var out []*Device
	for _, d := range r.List() {
		if d.Dir == dir {
			out = append(out, d)
		}
	}
	return out
}

// StreamRegistry tracks every attached client stream, keyed by StreamID
// (§2: the stream ID embeds client id + sequence per GLOSSARY).
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[StreamID]*Stream
	seq     map[uint16]uint16
}

// NewStreamRegistry creates an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{
		streams: make(map[StreamID]*Stream),
		seq:     make(map[uint16]uint16),
	}
}

// Add registers a stream for clientID, assigning it the next sequence
// number for that client, and returns the minted ID.
func (r *StreamRegistry) Add(clientID uint16, dir Direction, format AudioFormat, cbThresh, bufFrames int, effects EffectFlags, clientPID int) (*Stream, error) {
	r.mu.Lock()
	seq := r.seq[clientID]
	r.seq[clientID] = seq + 1
	r.mu.Unlock()

	id := NewStreamID(clientID, seq)
	s, err := NewStream(id, dir, format, cbThresh, bufFrames, effects, clientPID)
	if err != nil {
		return nil, fmt.Errorf("registry: add stream: %w", err)
	}

	r.mu.Lock()
	r.streams[id] = s
	r.mu.Unlock()
	return s, nil
}

// Remove drops and closes the stream identified by id, if present.
func (r *StreamRegistry) Remove(id StreamID) error {
	r.mu.Lock()
	s, ok := r.streams[id]
	delete(r.streams, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// Get returns the stream for id, if any.
func (r *StreamRegistry) Get(id StreamID) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[id]
	return s, ok
}

// List returns every currently registered stream.
func (r *StreamRegistry) List() []*Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

// ForClient returns every stream belonging to clientID.
func (r *StreamRegistry) ForClient(clientID uint16) []*Stream {
	var out []*Stream
	for _, s := range r.List() {
		if s.ID.ClientID() == clientID {
			out = append(out, s)
		}
	}
	return out
}

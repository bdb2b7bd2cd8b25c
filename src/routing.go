package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Device list & routing (§2, [ADD 4.13]). Tracks which devices
 *	    are enabled for default routing per direction, and resolves a
 *	    stream's target device: an explicit pin wins, otherwise the
 *	    active default for that stream's direction.
 *
 *---------------------------------------------------------------*/

import "fmt"

// Router resolves a stream's target device and tracks the default
// (unpinned) device per direction (§3: "target device index (or
// NO_DEVICE for default routing)").
type Router struct {
	devices  *DeviceRegistry
	defaults map[Direction]DeviceIndex
	pins     map[StreamID]DeviceIndex
}

// NewRouter builds a router over an existing device registry.
func NewRouter(devices *DeviceRegistry) *Router {
	return &Router{
		devices:  devices,
		defaults: make(map[Direction]DeviceIndex),
		pins:     make(map[StreamID]DeviceIndex),
	}
}

// SetDefault marks idx as the default routing target for its direction.
// Only one device per direction may hold the default at a time; the
// last call wins, mirroring "enabled for default routing" in §3.
func (r *Router) SetDefault(idx DeviceIndex) error {
	d, ok := r.devices.Get(idx)
	if !ok {
		return fmt.Errorf("router: unknown device %d", idx)
	}
	r.defaults[d.Dir] = idx
	return nil
}

// ClearDefault removes whichever device is default for dir, if the
// device being removed is in fact the current default (callers invoke
// this from REMOVE_DEV handling).
func (r *Router) ClearDefault(idx DeviceIndex) {
	for dir, cur := range r.defaults {
		if cur == idx {
			delete(r.defaults, dir)
		}
	}
}

// Pin routes streamID to a specific device index regardless of the
// direction's default, until Unpin is called.
func (r *Router) Pin(streamID StreamID, idx DeviceIndex) {
	r.pins[streamID] = idx
}

// Unpin removes any pin for streamID, reverting it to default routing.
func (r *Router) Unpin(streamID StreamID) {
	delete(r.pins, streamID)
}

// Resolve returns the device a stream of direction dir and id streamID
// should attach to: its pin if one exists and still resolves to a live
// device, otherwise the current default for dir.
func (r *Router) Resolve(streamID StreamID, dir Direction) (*Device, bool) {
	if idx, ok := r.pins[streamID]; ok {
		if d, ok := r.devices.Get(idx); ok {
			return d, true
		}
	}
	idx, ok := r.defaults[dir]
	if !ok {
		return nil, false
	}
	return r.devices.Get(idx)
}

// HotplugEvent describes a sound-subsystem device appearing or
// disappearing, as reported by the udev-backed watcher ([ADD 4.13]).
type HotplugEvent struct {
	Add    bool
	Name   string
	NodePath string
}

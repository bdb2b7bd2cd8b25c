package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: udev-backed hotplug fd source ([ADD 4.13]). Restricted to the
 *	    "sound" subsystem; emits only HotplugEvent values for the
 *	    control thread to translate into ADD_DEV/REMOVE_DEV bus
 *	    messages. No card enumeration, UCM, or jack logic lives here —
 *	    that remains the out-of-scope collaborator named in spec.md §1.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"

	"github.com/jochenvg/go-udev"
)

// HotplugWatcher is the optional sound-subsystem hotplug source. Nil is a
// legal *HotplugWatcher: platforms without udev (or tests) simply never
// call WatchHotplug.
type HotplugWatcher struct {
	log Logger
}

// NewHotplugWatcher builds a watcher; log may be nil, in which case a
// NopLogger is used.
func NewHotplugWatcher(log Logger) *HotplugWatcher {
	if log == nil {
		log = NopLogger{}
	}
	return &HotplugWatcher{log: log}
}

// WatchHotplug opens a netlink udev monitor filtered to the "sound"
// subsystem and streams add/remove events until ctx is canceled.
func (w *HotplugWatcher) WatchHotplug(ctx context.Context) (<-chan HotplugEvent, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if mon == nil {
		return nil, fmt.Errorf("hotplug: failed to open udev netlink monitor")
	}
	if err := mon.FilterAddMatchSubsystem("sound"); err != nil {
		return nil, fmt.Errorf("hotplug: filter sound subsystem: %w", err)
	}

	deviceCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotplug: start monitor: %w", err)
	}

	out := make(chan HotplugEvent, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errCh:
				if !ok {
					return
				}
				w.log.Errorf("hotplug: monitor error: %v", err)
			case d, ok := <-deviceCh:
				if !ok {
					return
				}
				ev := HotplugEvent{
					Add:      d.Action() == "add",
					Name:     d.Sysname(),
					NodePath: d.Syspath(),
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

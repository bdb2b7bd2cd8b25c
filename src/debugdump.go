package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: DUMP_DEBUG bus command handler (§4.11). Writes a snapshot of
 *	    device/stream state to a timestamped file; the teacher's
 *	    audio_stats.go periodically logs a similar snapshot of device
 *	    levels, here triggered on demand instead of on a timer.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

// DumpPattern names the strftime pattern used for debug dump filenames.
const DumpPattern = "audiomix-debug-%Y%m%dT%H%M%S.txt"

// DebugDumper writes human-readable device/stream snapshots to dir.
type DebugDumper struct {
	dir string
	f   *strftime.Strftime
}

// NewDebugDumper builds a dumper writing into dir, which must already
// exist.
func NewDebugDumper(dir string) (*DebugDumper, error) {
	f, err := strftime.New(DumpPattern)
	if err != nil {
		return nil, fmt.Errorf("debugdump: compile pattern: %w", err)
	}
	return &DebugDumper{dir: dir, f: f}, nil
}

// Dump renders a snapshot of every device and its attached streams and
// writes it to a new timestamped file, returning the path written.
func (d *DebugDumper) Dump(devices *DeviceRegistry, streams *StreamRegistry, now time.Time) (string, error) {
	name := d.f.FormatString(now)
	path := filepath.Join(d.dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("debugdump: create %s: %w", path, err)
	}
	defer out.Close()

	fmt.Fprintf(out, "audiomix debug dump %s\n", now.Format(time.RFC3339))
	for _, dev := range devices.List() {
		cbMin, cbMax := dev.CbLevelBounds()
		fmt.Fprintf(out, "device %d dir=%s state=%s node=%q streams=%d cb_level_min=%d cb_level_max=%d\n",
			dev.Index, dev.Dir, dev.State(), dev.ActiveNode, len(dev.Streams()), cbMin, cbMax)
		for _, ds := range dev.Streams() {
			fmt.Fprintf(out, "  stream %08x offset=%d missed=%d longest_fetch=%s\n",
				uint32(ds.Stream.ID), ds.Offset(), ds.MissedCallbacks(), ds.LongestFetch())
		}
	}
	fmt.Fprintf(out, "streams total=%d\n", len(streams.List()))
	return path, nil
}

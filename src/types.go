package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Core data model for the audio-thread engine: stream and
 *	    device identities, audio formats, and the small value types
 *	    shared by every other file in this package.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

// Direction is the data-flow direction of a stream or device.
type Direction int

const (
	DirOutput Direction = iota
	DirInput
	DirLoopbackPreDSP
	DirLoopbackPostDSP
)

func (d Direction) String() string {
	switch d {
	case DirOutput:
		return "output"
	case DirInput:
		return "input"
	case DirLoopbackPreDSP:
		return "loopback-pre-dsp"
	case DirLoopbackPostDSP:
		return "loopback-post-dsp"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses a config-file direction string ("output",
// "input", "loopback-pre-dsp", "loopback-post-dsp") into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "output":
		return DirOutput, nil
	case "input":
		return DirInput, nil
	case "loopback-pre-dsp":
		return DirLoopbackPreDSP, nil
	case "loopback-post-dsp":
		return DirLoopbackPostDSP, nil
	default:
		return 0, fmt.Errorf("audiomix: unknown direction %q", s)
	}
}

// SampleFormat names the on-the-wire sample encoding.
type SampleFormat int

const (
	FormatS16LE SampleFormat = iota
	FormatS32LE
	FormatFloat32LE
)

// BytesPerSample returns the width, in bytes, of a single sample.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS16LE:
		return 2
	case FormatS32LE, FormatFloat32LE:
		return 4
	default:
		return 0
	}
}

// ParseSampleFormat parses a config-file sample format string ("s16le",
// "s32le", "float32le") into a SampleFormat.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s16le":
		return FormatS16LE, nil
	case "s32le":
		return FormatS32LE, nil
	case "float32le":
		return FormatFloat32LE, nil
	default:
		return 0, fmt.Errorf("audiomix: unknown sample format %q", s)
	}
}

// AudioFormat is a negotiated sample format, rate, channel count and
// layout. Channels beyond stereo are addressed positionally; Layout is
// nil for the common mono/stereo case.
type AudioFormat struct {
	Format   SampleFormat
	RateHz   int
	Channels int
	Layout   []string // e.g. ["FL", "FR", "LFE", ...]; nil means default order
}

// FrameBytes returns the size, in bytes, of one frame (one sample per
// channel) in this format.
func (f AudioFormat) FrameBytes() int {
	return f.Format.BytesPerSample() * f.Channels
}

// StreamID packs a 16-bit client id into the upper half and a per-client
// sequence number into the lower half, per §3.
type StreamID uint32

// NewStreamID builds a StreamID from a client id and a per-client sequence.
func NewStreamID(clientID, seq uint16) StreamID {
	return StreamID(uint32(clientID)<<16 | uint32(seq))
}

// ClientID returns the client-id half of the stream id.
func (s StreamID) ClientID() uint16 {
	return uint16(s >> 16)
}

// Seq returns the per-client sequence half of the stream id.
func (s StreamID) Seq() uint16 {
	return uint16(s)
}

// EffectFlags is a set of per-stream effect bits (§9: model bit-field flag
// enums as an explicit set with union/difference/contains, never overload
// the sign bit).
type EffectFlags uint32

const (
	EffectNone        EffectFlags = 0
	EffectBulkAudioOK EffectFlags = 1 << iota
	EffectUseDevTiming
	EffectEchoCancel
	EffectNoiseSuppress
)

// Contains reports whether every bit in other is set in f.
func (f EffectFlags) Contains(other EffectFlags) bool { return f&other == other }

// Union returns the bitwise union of f and other.
func (f EffectFlags) Union(other EffectFlags) EffectFlags { return f | other }

// Difference returns f with every bit in other cleared.
func (f EffectFlags) Difference(other EffectFlags) EffectFlags { return f &^ other }

// DeviceState is the iodev lifecycle state (§4.2).
type DeviceState int

const (
	StateClose DeviceState = iota
	StateOpen
	StateNormalRun
	StateNoStreamRun
)

func (s DeviceState) String() string {
	switch s {
	case StateClose:
		return "CLOSE"
	case StateOpen:
		return "OPEN"
	case StateNormalRun:
		return "NORMAL_RUN"
	case StateNoStreamRun:
		return "NO_STREAM_RUN"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NoDevice is the sentinel target device index meaning "use default
// routing" on a CONNECT_STREAM request (§6).
const NoDevice = -1

// DeviceIndex identifies a device stably for the lifetime of the process.
type DeviceIndex int

// SevereUnderrun is the frames_queued() sentinel meaning the hardware has
// lost its stream entirely (§4.1, §4.7).
const SevereUnderrun = -1

package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Control-thread <-> realtime-thread message bus (§4.11, §5).
 *	    All cross-thread mutations travel as typed, fixed-shape
 *	    messages. The teacher's tq.go hands packets from a producer to
 *	    a waiting transmit thread via a mutex + condition variable and
 *	    a queue per channel; here a buffered channel per bus instance
 *	    plays that role, which is the idiomatic Go equivalent for a
 *	    single-process SPSC-ish handoff and composes directly with the
 *	    realtime thread's select-based poll loop (§5 "Polls the union
 *	    of ... the control-thread command queue fd").
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
)

// MessageKind discriminates the fixed set of control->realtime commands
// (§4.11).
type MessageKind int

const (
	MsgAddStream MessageKind = iota
	MsgRemoveStream
	MsgAddDevice
	MsgRemoveDevice
	MsgSwitchProfile
	MsgScheduleSuspend
	MsgCancelSuspend
	MsgDumpDebug
)

func (k MessageKind) String() string {
	switch k {
	case MsgAddStream:
		return "ADD_STREAM"
	case MsgRemoveStream:
		return "REMOVE_STREAM"
	case MsgAddDevice:
		return "ADD_DEV"
	case MsgRemoveDevice:
		return "REMOVE_DEV"
	case MsgSwitchProfile:
		return "SWITCH_PROFILE"
	case MsgScheduleSuspend:
		return "SCHEDULE_SUSPEND"
	case MsgCancelSuspend:
		return "CANCEL_SUSPEND"
	case MsgDumpDebug:
		return "DUMP_DEBUG"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// Message is one fixed-shape command crossing from the control thread to
// the realtime thread. Exactly the fields relevant to Kind are
// meaningful; this mirrors §4.11's "typed, fixed-size messages" without
// literally fixing wire layout, since both ends are the same process.
type Message struct {
	Kind MessageKind

	Stream *Stream      // ADD_STREAM
	Device *Device      // ADD_STREAM/ADD_DEV/REMOVE_DEV/SWITCH_PROFILE/SCHEDULE_SUSPEND/CANCEL_SUSPEND
	Devs   []*Device     // ADD_STREAM: device_list
	StreamID StreamID    // REMOVE_STREAM
	Enable bool          // SWITCH_PROFILE
	DelayMS int          // SCHEDULE_SUSPEND

	// reply, when non-nil, is closed by the realtime thread once the
	// message has been fully applied, so a sender that must block
	// (§4.11 "responses are delivered via a reply fd when the sender
	// must block") can wait on it. Err carries the result.
	reply chan error
}

// Bus is the fixed-capacity command queue the realtime thread drains at
// the top of every cycle (§4.11). Messages never allocate on the hot
// path beyond the Message value itself, since the channel is
// pre-sized and Message carries only pointers/small values.
type Bus struct {
	ch chan Message
}

// NewBus creates a bus with room for capacity in-flight messages.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ch: make(chan Message, capacity)}
}

// C exposes the receive side for the realtime thread's select loop
// (§5: "Polls the union of ... the control-thread command queue fd").
func (b *Bus) C() <-chan Message { return b.ch }

// Post enqueues msg without waiting for it to be applied.
func (b *Bus) Post(msg Message) {
	msg.reply = nil
	b.ch <- msg
}

// PostAndWait enqueues msg and blocks until the realtime thread has
// applied it, returning any error it reported.
func (b *Bus) PostAndWait(ctx context.Context, msg Message) error {
	reply := make(chan error, 1)
	msg.reply = reply
	select {
	case b.ch <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ack reports the result of applying msg back to a PostAndWait caller, if
// any. The realtime thread calls this exactly once per drained message.
func (msg Message) Ack(err error) {
	if msg.reply != nil {
		msg.reply <- err
	}
}

// Drain removes and returns every message currently queued, without
// blocking, for the realtime thread to apply at the top of a cycle.
func (b *Bus) Drain() []Message {
	var out []Message
	for {
		select {
		case m := <-b.ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

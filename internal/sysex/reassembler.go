// Package sysex implements the System Exclusive fragment reassembly
// state machine that every inbound Port and VirtualPort runs its raw
// driver callback data through.
package sysex

// Reassembler folds a stream of raw inbound MIDI fragments into
// complete messages, buffering partial SysEx sequences across
// multiple fragments. It is not safe for concurrent use; callers feed
// it from a single serialized path (the driver callback for a given
// port already is one).
type Reassembler struct {
	buffering bool
	buffer    []byte
}

// Feed delivers one fragment of raw bytes as reported by a byte-level
// driver callback. It returns the message completed by this fragment,
// or nil if the fragment didn't complete one.
//
// A fragment starting with 0xF0 always resets any partial buffer,
// whether or not a SysEx message was already in progress — a fresh
// 0xF0 can only mean the previous one was abandoned.
func (r *Reassembler) Feed(fragment []byte) []byte {
	n := len(fragment)
	if n == 0 {
		return nil
	}
	startsF0 := fragment[0] == 0xF0
	endsF7 := fragment[n-1] == 0xF7

	switch {
	case startsF0 && endsF7:
		r.buffering = false
		r.buffer = nil
		return clone(fragment)

	case startsF0:
		r.buffering = true
		r.buffer = clone(fragment)
		return nil

	case r.buffering && endsF7:
		msg := append(r.buffer, fragment...)
		r.buffering = false
		r.buffer = nil
		return msg

	case r.buffering:
		r.buffer = append(r.buffer, fragment...)
		return nil

	default:
		return clone(fragment)
	}
}

// FeedPayload handles the case where the underlying driver has
// already reassembled a complete SysEx message itself and hands back
// only the interior payload, without the 0xF0/0xF7 framing bytes. It
// does not touch buffering state — the driver, not this reassembler,
// did the buffering in that case.
func FeedPayload(payload []byte) []byte {
	msg := make([]byte, 0, len(payload)+2)
	msg = append(msg, 0xF0)
	msg = append(msg, payload...)
	msg = append(msg, 0xF7)
	return msg
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Package port implements the two port kinds this system routes
// messages through: Port (an existing platform device) and
// VirtualPort (an OS-visible endpoint this system creates). Both share
// the inbound-queue/SysEx-reassembly/routing-callback machinery in
// base; only how bytes reach and leave the underlying driver differs.
package port

import (
	"errors"
	"sync"
	"time"

	"github.com/audiocontrol-org/midi-server/internal/logs"
	"github.com/audiocontrol-org/midi-server/internal/mididriver"
	"github.com/audiocontrol-org/midi-server/internal/sysex"
)

var (
	ErrClosed        = errors.New("port: closed")
	ErrNotOutput     = errors.New("port: not an output")
	ErrNotInput      = errors.New("port: not an input")
	ErrEmptyMessage  = errors.New("port: empty message")
	ErrInvalidSysEx  = errors.New("port: invalid sysex framing")
	ErrInvalidLength = errors.New("port: invalid message length")
)

// RouteCallback is invoked for every complete inbound message,
// outside of any lock the port holds, so it is free to call back into
// the route manager and registry without risking deadlock.
type RouteCallback func(sourcePortID string, message []byte)

// Handle is the capability set the registry and HTTP layer need from
// either port kind.
type Handle interface {
	ID() string
	Name() string
	IsInput() bool
	IsOpen() bool

	Send(message []byte) error
	Inject(message []byte) error
	TakeMessages() [][]byte

	SetRoutingCallback(cb RouteCallback)
	Close() error
}

type base struct {
	id      string
	name    string
	isInput bool
	log     *logs.Logger

	queueMu sync.Mutex
	open    bool
	queue   [][]byte
	reasm   sysex.Reassembler

	callbackMu sync.Mutex
	callback   RouteCallback
}

func (b *base) ID() string    { return b.id }
func (b *base) Name() string  { return b.name }
func (b *base) IsInput() bool { return b.isInput }

func (b *base) IsOpen() bool {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return b.open
}

func (b *base) SetRoutingCallback(cb RouteCallback) {
	b.callbackMu.Lock()
	b.callback = cb
	b.callbackMu.Unlock()
}

func (b *base) routingCallback() RouteCallback {
	b.callbackMu.Lock()
	defer b.callbackMu.Unlock()
	return b.callback
}

func (b *base) TakeMessages() [][]byte {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	msgs := b.queue
	b.queue = nil
	return msgs
}

func (b *base) markClosed() {
	b.queueMu.Lock()
	b.open = false
	b.queue = nil
	b.queueMu.Unlock()
}

// handleFragment feeds one raw inbound fragment through the SysEx
// reassembler; if it completes a message, the message is enqueued and
// the routing callback is invoked after the queue lock is released
// (mirroring VirtualMidiPort::handleIncomingMidiMessage's lock
// discipline: never call the routing callback while holding the
// queue lock).
func (b *base) handleFragment(fragment []byte) {
	b.queueMu.Lock()
	if !b.open {
		b.queueMu.Unlock()
		return
	}
	msg := b.reasm.Feed(fragment)
	if msg != nil {
		b.queue = append(b.queue, msg)
	}
	b.queueMu.Unlock()

	if msg != nil {
		b.log.Debugf("port %s: received %x", b.id, msg)
		b.fireCallback(msg)
	}
}

// inject pushes message directly onto the queue, bypassing the
// reassembler, then fires the routing callback — the same
// queue-then-callback ordering handleFragment uses.
func (b *base) inject(message []byte) {
	b.queueMu.Lock()
	if !b.open {
		b.queueMu.Unlock()
		return
	}
	b.queue = append(b.queue, message)
	b.queueMu.Unlock()

	b.log.Debugf("port %s: injected %x", b.id, message)
	b.fireCallback(message)
}

func (b *base) fireCallback(message []byte) {
	if cb := b.routingCallback(); cb != nil {
		cb(b.id, message)
	}
}

// sendValidated implements the outbound validation policy shared by
// Port and VirtualPort: well-framed SysEx, or a 1-3 byte short
// message; anything else is rejected and logged rather than silently
// dropped.
func sendValidated(log *logs.Logger, message []byte, sendShort, sendSysEx func([]byte) error) error {
	n := len(message)
	if n == 0 {
		log.Log("rejected send: empty message")
		return ErrEmptyMessage
	}
	if message[0] == 0xF0 {
		if n < 3 || message[n-1] != 0xF7 {
			log.Logf("rejected sysex send: invalid framing (%d bytes)", n)
			return ErrInvalidSysEx
		}
		log.Debugf("sending sysex %x", message)
		return sendSysEx(message[1 : n-1])
	}
	if n > 3 {
		log.Logf("rejected send: invalid length %d", n)
		return ErrInvalidLength
	}
	log.Debugf("sending %x", message)
	return sendShort(message)
}

// Port wraps an existing platform MIDI device.
type Port struct {
	base
	in  mididriver.In
	out mididriver.Out

	stopListening func() error
}

// OpenInput opens an existing input device, wiring its byte-level
// callback into the SysEx reassembler.
func OpenInput(id, name string, in mididriver.In, log *logs.Logger) (*Port, error) {
	p := &Port{base: base{id: id, name: name, isInput: true, log: log, open: true}, in: in}
	stop, err := in.Listen(func(fragment []byte, _ time.Time) {
		p.handleFragment(fragment)
	})
	if err != nil {
		return nil, err
	}
	p.stopListening = stop
	return p, nil
}

// OpenOutput wraps an already-opened output device.
func OpenOutput(id, name string, out mididriver.Out, log *logs.Logger) *Port {
	return &Port{base: base{id: id, name: name, isInput: false, log: log, open: true}, out: out}
}

func (p *Port) Send(message []byte) error {
	if !p.IsOpen() {
		return ErrClosed
	}
	if p.isInput {
		return ErrNotOutput
	}
	return sendValidated(p.log, message, p.out.SendShort, p.out.SendSysEx)
}

// Inject is never valid on a physical Port — only VirtualPort inputs
// support synthetic injection.
func (p *Port) Inject(message []byte) error {
	return ErrNotInput
}

func (p *Port) Close() error {
	p.markClosed()
	if p.in != nil {
		if p.stopListening != nil {
			_ = p.stopListening()
		}
		return p.in.Close()
	}
	return p.out.Close()
}

// VirtualPort is an OS-visible endpoint this system created.
type VirtualPort struct {
	base
	in  mididriver.In
	out mididriver.Out

	stopListening func() error
}

// CreateVirtualInput creates a new virtual input endpoint.
func CreateVirtualInput(id, name string, in mididriver.In, log *logs.Logger) (*VirtualPort, error) {
	p := &VirtualPort{base: base{id: id, name: name, isInput: true, log: log, open: true}, in: in}
	stop, err := in.Listen(func(fragment []byte, _ time.Time) {
		p.handleFragment(fragment)
	})
	if err != nil {
		return nil, err
	}
	p.stopListening = stop
	return p, nil
}

// CreateVirtualOutput creates a new virtual output endpoint.
func CreateVirtualOutput(id, name string, out mididriver.Out, log *logs.Logger) *VirtualPort {
	return &VirtualPort{base: base{id: id, name: name, isInput: false, log: log, open: true}, out: out}
}

func (p *VirtualPort) Send(message []byte) error {
	if !p.IsOpen() {
		return ErrClosed
	}
	if p.isInput {
		return ErrNotOutput
	}
	return sendValidated(p.log, message, p.out.SendShort, p.out.SendSysEx)
}

// Inject queues message as if it had arrived from the driver, and
// fires the routing callback — only valid on virtual inputs.
func (p *VirtualPort) Inject(message []byte) error {
	if !p.IsOpen() {
		return ErrClosed
	}
	if !p.isInput {
		return ErrNotInput
	}
	if len(message) == 0 {
		return ErrEmptyMessage
	}
	p.inject(message)
	return nil
}

func (p *VirtualPort) Close() error {
	p.markClosed()
	if p.in != nil {
		if p.stopListening != nil {
			_ = p.stopListening()
		}
		return p.in.Close()
	}
	return p.out.Close()
}

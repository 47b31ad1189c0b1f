// Package rtmidi implements mididriver.Driver on top of
// gitlab.com/gomidi/midi/v2's rtmididrv backend, the same driver
// library leafo/midirouter uses to talk to real MIDI hardware.
package rtmidi

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/audiocontrol-org/midi-server/internal/mididriver"
)

// Adapter wraps an *rtmididrv.Driver.
type Adapter struct {
	drv *rtmididrv.Driver
}

// New opens the platform's rtmidi driver.
func New() (*Adapter, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmidi: open driver: %w", err)
	}
	return &Adapter{drv: drv}, nil
}

func (a *Adapter) Close() error {
	return a.drv.Close()
}

func (a *Adapter) Inputs() ([]mididriver.DeviceInfo, error) {
	ins, err := a.drv.Ins()
	if err != nil {
		return nil, err
	}
	infos := make([]mididriver.DeviceInfo, len(ins))
	for i, in := range ins {
		infos[i] = mididriver.DeviceInfo{Name: in.String()}
	}
	return infos, nil
}

func (a *Adapter) Outputs() ([]mididriver.DeviceInfo, error) {
	outs, err := a.drv.Outs()
	if err != nil {
		return nil, err
	}
	infos := make([]mididriver.DeviceInfo, len(outs))
	for i, out := range outs {
		infos[i] = mididriver.DeviceInfo{Name: out.String()}
	}
	return infos, nil
}

func (a *Adapter) OpenInput(nameSubstring string) (mididriver.In, error) {
	ins, err := a.drv.Ins()
	if err != nil {
		return nil, err
	}
	for _, in := range ins {
		if strings.Contains(in.String(), nameSubstring) {
			if err := in.Open(); err != nil {
				return nil, fmt.Errorf("rtmidi: open input %q: %w", in.String(), err)
			}
			return &inHandle{in: in}, nil
		}
	}
	return nil, fmt.Errorf("rtmidi: no input matching %q", nameSubstring)
}

func (a *Adapter) OpenOutput(nameSubstring string) (mididriver.Out, error) {
	outs, err := a.drv.Outs()
	if err != nil {
		return nil, err
	}
	for _, out := range outs {
		if strings.Contains(out.String(), nameSubstring) {
			return wrapOutput(out)
		}
	}
	return nil, fmt.Errorf("rtmidi: no output matching %q", nameSubstring)
}

func (a *Adapter) CreateVirtualInput(name string) (mididriver.In, error) {
	in, err := a.drv.OpenVirtualIn(name)
	if err != nil {
		return nil, fmt.Errorf("rtmidi: create virtual input %q: %w", name, err)
	}
	return &inHandle{in: in}, nil
}

func (a *Adapter) CreateVirtualOutput(name string) (mididriver.Out, error) {
	out, err := a.drv.OpenVirtualOut(name)
	if err != nil {
		return nil, fmt.Errorf("rtmidi: create virtual output %q: %w", name, err)
	}
	return wrapOutput(out)
}

func wrapOutput(out drivers.Out) (mididriver.Out, error) {
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("rtmidi: open output %q: %w", out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("rtmidi: SendTo %q: %w", out.String(), err)
	}
	return &outHandle{out: out, send: send}, nil
}

type inHandle struct {
	in drivers.In
}

func (h *inHandle) Listen(cb func([]byte, time.Time)) (func() error, error) {
	stop, err := midi.ListenTo(h.in, func(msg midi.Message, _ int32) {
		cb([]byte(msg), time.Now())
	})
	if err != nil {
		return nil, err
	}
	return func() error {
		stop()
		return nil
	}, nil
}

func (h *inHandle) Close() error {
	return h.in.Close()
}

type outHandle struct {
	out  drivers.Out
	send func(midi.Message) error
}

func (h *outHandle) SendShort(message []byte) error {
	return h.send(midi.Message(message))
}

func (h *outHandle) SendSysEx(interior []byte) error {
	full := make([]byte, 0, len(interior)+2)
	full = append(full, 0xF0)
	full = append(full, interior...)
	full = append(full, 0xF7)
	return h.send(midi.Message(full))
}

func (h *outHandle) Close() error {
	return h.out.Close()
}

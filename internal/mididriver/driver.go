// Package mididriver defines the small interface this system consumes
// from a platform MIDI subsystem. internal/port and internal/registry
// depend only on this package, never on a concrete driver library, so
// this package and everything built on it stays buildable and
// testable without any native MIDI library present.
package mididriver

import "time"

// DeviceInfo describes one platform MIDI device as reported by
// enumeration.
type DeviceInfo struct {
	Name string
}

// In is an open platform MIDI input handle.
type In interface {
	// Listen installs the byte-level callback invoked on the driver's
	// own thread for every raw inbound fragment. The returned stop
	// function detaches the callback; it does not close the handle.
	Listen(cb func(fragment []byte, receivedAt time.Time)) (stop func() error, err error)
	Close() error
}

// Out is an open platform MIDI output handle.
type Out interface {
	// SendShort sends a non-SysEx message of 1-3 bytes.
	SendShort(message []byte) error
	// SendSysEx sends interior, which excludes the 0xF0/0xF7 framing
	// bytes — the caller (internal/port) has already validated framing.
	SendSysEx(interior []byte) error
	Close() error
}

// Driver is the platform MIDI subsystem: enumeration, opening existing
// devices by name, and creating OS-visible virtual endpoints.
type Driver interface {
	Inputs() ([]DeviceInfo, error)
	Outputs() ([]DeviceInfo, error)

	OpenInput(nameSubstring string) (In, error)
	OpenOutput(nameSubstring string) (Out, error)

	CreateVirtualInput(name string) (In, error)
	CreateVirtualOutput(name string) (Out, error)

	Close() error
}

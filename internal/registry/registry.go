// Package registry owns every live Port and VirtualPort. It is the
// only package that calls the mididriver.Driver (enumeration, opening
// and creating endpoints); internal/port only uses the In/Out handles
// the registry hands it. The route manager only ever reaches ports
// through the registry's SendToLocal and EnsureLocalPhysicalOpen
// callbacks.
package registry

import (
	"sync"

	"github.com/audiocontrol-org/midi-server/internal/logs"
	"github.com/audiocontrol-org/midi-server/internal/mididriver"
	"github.com/audiocontrol-org/midi-server/internal/port"
	"github.com/audiocontrol-org/midi-server/internal/portid"
)

// Registry tracks physical ports and virtual ports in two disjoint
// namespaces: physical[physicalPortId] and virtual[bareVirtualId]
// (the "virtual:" prefix stripped, since it's implied by the map).
type Registry struct {
	driver mididriver.Driver
	log    *logs.Logger

	mu       sync.Mutex
	physical map[string]port.Handle
	virtual  map[string]port.Handle
	routeCB  port.RouteCallback
}

// New creates a Registry backed by driver.
func New(driver mididriver.Driver, log *logs.Logger) *Registry {
	return &Registry{
		driver:   driver,
		log:      log,
		physical: make(map[string]port.Handle),
		virtual:  make(map[string]port.Handle),
	}
}

// SetRoutingCallback installs the callback newly opened/created ports
// are wired to. It does not retroactively rewire ports already open.
func (r *Registry) SetRoutingCallback(cb port.RouteCallback) {
	r.mu.Lock()
	r.routeCB = cb
	r.mu.Unlock()
}

// OpenPhysical opens an existing physical device by name, under
// portID, unless portID is already open. Open failures are reported
// as (false, nil): a platform-level open failure is not itself an
// application error.
func (r *Registry) OpenPhysical(portID, name string, dir portid.Direction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.physical[portID]; exists {
		return false, nil
	}

	var h port.Handle
	var err error
	if dir == portid.DirectionInput {
		var in mididriver.In
		in, err = r.driver.OpenInput(name)
		if err == nil {
			var p *port.Port
			p, err = port.OpenInput(portID, name, in, r.log)
			if err == nil {
				p.SetRoutingCallback(r.routeCB)
				h = p
			}
		}
	} else {
		var out mididriver.Out
		out, err = r.driver.OpenOutput(name)
		if err == nil {
			h = port.OpenOutput(portID, name, out, r.log)
		}
	}
	if err != nil {
		r.log.Logf("open physical port %s (%q): %v", portID, name, err)
		return false, nil
	}

	r.physical[portID] = h
	return true, nil
}

// ClosePhysical closes and forgets a physical port.
func (r *Registry) ClosePhysical(portID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.physical[portID]
	if !ok {
		return false
	}
	delete(r.physical, portID)
	if err := h.Close(); err != nil {
		r.log.Logf("close physical port %s: %v", portID, err)
	}
	return true
}

// CreateVirtual creates a new OS-visible virtual endpoint under
// fullPortID (expected to already carry the "virtual:" prefix).
func (r *Registry) CreateVirtual(fullPortID, name string, dir portid.Direction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bare := portid.StripVirtualPrefix(fullPortID)
	if _, exists := r.virtual[bare]; exists {
		return false, nil
	}

	var h port.Handle
	var err error
	if dir == portid.DirectionInput {
		var in mididriver.In
		in, err = r.driver.CreateVirtualInput(name)
		if err == nil {
			var vp *port.VirtualPort
			vp, err = port.CreateVirtualInput(fullPortID, name, in, r.log)
			if err == nil {
				vp.SetRoutingCallback(r.routeCB)
				h = vp
			}
		}
	} else {
		var out mididriver.Out
		out, err = r.driver.CreateVirtualOutput(name)
		if err == nil {
			h = port.CreateVirtualOutput(fullPortID, name, out, r.log)
		}
	}
	if err != nil {
		r.log.Logf("create virtual port %s (%q): %v", fullPortID, name, err)
		return false, nil
	}

	r.virtual[bare] = h
	return true, nil
}

// DeleteVirtual closes and forgets a virtual port. portID may or may
// not carry the "virtual:" prefix.
func (r *Registry) DeleteVirtual(portID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bare := portid.StripVirtualPrefix(portID)
	h, ok := r.virtual[bare]
	if !ok {
		return false
	}
	delete(r.virtual, bare)
	if err := h.Close(); err != nil {
		r.log.Logf("close virtual port %s: %v", portID, err)
	}
	return true
}

func (r *Registry) lookupLocked(portID string) (port.Handle, bool) {
	if portid.IsVirtual(portID) {
		h, ok := r.virtual[portid.StripVirtualPrefix(portID)]
		return h, ok
	}
	h, ok := r.physical[portID]
	return h, ok
}

// Get returns the open port.Handle for portID, if any.
func (r *Registry) Get(portID string) (port.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(portID)
}

// SendToLocal is the local-forward callback the route manager's hot
// path drives local-destination routes through.
func (r *Registry) SendToLocal(destPortID string, message []byte) {
	r.mu.Lock()
	h, ok := r.lookupLocked(destPortID)
	r.mu.Unlock()

	if !ok {
		r.log.Logf("dropped forwarded message: unknown local destination %s", destPortID)
		return
	}
	r.log.Debugf("local forward to %s: %x", destPortID, message)
	if err := h.Send(message); err != nil {
		r.log.Logf("local forward to %s failed: %v", destPortID, err)
	}
}

// EnsureLocalPhysicalOpen opens portID/portName if it names a local
// physical port and isn't already open, inferring direction from the
// PortId's conventional prefix. Used for auto-open on startup and on
// route creation. A no-op for virtual or empty endpoints.
func (r *Registry) EnsureLocalPhysicalOpen(portID, portName string) {
	if portID == "" || portName == "" || portid.IsVirtual(portID) {
		return
	}

	r.mu.Lock()
	_, exists := r.physical[portID]
	r.mu.Unlock()
	if exists {
		return
	}

	dir := portid.InferDirection(portID)
	if ok, err := r.OpenPhysical(portID, portName, dir); err != nil || !ok {
		r.log.Logf("auto-open did not succeed for %s (%q)", portID, portName)
	}
}

// ListPorts enumerates every physical device the platform driver
// currently reports, regardless of whether this system has it open.
func (r *Registry) ListPorts() (inputs, outputs []string, err error) {
	ins, err := r.driver.Inputs()
	if err != nil {
		return nil, nil, err
	}
	outs, err := r.driver.Outputs()
	if err != nil {
		return nil, nil, err
	}
	for _, d := range ins {
		inputs = append(inputs, d.Name)
	}
	for _, d := range outs {
		outputs = append(outputs, d.Name)
	}
	return inputs, outputs, nil
}

// ListVirtual enumerates this system's own virtual ports, full
// "virtual:"-prefixed ids.
func (r *Registry) ListVirtual() (inputs, outputs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for bare, h := range r.virtual {
		full := portid.VirtualPrefix + bare
		if h.IsInput() {
			inputs = append(inputs, full)
		} else {
			outputs = append(outputs, full)
		}
	}
	return inputs, outputs
}

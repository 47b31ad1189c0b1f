package route

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/audiocontrol-org/midi-server/internal/logs"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []pendingRequest
	closed bool
}

func (f *fakeSender) Send(path string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pendingRequest{path: path, body: body})
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func newTestManager(t *testing.T) (*Manager, map[string]*fakeSender) {
	t.Helper()
	senders := make(map[string]*fakeSender)
	path := filepath.Join(t.TempDir(), "routes.json")
	m := New(path, logs.New(io.Discard), func(host string, port int) RemoteSender {
		key := host
		s := &fakeSender{}
		senders[key] = s
		return s
	}, func(string, string) {})
	return m, senders
}

func TestAddRouteGeneratesIDWhenNotProvided(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, true, "")
	if id == "" {
		t.Fatalf("expected generated id")
	}
	routes := m.ListRoutes()
	if len(routes) != 1 || routes[0].ID != id {
		t.Fatalf("got %v", routes)
	}
}

func TestForwardDispatchesToLocalDestination(t *testing.T) {
	m, _ := newTestManager(t)
	var gotPort string
	var gotMsg []byte
	m.SetLocalForwarder(func(destPortID string, message []byte) {
		gotPort, gotMsg = destPortID, message
	})
	m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, true, "")

	m.Forward("input-0", []byte{0x90, 0x40, 0x7F})

	if gotPort != "output-0" {
		t.Fatalf("got destination %q", gotPort)
	}
	if string(gotMsg) != string([]byte{0x90, 0x40, 0x7F}) {
		t.Fatalf("got message %v", gotMsg)
	}
	routes := m.ListRoutes()
	if routes[0].MessagesForwarded != 1 {
		t.Fatalf("got count %d, want 1", routes[0].MessagesForwarded)
	}
}

func TestForwardSkipsDisabledRoutes(t *testing.T) {
	m, _ := newTestManager(t)
	called := false
	m.SetLocalForwarder(func(string, []byte) { called = true })
	m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, false, "")

	m.Forward("input-0", []byte{0x90, 0x40, 0x7F})

	if called {
		t.Fatalf("disabled route should not forward")
	}
}

func TestForwardDispatchesToMultipleRoutesIndependently(t *testing.T) {
	m, _ := newTestManager(t)
	var calls []string
	m.SetLocalForwarder(func(destPortID string, _ []byte) { calls = append(calls, destPortID) })
	m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, true, "")
	m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-1"}, true, "")

	m.Forward("input-0", []byte{0x90, 0x40, 0x7F})

	if len(calls) != 2 {
		t.Fatalf("got %v", calls)
	}
}

func TestForwardEnqueuesRemoteRequestWithByteArrayBody(t *testing.T) {
	m, senders := newTestManager(t)
	m.AddRoute(
		Endpoint{PortID: "input-0"},
		Endpoint{ServerURL: "http://192.168.1.5:9000", PortID: "virtual:synth"},
		true, "",
	)

	m.Forward("input-0", []byte{0x90, 0x40, 0x7F})

	s, ok := senders["192.168.1.5"]
	if !ok {
		t.Fatalf("expected a forwarder created for 192.168.1.5, got %v", senders)
	}
	if len(s.sent) != 1 {
		t.Fatalf("got %d sent requests", len(s.sent))
	}
	if s.sent[0].path != "/virtual/synth/send" {
		t.Fatalf("got path %q", s.sent[0].path)
	}
	var body sendBody
	if err := json.Unmarshal(s.sent[0].body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(body.Message) != 3 || body.Message[0] != 0x90 {
		t.Fatalf("got body %v", body)
	}
}

func TestRemovePersistsAndForgetsRoute(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, true, "")
	if !m.RemoveRoute(id) {
		t.Fatalf("expected removal to succeed")
	}
	if len(m.ListRoutes()) != 0 {
		t.Fatalf("expected no routes left")
	}
	if m.RemoveRoute(id) {
		t.Fatalf("second removal should fail")
	}
}

func TestSetRouteEnabledTogglesFlag(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, true, "")
	if !m.SetRouteEnabled(id, false) {
		t.Fatalf("expected toggle to succeed")
	}
	routes := m.ListRoutes()
	if routes[0].Enabled {
		t.Fatalf("expected route to be disabled")
	}
}

func TestPersistedRoutesSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.json")
	newSender := func(string, int) RemoteSender { return &fakeSender{} }

	m1 := New(path, logs.New(io.Discard), newSender, func(string, string) {})
	id := m1.AddRoute(Endpoint{PortID: "input-0"}, Endpoint{PortID: "output-0"}, true, "")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected persisted file: %v", err)
	}

	m2 := New(path, logs.New(io.Discard), newSender, func(string, string) {})
	routes := m2.ListRoutes()
	if len(routes) != 1 || routes[0].ID != id {
		t.Fatalf("got %v", routes)
	}
}

func TestAutoOpenAllVisitsBothEndpointsOfEveryRoute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.json")
	var opened []string
	m := New(path, logs.New(io.Discard), func(string, int) RemoteSender { return &fakeSender{} },
		func(portID, portName string) { opened = append(opened, portID) })

	m.AddRoute(Endpoint{PortID: "input-0", PortName: "In"}, Endpoint{PortID: "output-0", PortName: "Out"}, true, "")
	opened = nil // AddRoute already triggers it; reset to test AutoOpenAll in isolation

	m.AutoOpenAll()

	if len(opened) != 2 {
		t.Fatalf("got %v", opened)
	}
}

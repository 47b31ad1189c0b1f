// Package route implements the routing table (Manager) and the
// per-destination remote delivery worker (RemoteForwarder).
package route

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/audiocontrol-org/midi-server/internal/logs"
	"github.com/audiocontrol-org/midi-server/internal/portid"
)

var ErrNotFound = errors.New("route: not found")

// LocalForwarder delivers a message to a local destination port. Set
// once at wiring time to the registry's SendToLocal — a non-owning
// callback, which keeps this package from importing the registry.
type LocalForwarder func(destPortID string, message []byte)

// RemoteSender enqueues one message for eventual delivery to a single
// remote bridge instance. Satisfied by *RemoteForwarder; abstracted so
// tests can substitute a recording fake.
type RemoteSender interface {
	Send(path string, body []byte)
	Close()
}

// Manager owns the route table and one RemoteForwarder per distinct
// remote host:port destination.
type Manager struct {
	configPath string
	log        *logs.Logger
	newSender  func(host string, port int) RemoteSender
	autoOpen   func(portID, portName string)

	routesMu sync.Mutex
	routes   []*Route
	local    LocalForwarder

	forwardersMu sync.Mutex
	forwarders   map[string]RemoteSender
}

// New creates a Manager and loads any persisted routes from
// configPath. newSender builds the RemoteSender for a given
// destination the first time it's needed; autoOpen is called for
// every local physical endpoint referenced by a loaded or newly added
// route.
func New(configPath string, log *logs.Logger, newSender func(host string, port int) RemoteSender, autoOpen func(portID, portName string)) *Manager {
	m := &Manager{
		configPath: configPath,
		log:        log,
		newSender:  newSender,
		autoOpen:   autoOpen,
		forwarders: make(map[string]RemoteSender),
	}
	m.load()
	return m
}

// SetLocalForwarder installs the callback local-destination routes
// dispatch through.
func (m *Manager) SetLocalForwarder(f LocalForwarder) {
	m.routesMu.Lock()
	m.local = f
	m.routesMu.Unlock()
}

// AutoOpenAll triggers auto-open for every endpoint of every persisted
// route, meant to run once at startup after loading.
func (m *Manager) AutoOpenAll() {
	m.routesMu.Lock()
	routes := make([]*Route, len(m.routes))
	copy(routes, m.routes)
	m.routesMu.Unlock()

	for _, r := range routes {
		m.autoOpenEndpoint(r.Source)
		m.autoOpenEndpoint(r.Destination)
	}
}

func (m *Manager) autoOpenEndpoint(e Endpoint) {
	if e.IsLocal() && m.autoOpen != nil {
		m.autoOpen(e.PortID, e.PortName)
	}
}

// AddRoute creates a route with a generated id, unless requestedID is
// non-empty, in which case it's used (regenerating on collision).
// Local endpoints are auto-opened as a side effect.
func (m *Manager) AddRoute(source, destination Endpoint, enabled bool, requestedID string) string {
	m.routesMu.Lock()
	id := requestedID
	if id == "" || m.findLocked(id) != nil {
		id = m.generateRouteIDLocked()
	}
	r := &Route{ID: id, Enabled: enabled, Source: source, Destination: destination}
	m.routes = append(m.routes, r)
	m.saveLocked()
	m.routesMu.Unlock()

	m.autoOpenEndpoint(source)
	m.autoOpenEndpoint(destination)

	return id
}

// RemoveRoute deletes a route by id.
func (m *Manager) RemoveRoute(id string) bool {
	m.routesMu.Lock()
	defer m.routesMu.Unlock()
	for i, r := range m.routes {
		if r.ID == id {
			m.routes = append(m.routes[:i], m.routes[i+1:]...)
			m.saveLocked()
			return true
		}
	}
	return false
}

// SetRouteEnabled toggles a route's enabled flag.
func (m *Manager) SetRouteEnabled(id string, enabled bool) bool {
	m.routesMu.Lock()
	defer m.routesMu.Unlock()
	r := m.findLocked(id)
	if r == nil {
		return false
	}
	r.Enabled = enabled
	m.saveLocked()
	return true
}

func (m *Manager) findLocked(id string) *Route {
	for _, r := range m.routes {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// ListRoutes returns a snapshot copy of every route, in insertion order.
func (m *Manager) ListRoutes() []Route {
	m.routesMu.Lock()
	defer m.routesMu.Unlock()
	out := make([]Route, len(m.routes))
	for i, r := range m.routes {
		out[i] = *r
	}
	return out
}

// Forward is the hot path: every enabled route whose source matches
// sourcePortID gets message dispatched to its destination. No
// deduplication across routes sharing a destination — each match
// dispatches and counts independently.
func (m *Manager) Forward(sourcePortID string, message []byte) {
	m.routesMu.Lock()
	var matched []*Route
	for _, r := range m.routes {
		if r.Enabled && r.Source.PortID == sourcePortID {
			matched = append(matched, r)
		}
	}
	local := m.local
	m.routesMu.Unlock()

	for _, r := range matched {
		m.dispatch(r, local, message)
		m.routesMu.Lock()
		r.MessagesForwarded++
		m.routesMu.Unlock()
	}
}

func (m *Manager) dispatch(r *Route, local LocalForwarder, message []byte) {
	m.log.Debugf("route %s: dispatching %x to %s", r.ID, message, r.Destination.PortID)
	if r.Destination.IsLocal() {
		if local == nil {
			m.log.Log("forward: no local forwarder installed")
			return
		}
		local(r.Destination.PortID, message)
		return
	}

	host, port, err := parseRemote(r.Destination.ServerURL)
	if err != nil {
		m.log.Logf("forward: bad remote url %q: %v", r.Destination.ServerURL, err)
		return
	}

	body, err := json.Marshal(sendBody{Message: bytesToInts(message)})
	if err != nil {
		m.log.Logf("forward: marshal message: %v", err)
		return
	}

	m.forwarderFor(host, port).Send(remotePath(r.Destination.PortID), body)
}

type sendBody struct {
	Message []int `json:"message"`
}

func bytesToInts(b []byte) []int {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return ints
}

// remotePath builds the path a destination is forwarded to on the
// remote bridge: /virtual/{id}/send for a virtual destination (the
// "virtual:" prefix stripped), /port/{id}/send otherwise. The path is
// always recomputed from the current destination, never cached.
func remotePath(destPortID string) string {
	if portid.IsVirtual(destPortID) {
		return "/virtual/" + portid.StripVirtualPrefix(destPortID) + "/send"
	}
	return "/port/" + destPortID + "/send"
}

func parseRemote(serverURL string) (host string, port int, err error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", 0, err
	}
	if u.Scheme != "http" {
		return "", 0, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host = u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("missing host in %q", serverURL)
	}
	port = 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("bad port in %q: %w", serverURL, err)
		}
	}
	return host, port, nil
}

func (m *Manager) forwarderFor(host string, port int) RemoteSender {
	key := fmt.Sprintf("%s:%d", host, port)

	m.forwardersMu.Lock()
	defer m.forwardersMu.Unlock()
	f, ok := m.forwarders[key]
	if !ok {
		f = m.newSender(host, port)
		m.forwarders[key] = f
		m.log.Logf("opened persistent forwarder to %s", key)
	}
	return f
}

// Close shuts down every open RemoteForwarder. Queued-but-undelivered
// messages are discarded.
func (m *Manager) Close() {
	m.forwardersMu.Lock()
	defer m.forwardersMu.Unlock()
	for key, f := range m.forwarders {
		f.Close()
		delete(m.forwarders, key)
	}
}

const routeIDChars = "abcdefghijklmnopqrstuvwxyz0123456789"

func (m *Manager) generateRouteIDLocked() string {
	for {
		id := fmt.Sprintf("route-%d-%s", time.Now().Unix(), randomSuffix())
		if m.findLocked(id) == nil {
			return id
		}
	}
}

// randomSuffix isn't cryptographically random — route ids gate nothing
// privileged, they only need to avoid colliding with each other.
func randomSuffix() string {
	b := make([]byte, 7)
	for i := range b {
		b[i] = routeIDChars[rand.Intn(len(routeIDChars))]
	}
	return string(b)
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Logf("route: failed to read %s: %v", m.configPath, err)
		}
		return
	}

	var doc persistedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		m.log.Logf("route: malformed routes file %s, starting empty: %v", m.configPath, err)
		return
	}

	for _, pr := range doc.Routes {
		if pr.ID == "" || pr.Source.PortID == "" || pr.Destination.PortID == "" {
			m.log.Log("route: skipping malformed persisted entry")
			continue
		}
		m.routes = append(m.routes, &Route{
			ID: pr.ID, Enabled: pr.Enabled, Source: pr.Source, Destination: pr.Destination,
		})
	}
	m.log.Logf("route: loaded %d route(s) from %s", len(m.routes), m.configPath)
}

func (m *Manager) saveLocked() {
	doc := persistedDoc{Routes: make([]persistedRoute, len(m.routes))}
	for i, r := range m.routes {
		doc.Routes[i] = persistedRoute{ID: r.ID, Enabled: r.Enabled, Source: r.Source, Destination: r.Destination}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		m.log.Logf("route: failed to marshal routes: %v", err)
		return
	}
	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		m.log.Logf("route: failed to write %s: %v", m.configPath, err)
	}
}

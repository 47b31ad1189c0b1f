// Package httpapi is the generic HTTP-to-core facade. It carries no
// routing or port logic of its own: every handler decodes JSON, calls
// into internal/registry or internal/route, and encodes JSON.
package httpapi

import (
	"io"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/audiocontrol-org/midi-server/internal/logs"
	"github.com/audiocontrol-org/midi-server/internal/registry"
	"github.com/audiocontrol-org/midi-server/internal/route"
)

// deps holds what every handler needs. It is unexported — handlers
// are methods on it, registered into a mux.Router by New.
type deps struct {
	registry *registry.Registry
	routes   *route.Manager
	log      *logs.Logger
}

// Server wraps the configured *http.Server.
type Server struct {
	http *http.Server
}

// New builds a Server wired to reg and routes. accessLog receives one
// Apache-style access log line per request, written via
// gorilla/handlers.LoggingHandler.
func New(reg *registry.Registry, routes *route.Manager, accessLog io.Writer, log *logs.Logger) *Server {
	d := &deps{registry: reg, routes: routes, log: log}

	r := mux.NewRouter()

	// withCORS below answers every OPTIONS preflight itself, so routes
	// only need to declare the real methods they serve.
	r.HandleFunc("/health", d.health).Methods(http.MethodGet)
	r.HandleFunc("/ports", d.listPorts).Methods(http.MethodGet)

	r.HandleFunc("/port/{portId}", d.openPort).Methods(http.MethodPost)
	r.HandleFunc("/port/{portId}", d.closePort).Methods(http.MethodDelete)
	r.HandleFunc("/port/{portId}/send", d.sendPort).Methods(http.MethodPost)
	r.HandleFunc("/port/{portId}/messages", d.drainPort).Methods(http.MethodGet)

	r.HandleFunc("/virtual", d.listVirtual).Methods(http.MethodGet)
	r.HandleFunc("/virtual/{portId}", d.createVirtual).Methods(http.MethodPost)
	r.HandleFunc("/virtual/{portId}", d.deleteVirtual).Methods(http.MethodDelete)
	r.HandleFunc("/virtual/{portId}/send", d.sendVirtual).Methods(http.MethodPost)
	r.HandleFunc("/virtual/{portId}/messages", d.drainVirtual).Methods(http.MethodGet)
	r.HandleFunc("/virtual/{portId}/inject", d.injectVirtual).Methods(http.MethodPost)

	r.HandleFunc("/routes", d.listRoutes).Methods(http.MethodGet)
	r.HandleFunc("/routes", d.createRoute).Methods(http.MethodPost)
	r.HandleFunc("/routes/{id}", d.setRouteEnabled).Methods(http.MethodPut)
	r.HandleFunc("/routes/{id}", d.deleteRoute).Methods(http.MethodDelete)

	var h http.Handler = withCORS(r)
	h = handlers.LoggingHandler(accessLog, h)

	return &Server{http: &http.Server{Handler: h}}
}

// Serve accepts connections on ln until the server is closed.
func (s *Server) Serve(ln net.Listener) error {
	return s.http.Serve(ln)
}

// Close shuts the HTTP server down immediately.
func (s *Server) Close() error {
	return s.http.Close()
}

package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setMuxVars attaches gorilla/mux path variables to r, the same way
// mux.Router does internally, so handler methods can be exercised
// directly in tests without routing a real request through a Router.
func setMuxVars(r *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(r, vars)
}

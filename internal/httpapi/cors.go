package httpapi

import "net/http"

// withCORS applies this server's cross-origin policy: every origin is
// allowed, for exactly the methods this HTTP surface uses. There is no
// origin-trust boundary to defend here — this bridge is meant to be
// reachable from any browser-based MIDI control surface on the local
// network, not just a single known web app.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

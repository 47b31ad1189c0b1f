package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/audiocontrol-org/midi-server/internal/port"
)

var errNotFound = errors.New("httpapi: not found")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps a core sentinel error to an HTTP status for its
// error kind. Lookup failures (not modeled as package sentinels,
// since "not found" is a registry/route-manager return value, not an
// error) are mapped by the caller directly.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrEmptyMessage),
		errors.Is(err, port.ErrInvalidSysEx),
		errors.Is(err, port.ErrInvalidLength),
		errors.Is(err, port.ErrNotOutput),
		errors.Is(err, port.ErrNotInput),
		errors.Is(err, port.ErrClosed):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// messageBody is the {"message":[b0,b1,...]} wire shape used for
// sent/received/injected messages. A plain []byte can't be used
// directly: encoding/json marshals []byte as a base64 string, not a
// JSON array of numbers.
type messageBody struct {
	Message []int `json:"message"`
}

func (m messageBody) bytes() []byte {
	b := make([]byte, len(m.Message))
	for i, v := range m.Message {
		b[i] = byte(v)
	}
	return b
}

func bytesToMessageBody(b []byte) messageBody {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return messageBody{Message: ints}
}

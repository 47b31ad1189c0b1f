package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/audiocontrol-org/midi-server/internal/portid"
)

func (d *deps) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *deps) listPorts(w http.ResponseWriter, r *http.Request) {
	inputs, outputs, err := d.registry.ListPorts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"inputs": inputs, "outputs": outputs})
}

type openPortBody struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (b openPortBody) direction() portid.Direction {
	if b.Type == "input" {
		return portid.DirectionInput
	}
	return portid.DirectionOutput
}

func (d *deps) openPort(w http.ResponseWriter, r *http.Request) {
	portID := mux.Vars(r)["portId"]

	var body openPortBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ok, err := d.registry.OpenPhysical(portID, body.Name, body.direction())
	if err != nil {
		d.log.Logf("open port %s: %v", portID, err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (d *deps) closePort(w http.ResponseWriter, r *http.Request) {
	portID := mux.Vars(r)["portId"]
	ok := d.registry.ClosePhysical(portID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (d *deps) sendPort(w http.ResponseWriter, r *http.Request) {
	d.send(w, r, mux.Vars(r)["portId"])
}

func (d *deps) drainPort(w http.ResponseWriter, r *http.Request) {
	d.drain(w, r, mux.Vars(r)["portId"])
}

// send and drain are shared between the /port/... and /virtual/...
// handlers; the two namespaces differ only in which PortId the
// registry is asked to look up.
func (d *deps) send(w http.ResponseWriter, r *http.Request, portID string) {
	var body messageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h, ok := d.registry.Get(portID)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	if err := h.Send(body.bytes()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeSuccess(w)
}

func (d *deps) drain(w http.ResponseWriter, r *http.Request, portID string) {
	h, ok := d.registry.Get(portID)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}

	msgs := h.TakeMessages()
	out := make([][]int, len(msgs))
	for i, m := range msgs {
		out[i] = bytesToMessageBody(m).Message
	}
	writeJSON(w, http.StatusOK, map[string][][]int{"messages": out})
}

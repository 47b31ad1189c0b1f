package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/audiocontrol-org/midi-server/internal/portid"
)

func (d *deps) listVirtual(w http.ResponseWriter, r *http.Request) {
	inputs, outputs := d.registry.ListVirtual()
	writeJSON(w, http.StatusOK, map[string][]string{"inputs": inputs, "outputs": outputs})
}

func (d *deps) createVirtual(w http.ResponseWriter, r *http.Request) {
	portID := portid.WithVirtualPrefix(mux.Vars(r)["portId"])

	var body openPortBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ok, err := d.registry.CreateVirtual(portID, body.Name, body.direction())
	if err != nil {
		d.log.Logf("create virtual %s: %v", portID, err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (d *deps) deleteVirtual(w http.ResponseWriter, r *http.Request) {
	portID := mux.Vars(r)["portId"]
	ok := d.registry.DeleteVirtual(portID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (d *deps) sendVirtual(w http.ResponseWriter, r *http.Request) {
	d.send(w, r, portid.WithVirtualPrefix(mux.Vars(r)["portId"]))
}

func (d *deps) drainVirtual(w http.ResponseWriter, r *http.Request) {
	d.drain(w, r, portid.WithVirtualPrefix(mux.Vars(r)["portId"]))
}

func (d *deps) injectVirtual(w http.ResponseWriter, r *http.Request) {
	portID := portid.WithVirtualPrefix(mux.Vars(r)["portId"])

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
	if err := h.Inject(body.bytes()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeSuccess(w)
}

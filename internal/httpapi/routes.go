package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/audiocontrol-org/midi-server/internal/route"
)

type routeBody struct {
	ID          string         `json:"id"`
	Source      route.Endpoint `json:"source"`
	Destination route.Endpoint `json:"destination"`
	Enabled     *bool          `json:"enabled"`
}

type routeStatus struct {
	MessagesForwarded uint64 `json:"messagesForwarded"`
}

type routeView struct {
	ID          string         `json:"id"`
	Enabled     bool           `json:"enabled"`
	Source      route.Endpoint `json:"source"`
	Destination route.Endpoint `json:"destination"`
	Status      routeStatus    `json:"status"`
}

func toRouteView(r route.Route) routeView {
	return routeView{
		ID:          r.ID,
		Enabled:     r.Enabled,
		Source:      r.Source,
		Destination: r.Destination,
		Status:      routeStatus{MessagesForwarded: r.MessagesForwarded},
	}
}

func (d *deps) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes := d.routes.ListRoutes()
	views := make([]routeView, len(routes))
	for i, rt := range routes {
		views[i] = toRouteView(rt)
	}
	writeJSON(w, http.StatusOK, map[string][]routeView{"routes": views})
}

func (d *deps) createRoute(w http.ResponseWriter, r *http.Request) {
	var body routeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}

	id := d.routes.AddRoute(body.Source, body.Destination, enabled, body.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type enabledBody struct {
	Enabled bool `json:"enabled"`
}

func (d *deps) setRouteEnabled(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body enabledBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !d.routes.SetRouteEnabled(id, body.Enabled) {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeSuccess(w)
}

func (d *deps) deleteRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !d.routes.RemoveRoute(id) {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeSuccess(w)
}

package api

import (
	"net/http"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
)

type eventBody struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// CreateEvent accepts dates as 2006-01-02, RFC3339 or natural language ("next saturday").
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Events.CreateEvent(r.Context(), body.Name, body.Date, body.Description, Actor(r.Context()))
	respond(h, w, r, "CreateEvent", http.StatusCreated, res, err)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Events.ListEvents(r.Context(), limitParam(r, 50, 500))
	if err != nil {
		h.internal(w, r, "ListEvents", err)
		return
	}
	if events == nil {
		events = []eventdb.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

package api

import (
	"net/http"
)

// ServeWS subscribes the caller to live events of their family.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Live events are disabled")
		return
	}
	family := h.familyAccess(w, r, false)
	if family == nil {
		return
	}
	h.hub.ServeWS(w, r, family.ID)
}

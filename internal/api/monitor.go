package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
)

// MonitorResponse is the body of the monitor control endpoint.
type MonitorResponse struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message,omitempty"`
	Active   *bool               `json:"active,omitempty"`
	Interval int64               `json:"interval,omitempty"`
	Status   *monitor.Status     `json:"status,omitempty"`
	Result   *monitor.PassResult `json:"result,omitempty"`
}

func statusResponse(message string, s monitor.Status) MonitorResponse {
	active := s.Active
	return MonitorResponse{
		Success:  true,
		Message:  message,
		Active:   &active,
		Interval: s.IntervalMS,
		Status:   &s,
	}
}

// MonitorAction controls the warning monitor with ?action=start|stop|status|check.
// Only operators may start or stop it.
func (h *Handler) MonitorAction(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		action = "status"
	}

	if action == "start" || action == "stop" {
		user := getUserInfo(r)
		if user == nil || !h.operators[user.UserID] {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only operators can start or stop the warning monitor")
			return
		}
		h.logger.Info("Warning monitor control", "action", action, "user_id", user.UserID, "request_id", requestID(r))
	}

	switch action {
	case "start":
		s, started := h.monitor.Start()
		msg := "Warning monitor started"
		if !started {
			msg = "Warning monitor already running"
		}
		writeJSON(w, http.StatusOK, statusResponse(msg, s))

	case "stop":
		s, stopped := h.monitor.Stop()
		msg := "Warning monitor stopped"
		if !stopped {
			msg = "Warning monitor not running"
		}
		writeJSON(w, http.StatusOK, statusResponse(msg, s))

	case "status":
		writeJSON(w, http.StatusOK, statusResponse("", h.monitor.Status()))

	case "check":
		// the pass outlives a dropped client so a sent notification is always recorded
		result, err := h.monitor.Check(context.WithoutCancel(r.Context()))
		if errors.Is(err, monitor.ErrPassInProgress) {
			writeError(w, http.StatusConflict, "CONFLICT", err.Error())
			return
		}
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MonitorResponse{
			Success: true,
			Message: "Warning check completed",
			Result:  &result,
		})

	default:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "action must be start, stop, status or check")
	}
}

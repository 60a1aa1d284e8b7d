package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

const (
	defaultListWindow = 24 * time.Hour
	defaultListLimit  = 100
	maxListLimit      = 500
)

var (
	feedTypes   = map[string]bool{"breast": true, "bottle": true, "formula": true, "solid": true}
	diaperTypes = map[string]bool{"wet": true, "dirty": true, "mixed": true, "dry": true}
)

// Feed / diaper endpoints

// ListFeeds lists a baby's feeds. ?since= defaults to the last 24 hours.
func (h *Handler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	_, baby := h.babyAccess(w, r, false)
	if baby == nil {
		return
	}
	since, limit, ok := listParams(w, r, h.now())
	if !ok {
		return
	}

	logs, err := h.db.ListFeedLogs(r.Context(), baby.ID, since, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.FeedLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// CreateFeed logs a feed.
func (h *Handler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	family, baby := h.babyAccess(w, r, true)
	if baby == nil {
		return
	}

	var req models.FeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if !feedTypes[req.FeedType] {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "feedType must be breast, bottle, formula or solid")
		return
	}
	if req.Amount != nil && *req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "amount cannot be negative")
		return
	}
	at, err := parseTime(req.Time, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "time must be an RFC 3339 timestamp")
		return
	}

	feed, err := h.db.CreateFeedLog(r.Context(), baby.ID, at, &req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.publish(family.ID, baby.ID, string(models.WarningFeed))
	writeJSON(w, http.StatusCreated, feed)
}

// ListDiapers lists a baby's diaper changes. ?since= defaults to the last 24 hours.
func (h *Handler) ListDiapers(w http.ResponseWriter, r *http.Request) {
	_, baby := h.babyAccess(w, r, false)
	if baby == nil {
		return
	}
	since, limit, ok := listParams(w, r, h.now())
	if !ok {
		return
	}

	logs, err := h.db.ListDiaperLogs(r.Context(), baby.ID, since, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.DiaperLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// CreateDiaper logs a diaper change.
func (h *Handler) CreateDiaper(w http.ResponseWriter, r *http.Request) {
	family, baby := h.babyAccess(w, r, true)
	if baby == nil {
		return
	}

	var req models.DiaperRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if !diaperTypes[req.DiaperType] {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "diaperType must be wet, dirty, mixed or dry")
		return
	}
	at, err := parseTime(req.Time, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "time must be an RFC 3339 timestamp")
		return
	}

	change, err := h.db.CreateDiaperLog(r.Context(), baby.ID, at, &req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.publish(family.ID, baby.ID, string(models.WarningDiaper))
	writeJSON(w, http.StatusCreated, change)
}

// listParams reads ?since= and ?limit=, writing a 400 when either is invalid.
func listParams(w http.ResponseWriter, r *http.Request, now time.Time) (time.Time, int, bool) {
	q := r.URL.Query()

	since := now.Add(-defaultListWindow)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "since must be an RFC 3339 timestamp")
			return time.Time{}, 0, false
		}
		since = t
	}

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return time.Time{}, 0, false
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return since, limit, true
}

package api

import (
	"net/http"
	"strconv"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
)

// Notification settings endpoints

// GetNotificationSettings returns the family's warning configuration.
func (h *Handler) GetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, false)
	if family == nil {
		return
	}

	cfg, err := h.db.FamilySettings(r.Context(), family.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateNotificationSettings replaces the family's warning configuration.
func (h *Handler) UpdateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, true)
	if family == nil {
		return
	}

	var cfg models.WarningThresholdConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if msg := validateWarningConfig(&cfg); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}
	cfg.FamilyID = family.ID

	saved, err := h.db.UpsertFamilySettings(r.Context(), &cfg)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// validateWarningConfig fills in default warning times and returns a
// validation message, or "" when cfg is acceptable.
func validateWarningConfig(cfg *models.WarningThresholdConfig) string {
	if cfg.FeedWarningTime == "" {
		cfg.FeedWarningTime = models.DefaultFeedWarningTime
	}
	if cfg.DiaperWarningTime == "" {
		cfg.DiaperWarningTime = models.DefaultDiaperWarningTime
	}
	if _, ok := monitor.ParseWarningTime(cfg.FeedWarningTime); !ok {
		return "feedWarningTime must be HH:MM"
	}
	if _, ok := monitor.ParseWarningTime(cfg.DiaperWarningTime); !ok {
		return "diaperWarningTime must be HH:MM"
	}
	for _, v := range []*int{cfg.NotificationFeedAdvanceMinutes, cfg.NotificationDiaperAdvanceMinutes} {
		if v != nil && *v < 0 {
			return "advance minutes cannot be negative"
		}
	}
	return ""
}

// ListNotifications lists the warnings recently sent to the family.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, false)
	if family == nil {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid limit")
			return
		}
		limit = n
	}

	logs, err := h.db.ListNotifications(r.Context(), family.ID, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.NotificationLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

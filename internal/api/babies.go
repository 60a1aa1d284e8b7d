package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// Baby endpoints

// ListBabies lists the family's babies.
func (h *Handler) ListBabies(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, false)
	if family == nil {
		return
	}

	babies, err := h.db.ListBabies(r.Context(), family.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if babies == nil {
		babies = []models.Baby{}
	}
	writeJSON(w, http.StatusOK, babies)
}

// GetBaby gets one baby.
func (h *Handler) GetBaby(w http.ResponseWriter, r *http.Request) {
	_, baby := h.babyAccess(w, r, false)
	if baby == nil {
		return
	}
	writeJSON(w, http.StatusOK, baby)
}

// CreateBaby adds a baby to the family.
func (h *Handler) CreateBaby(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, true)
	if family == nil {
		return
	}

	var req models.BabyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.FirstName == nil || strings.TrimSpace(*req.FirstName) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "firstName is required")
		return
	}
	if msg := validateBabyRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	baby, err := h.db.CreateBaby(r.Context(), family.ID, &req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, baby)
}

// UpdateBaby updates a baby's details.
func (h *Handler) UpdateBaby(w http.ResponseWriter, r *http.Request) {
	family, baby := h.babyAccess(w, r, true)
	if baby == nil {
		return
	}

	var req models.BabyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "firstName cannot be empty")
		return
	}
	if msg := validateBabyRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	updated, err := h.db.UpdateBaby(r.Context(), family.ID, baby.ID, &req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// SetBabyInactive toggles whether the warning monitor watches a baby.
func (h *Handler) SetBabyInactive(w http.ResponseWriter, r *http.Request) {
	family, baby := h.babyAccess(w, r, true)
	if baby == nil {
		return
	}

	var req models.InactiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	updated, err := h.db.SetBabyInactive(r.Context(), family.ID, baby.ID, req.Inactive)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func validateBabyRequest(req *models.BabyRequest) string {
	if req.BirthDate != nil {
		if _, err := time.Parse("2006-01-02", *req.BirthDate); err != nil {
			return "birthDate must be YYYY-MM-DD"
		}
	}
	return ""
}

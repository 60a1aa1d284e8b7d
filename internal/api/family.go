package api

import (
	"net/http"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// Family endpoints

// GetFamily gets the family the user owns or cares for.
func (h *Handler) GetFamily(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)

	family, role, permission, err := h.getAccessibleFamily(r.Context(), user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No family found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.FamilyResponse{
		Family:     family,
		Role:       role,
		Permission: permission,
	})
}

// CreateFamily creates a family owned by the user.
func (h *Handler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)

	var req models.FamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Timezone != nil && !validTimezone(*req.Timezone) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown timezone")
		return
	}

	family, err := h.db.CreateFamily(r.Context(), user.UserID, &req)
	if err == db.ErrConflict {
		writeError(w, http.StatusConflict, "CONFLICT", "Family already exists")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.FamilyResponse{
		Family:     family,
		Role:       models.RoleOwner,
		Permission: models.PermissionWrite,
	})
}

// UpdateFamily updates the owner's family.
func (h *Handler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)
	ctx := r.Context()

	family, err := h.db.GetFamilyByOwner(ctx, user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the family owner can update the family")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	var req models.FamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Timezone != nil && !validTimezone(*req.Timezone) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown timezone")
		return
	}

	updated, err := h.db.UpdateFamily(ctx, family.ID, &req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.FamilyResponse{
		Family:     updated,
		Role:       models.RoleOwner,
		Permission: models.PermissionWrite,
	})
}

// GetMyRole returns the user's role and permission for the accessible family.
func (h *Handler) GetMyRole(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)

	family, role, permission, err := h.getAccessibleFamily(r.Context(), user.UserID)
	if err == db.ErrNotFound {
		writeJSON(w, http.StatusOK, models.MyRoleResponse{})
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.MyRoleResponse{
		Role:       role,
		Permission: permission,
		Family:     family,
	})
}

func validTimezone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

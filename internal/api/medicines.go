package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/dose"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// SafetyResponse is the dose safety view of a baby's medicines.
type SafetyResponse struct {
	States           []dose.State `json:"states"`
	PollAfterSeconds int          `json:"pollAfterSeconds"`
}

// Medicine endpoints

// ListMedicines lists the family's medicines. ?all=true includes inactive ones.
func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, false)
	if family == nil {
		return
	}

	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	medicines, err := h.db.ListMedicines(r.Context(), family.ID, includeInactive)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if medicines == nil {
		medicines = []models.Medicine{}
	}
	writeJSON(w, http.StatusOK, medicines)
}

// CreateMedicine creates a medicine definition.
func (h *Handler) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	family := h.familyAccess(w, r, true)
	if family == nil {
		return
	}

	var req models.MedicineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
		return
	}
	if msg := validateMedicineRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	medicine, err := h.db.CreateMedicine(r.Context(), family.ID, &req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, medicine)
}

// UpdateMedicine updates a medicine definition.
func (h *Handler) UpdateMedicine(w http.ResponseWriter, r *http.Request) {
	medicineID, ok := pathID(w, r, "id", "Invalid medicine ID")
	if !ok {
		return
	}
	family := h.familyAccess(w, r, true)
	if family == nil {
		return
	}

	var req models.MedicineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name cannot be empty")
		return
	}
	if msg := validateMedicineRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	medicine, err := h.db.UpdateMedicine(r.Context(), family.ID, medicineID, &req)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Medicine not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, medicine)
}

// validateMedicineRequest returns a validation message, or "" when req is acceptable.
func validateMedicineRequest(req *models.MedicineRequest) string {
	if req.DoseMinTime != nil && *req.DoseMinTime != "" {
		if _, ok := dose.ParseMinInterval(*req.DoseMinTime); !ok {
			return "doseMinTime must be D:HH:MM or HH:MM"
		}
	}
	if req.TypicalDoseSize != nil && *req.TypicalDoseSize < 0 {
		return "typicalDoseSize cannot be negative"
	}
	for _, c := range req.Contacts {
		if strings.TrimSpace(c.Name) == "" {
			return "contact name is required"
		}
	}
	return ""
}

// Administration endpoints

// ListAdministrations lists a baby's doses, filtered by ?medicineId= and ?since=.
func (h *Handler) ListAdministrations(w http.ResponseWriter, r *http.Request) {
	_, baby := h.babyAccess(w, r, false)
	if baby == nil {
		return
	}

	filter := models.AdministrationFilter{BabyID: &baby.ID}
	q := r.URL.Query()
	if v := q.Get("medicineId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid medicineId")
			return
		}
		filter.MedicineID = &id
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}

	admins, err := h.db.FetchAdministrations(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if admins == nil {
		admins = []models.MedicineAdministration{}
	}
	writeJSON(w, http.StatusOK, admins)
}

// CreateAdministration logs a dose. The medicine's typical dose and unit fill
// in missing fields.
func (h *Handler) CreateAdministration(w http.ResponseWriter, r *http.Request) {
	family, baby := h.babyAccess(w, r, true)
	if baby == nil {
		return
	}
	ctx := r.Context()

	var req models.AdministrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	medicine, err := h.db.GetMedicine(ctx, family.ID, req.MedicineID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown medicineId")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	at, err := parseTime(req.Time, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "time must be an RFC 3339 timestamp")
		return
	}

	var amount float64
	switch {
	case req.DoseAmount != nil:
		amount = *req.DoseAmount
	case medicine.TypicalDoseSize.Valid:
		amount = medicine.TypicalDoseSize.Float64
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "doseAmount is required")
		return
	}
	if amount < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "doseAmount cannot be negative")
		return
	}

	unit := req.UnitAbbr
	if unit == nil && medicine.UnitAbbr.Valid {
		unit = &medicine.UnitAbbr.String
	}

	admin, err := h.db.CreateAdministration(ctx, baby.ID, medicine.ID, at, amount, unit, req.Notes)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.publish(family.ID, baby.ID, "medicine")
	writeJSON(w, http.StatusCreated, admin)
}

// UpdateAdministration edits a logged dose.
func (h *Handler) UpdateAdministration(w http.ResponseWriter, r *http.Request) {
	adminID, ok := pathID(w, r, "adminId", "Invalid administration ID")
	if !ok {
		return
	}
	family := h.familyAccess(w, r, true)
	if family == nil {
		return
	}

	var req models.AdministrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var at *time.Time
	if req.Time != nil {
		t, err := time.Parse(time.RFC3339, *req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "time must be an RFC 3339 timestamp")
			return
		}
		at = &t
	}
	if req.DoseAmount != nil && *req.DoseAmount < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "doseAmount cannot be negative")
		return
	}

	admin, err := h.db.UpdateAdministration(r.Context(), family.ID, adminID, at, req.DoseAmount, req.UnitAbbr, req.Notes)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Administration not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.publish(family.ID, admin.BabyID, "medicine")
	writeJSON(w, http.StatusOK, admin)
}

// DeleteAdministration removes a logged dose.
func (h *Handler) DeleteAdministration(w http.ResponseWriter, r *http.Request) {
	adminID, ok := pathID(w, r, "adminId", "Invalid administration ID")
	if !ok {
		return
	}
	family := h.familyAccess(w, r, true)
	if family == nil {
		return
	}

	err := h.db.DeleteAdministration(r.Context(), family.ID, adminID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Administration not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.publish(family.ID, 0, "medicine")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetMedicineSafety evaluates every active medicine of the family for a baby.
func (h *Handler) GetMedicineSafety(w http.ResponseWriter, r *http.Request) {
	family, baby := h.babyAccess(w, r, false)
	if baby == nil {
		return
	}
	ctx := r.Context()

	medicines, err := h.db.ListMedicines(ctx, family.ID, false)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	meds := make([]dose.Medicine, 0, len(medicines))
	for i := range medicines {
		meds = append(meds, dose.MedicineFromModel(&medicines[i]))
	}

	now := h.now()
	since := now.Add(-dose.Lookback(meds))
	admins, err := h.db.FetchAdministrations(ctx, models.AdministrationFilter{BabyID: &baby.ID, Since: &since})
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.safety(meds, dose.AdministrationsFromModels(admins), now))
}

func (h *Handler) safety(meds []dose.Medicine, history []dose.Administration, now time.Time) SafetyResponse {
	states := h.dose.EvaluateAll(meds, history, now)
	return SafetyResponse{
		States:           states,
		PollAfterSeconds: int(dose.PollInterval(states).Seconds()),
	}
}

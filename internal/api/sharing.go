package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// maxCodeAttempts is the number of failed redemptions allowed per hour.
const maxCodeAttempts = 5

// ============ Invite Code / Sharing Endpoints ============

// GetSharingStatus lists caretakers and active codes. Owner only.
func (h *Handler) GetSharingStatus(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)
	ctx := r.Context()

	family, err := h.db.GetFamilyByOwner(ctx, user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No family found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	members, err := h.db.GetFamilyMembers(ctx, family.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	memberInfos := make([]models.MemberInfo, 0, len(members))
	for _, m := range members {
		memberInfos = append(memberInfos, models.MemberInfo{
			ID:          m.ID,
			UserID:      m.UserID,
			DisplayName: m.DisplayName.String,
			Permission:  m.Permission,
			JoinedAt:    m.JoinedAt.Format(time.RFC3339),
		})
	}

	codes, err := h.db.GetActiveInviteCodes(ctx, family.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	activeCodeInfos := make([]models.ActiveCodeInfo, 0, len(codes))
	for _, c := range codes {
		activeCodeInfos = append(activeCodeInfos, models.ActiveCodeInfo{
			ID:         c.ID,
			CodePrefix: c.CodePrefix + "-****-**",
			Role:       c.Role,
			ExpiresAt:  c.ExpiresAt.Format(time.RFC3339),
			ExpiresIn:  FormatExpiresIn(c.ExpiresAt),
		})
	}

	writeJSON(w, http.StatusOK, models.SharingStatus{
		Members:     memberInfos,
		ActiveCodes: activeCodeInfos,
	})
}

// GenerateInviteCode generates a caretaker invite code. Owner only.
func (h *Handler) GenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)
	ctx := r.Context()

	family, err := h.db.GetFamilyByOwner(ctx, user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the family owner can generate codes")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	var req models.GenerateCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	permission := req.Permission
	if permission == "" {
		permission = models.PermissionRead
	}
	if permission != models.PermissionRead && permission != models.PermissionWrite {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Permission must be 'read' or 'write'")
		return
	}

	code, err := GenerateInviteCode()
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	codeHash, err := HashCode(code)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	expiresAt := h.now().Add(CodeExpiration)
	record, err := h.db.CreateInviteCode(ctx, family.ID, codeHash, GetCodePrefix(code), models.RoleCaretaker, permission, expiresAt)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.logger.Info("Invite code generated",
		"family_id", family.ID,
		"code_id", record.ID,
		"permission", permission)

	writeJSON(w, http.StatusCreated, models.GenerateCodeResponse{
		Code:      code,
		ExpiresAt: record.ExpiresAt,
		Role:      record.Role,
	})
}

// RedeemInviteCode joins the user to a family as a caretaker.
func (h *Handler) RedeemInviteCode(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)
	ctx := r.Context()

	var req models.RedeemCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	attempts, err := h.db.CountRecentCodeAttempts(ctx, user.UserID)
	if err == nil && attempts >= maxCodeAttempts {
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts. Try again later.")
		return
	}

	recordFailure := func() {
		if err := h.db.RecordCodeAttempt(ctx, user.UserID, false, r.RemoteAddr); err != nil {
			h.logger.Warn("Failed to record code attempt", "user_id", user.UserID, "error", err)
		}
	}

	if !IsValidCodeFormat(req.Code) {
		recordFailure()
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid code format")
		return
	}

	candidates, err := h.db.FindActiveInviteCodes(ctx, GetCodePrefix(req.Code))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	var matched *models.InviteCode
	for i := range candidates {
		if VerifyCode(req.Code, candidates[i].CodeHash) {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		recordFailure()
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Invalid or expired code")
		return
	}

	family, permission, err := h.db.RedeemInviteCode(ctx, matched.ID, user.UserID, strings.TrimSpace(req.DisplayName))
	if err == db.ErrNotFound {
		recordFailure()
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Code already redeemed or expired")
		return
	}
	if err == db.ErrConflict {
		writeError(w, http.StatusConflict, "CONFLICT", "You already own this family")
		return
	}
	if err != nil {
		recordFailure()
		h.internalError(w, r, err)
		return
	}

	if err := h.db.RecordCodeAttempt(ctx, user.UserID, true, r.RemoteAddr); err != nil {
		h.logger.Warn("Failed to record code attempt", "user_id", user.UserID, "error", err)
	}

	writeJSON(w, http.StatusOK, models.RedeemCodeResponse{
		Success:    true,
		Role:       matched.Role,
		Permission: permission,
		Family:     family,
	})
}

// RevokeInviteCode revokes an active invite code.
func (h *Handler) RevokeInviteCode(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)
	codeID, ok := pathID(w, r, "codeId", "Invalid code ID")
	if !ok {
		return
	}

	err := h.db.RevokeInviteCode(r.Context(), codeID, user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Code not found or already revoked")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveMember removes a caretaker from the owner's family.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := getUserInfo(r)
	memberID, ok := pathID(w, r, "memberId", "Invalid member ID")
	if !ok {
		return
	}

	err := h.db.RemoveFamilyMember(r.Context(), memberID, user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Member not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Package api provides HTTP handlers for the baby tracker API.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/scalecode-solutions/babytrackerapi/internal/auth"
	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/dose"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

type contextKey string

const (
	userContextKey      contextKey = "user"
	requestIDContextKey contextKey = "request_id"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	db      *db.DB
	auth    *auth.Authenticator
	monitor *monitor.Monitor
	hub     *push.Hub
	dose    *dose.Evaluator
	logger  *slog.Logger
	now     func() time.Time

	// operators may start and stop the process-wide warning monitor
	operators map[string]bool
}

// New creates a new API handler. hub may be nil.
func New(database *db.DB, authenticator *auth.Authenticator, mon *monitor.Monitor, hub *push.Hub, logger *slog.Logger, operatorIDs []string) *Handler {
	operators := make(map[string]bool, len(operatorIDs))
	for _, id := range operatorIDs {
		operators[id] = true
	}
	return &Handler{
		db:        database,
		auth:      authenticator,
		monitor:   mon,
		hub:       hub,
		dose:      dose.New(logger),
		logger:    logger,
		now:       time.Now,
		operators: operators,
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *mux.Router) {
	r.Use(h.RequestIDMiddleware)

	r.HandleFunc("/health", h.Health).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(h.AuthMiddleware)

	apiRouter.HandleFunc("/family", h.GetFamily).Methods("GET")
	apiRouter.HandleFunc("/family", h.CreateFamily).Methods("POST")
	apiRouter.HandleFunc("/family", h.UpdateFamily).Methods("PUT")
	apiRouter.HandleFunc("/me/role", h.GetMyRole).Methods("GET")

	apiRouter.HandleFunc("/babies", h.ListBabies).Methods("GET")
	apiRouter.HandleFunc("/babies", h.CreateBaby).Methods("POST")
	apiRouter.HandleFunc("/babies/{id}", h.GetBaby).Methods("GET")
	apiRouter.HandleFunc("/babies/{id}", h.UpdateBaby).Methods("PUT")
	apiRouter.HandleFunc("/babies/{id}/inactive", h.SetBabyInactive).Methods("PUT")

	apiRouter.HandleFunc("/medicines", h.ListMedicines).Methods("GET")
	apiRouter.HandleFunc("/medicines", h.CreateMedicine).Methods("POST")
	apiRouter.HandleFunc("/medicines/{id}", h.UpdateMedicine).Methods("PUT")

	apiRouter.HandleFunc("/babies/{id}/administrations", h.ListAdministrations).Methods("GET")
	apiRouter.HandleFunc("/babies/{id}/administrations", h.CreateAdministration).Methods("POST")
	apiRouter.HandleFunc("/administrations/{adminId}", h.UpdateAdministration).Methods("PUT")
	apiRouter.HandleFunc("/administrations/{adminId}", h.DeleteAdministration).Methods("DELETE")
	apiRouter.HandleFunc("/babies/{id}/medicines/safety", h.GetMedicineSafety).Methods("GET")

	apiRouter.HandleFunc("/babies/{id}/feeds", h.ListFeeds).Methods("GET")
	apiRouter.HandleFunc("/babies/{id}/feeds", h.CreateFeed).Methods("POST")
	apiRouter.HandleFunc("/babies/{id}/diapers", h.ListDiapers).Methods("GET")
	apiRouter.HandleFunc("/babies/{id}/diapers", h.CreateDiaper).Methods("POST")

	apiRouter.HandleFunc("/settings/notifications", h.GetNotificationSettings).Methods("GET")
	apiRouter.HandleFunc("/settings/notifications", h.UpdateNotificationSettings).Methods("PUT")
	apiRouter.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	apiRouter.HandleFunc("/notifications/monitor", h.MonitorAction).Methods("GET", "POST")

	apiRouter.HandleFunc("/sharing/status", h.GetSharingStatus).Methods("GET")
	apiRouter.HandleFunc("/sharing/generate", h.GenerateInviteCode).Methods("POST")
	apiRouter.HandleFunc("/sharing/redeem", h.RedeemInviteCode).Methods("POST")
	apiRouter.HandleFunc("/sharing/codes/{codeId}/revoke", h.RevokeInviteCode).Methods("POST")
	apiRouter.HandleFunc("/sharing/members/{memberId}", h.RemoveMember).Methods("DELETE")

	apiRouter.HandleFunc("/ws", h.ServeWS).Methods("GET")
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// RequestIDMiddleware tags every request with an id and logs its outcome.
func (h *Handler) RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(rec, r.WithContext(ctx))

		h.logger.Debug("HTTP request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// AuthMiddleware validates JWT tokens.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket upgrades cannot carry headers from browsers
		allowQuery := r.URL.Path == "/api/ws"

		tokenString, err := auth.TokenFromRequest(r, allowQuery)
		if err != nil {
			msg := "Invalid authorization header format"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "Missing authorization header"
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}

		userInfo, err := h.auth.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserInfo(r *http.Request) *auth.UserInfo {
	return r.Context().Value(userContextKey).(*auth.UserInfo)
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}

// Helper functions

// getAccessibleFamily returns the family the user owns or cares for, with
// their role and permission.
func (h *Handler) getAccessibleFamily(ctx context.Context, userID string) (*models.Family, string, string, error) {
	family, err := h.db.GetFamilyByOwner(ctx, userID)
	if err == nil {
		return family, models.RoleOwner, models.PermissionWrite, nil
	}
	if err != db.ErrNotFound {
		return nil, "", "", err
	}

	family, member, err := h.db.GetFamilyByMember(ctx, userID)
	if err != nil {
		return nil, "", "", err
	}
	permission := member.Permission
	if permission == "" {
		permission = models.PermissionRead
	}
	return family, member.Role, permission, nil
}

// familyAccess resolves the caller's family and writes the error response
// when there is none. It returns nil if the request was answered.
func (h *Handler) familyAccess(w http.ResponseWriter, r *http.Request, needWrite bool) *models.Family {
	user := getUserInfo(r)
	family, _, permission, err := h.getAccessibleFamily(r.Context(), user.UserID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No family found")
		return nil
	}
	if err != nil {
		h.internalError(w, r, err)
		return nil
	}
	if needWrite && permission != models.PermissionWrite {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Write permission required")
		return nil
	}
	return family
}

// babyAccess resolves the family and the {id} baby in the path.
func (h *Handler) babyAccess(w http.ResponseWriter, r *http.Request, needWrite bool) (*models.Family, *models.Baby) {
	babyID, ok := pathID(w, r, "id", "Invalid baby ID")
	if !ok {
		return nil, nil
	}
	family := h.familyAccess(w, r, needWrite)
	if family == nil {
		return nil, nil
	}
	baby, err := h.db.GetBaby(r.Context(), family.ID, babyID)
	if err == db.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Baby not found")
		return nil, nil
	}
	if err != nil {
		h.internalError(w, r, err)
		return nil, nil
	}
	return family, baby
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("Request failed",
		"request_id", requestID(r),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

func (h *Handler) publish(familyID, babyID int64, category string) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(push.Event{
		Type:     push.EventActivity,
		FamilyID: familyID,
		BabyID:   babyID,
		Category: category,
		At:       h.now(),
	})
}

func pathID(w http.ResponseWriter, r *http.Request, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
		return 0, false
	}
	return id, true
}

// parseTime accepts RFC 3339 timestamps and falls back to now when s is nil.
func parseTime(s *string, now time.Time) (time.Time, error) {
	if s == nil || *s == "" {
		return now, nil
	}
	return time.Parse(time.RFC3339, *s)
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	resp := models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
	writeJSON(w, status, resp)
}

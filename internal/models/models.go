// Package models defines the data structures for the baby tracker API.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Family is the tenant every baby, medicine and setting belongs to.
type Family struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	Name      string    `db:"name" json:"name"`
	Timezone  string    `db:"timezone" json:"timezone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// FamilyMember is a caretaker with access to a family.
type FamilyMember struct {
	ID               int64          `db:"id" json:"id"`
	FamilyID         int64          `db:"family_id" json:"-"`
	UserID           string         `db:"user_id" json:"userId"`
	DisplayName      sql.NullString `db:"display_name" json:"displayName,omitempty"`
	Role             string         `db:"role" json:"role"`
	Permission       string         `db:"permission" json:"permission"`
	JoinedAt         time.Time      `db:"joined_at" json:"joinedAt"`
	InvitedViaCodeID sql.NullInt64  `db:"invited_via_code_id" json:"-"`
	RemovedAt        sql.NullTime   `db:"removed_at" json:"removedAt,omitempty"`
}

// Baby is a tracked subject. Inactive babies are hidden from the warning monitor.
type Baby struct {
	ID        int64          `db:"id" json:"id"`
	FamilyID  int64          `db:"family_id" json:"-"`
	FirstName string         `db:"first_name" json:"firstName"`
	LastName  sql.NullString `db:"last_name" json:"lastName,omitempty"`
	BirthDate sql.NullTime   `db:"birth_date" json:"birthDate,omitempty"`
	Gender    sql.NullString `db:"gender" json:"gender,omitempty"`
	Inactive  bool           `db:"inactive" json:"inactive"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// Medicine is a family-level medicine definition.
// DoseMinTime is "D:HH:MM", or the legacy "HH:MM".
type Medicine struct {
	ID              int64           `db:"id" json:"id"`
	FamilyID        int64           `db:"family_id" json:"-"`
	Name            string          `db:"name" json:"name"`
	TypicalDoseSize sql.NullFloat64 `db:"typical_dose_size" json:"typicalDoseSize,omitempty"`
	UnitAbbr        sql.NullString  `db:"unit_abbr" json:"unitAbbr,omitempty"`
	DoseMinTime     sql.NullString  `db:"dose_min_time" json:"doseMinTime,omitempty"`
	Active          bool            `db:"active" json:"active"`
	Contacts        json.RawMessage `db:"contacts" json:"contacts,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// MedicineContact is one entry of Medicine.Contacts.
type MedicineContact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// MedicineAdministration is an append-only dose log entry.
type MedicineAdministration struct {
	ID         int64          `db:"id" json:"id"`
	MedicineID int64          `db:"medicine_id" json:"medicineId"`
	BabyID     int64          `db:"baby_id" json:"babyId"`
	Time       time.Time      `db:"time" json:"time"`
	DoseAmount float64        `db:"dose_amount" json:"doseAmount"`
	UnitAbbr   sql.NullString `db:"unit_abbr" json:"unitAbbr,omitempty"`
	Notes      sql.NullString `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
	DeletedAt  sql.NullTime   `db:"deleted_at" json:"deletedAt,omitempty"`
}

// FeedLog records a feed.
type FeedLog struct {
	ID        int64           `db:"id" json:"id"`
	BabyID    int64           `db:"baby_id" json:"babyId"`
	Time      time.Time       `db:"time" json:"time"`
	FeedType  string          `db:"feed_type" json:"feedType"`
	Amount    sql.NullFloat64 `db:"amount" json:"amount,omitempty"`
	UnitAbbr  sql.NullString  `db:"unit_abbr" json:"unitAbbr,omitempty"`
	Notes     sql.NullString  `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// DiaperLog records a diaper change.
type DiaperLog struct {
	ID         int64          `db:"id" json:"id"`
	BabyID     int64          `db:"baby_id" json:"babyId"`
	Time       time.Time      `db:"time" json:"time"`
	DiaperType string         `db:"diaper_type" json:"diaperType"`
	Condition  sql.NullString `db:"condition" json:"condition,omitempty"`
	Notes      sql.NullString `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// WarningType is an activity category the warning monitor tracks.
type WarningType string

const (
	WarningFeed   WarningType = "feed"
	WarningDiaper WarningType = "diaper"
)

// WarningTypes lists the categories in the order the monitor evaluates them.
var WarningTypes = []WarningType{WarningFeed, WarningDiaper}

// FamilySettings is the persisted notification settings row of a family.
type FamilySettings struct {
	FamilyID             int64          `db:"family_id"`
	NotificationEnabled  bool           `db:"notification_enabled"`
	FeedWarningTime      string         `db:"feed_warning_time"`
	DiaperWarningTime    string         `db:"diaper_warning_time"`
	FeedAdvanceMinutes   sql.NullInt64  `db:"feed_advance_minutes"`
	DiaperAdvanceMinutes sql.NullInt64  `db:"diaper_advance_minutes"`
	NotificationTitle    sql.NullString `db:"notification_title"`
	FeedSubtitle         sql.NullString `db:"feed_subtitle"`
	FeedBody             sql.NullString `db:"feed_body"`
	DiaperSubtitle       sql.NullString `db:"diaper_subtitle"`
	DiaperBody           sql.NullString `db:"diaper_body"`
	NotificationSound    sql.NullString `db:"notification_sound"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

// WarningThresholdConfig is the per-family view of FamilySettings the monitor consumes.
type WarningThresholdConfig struct {
	FamilyID                         int64  `json:"familyId"`
	NotificationEnabled              bool   `json:"notificationEnabled"`
	FeedWarningTime                  string `json:"feedWarningTime"`
	DiaperWarningTime                string `json:"diaperWarningTime"`
	NotificationFeedAdvanceMinutes   *int   `json:"notificationFeedAdvanceMinutes,omitempty"`
	NotificationDiaperAdvanceMinutes *int   `json:"notificationDiaperAdvanceMinutes,omitempty"`
	NotificationTitle                string `json:"notificationTitle"`
	NotificationFeedSubtitle         string `json:"notificationFeedSubtitle,omitempty"`
	NotificationFeedBody             string `json:"notificationFeedBody"`
	NotificationDiaperSubtitle       string `json:"notificationDiaperSubtitle,omitempty"`
	NotificationDiaperBody           string `json:"notificationDiaperBody"`
	NotificationSound                string `json:"notificationSound,omitempty"`
}

// Default warning settings used when a family never saved any.
const (
	DefaultFeedWarningTime   = "02:00"
	DefaultDiaperWarningTime = "03:00"
)

// WarningTime returns the configured HH:MM warning time for a category.
func (c *WarningThresholdConfig) WarningTime(t WarningType) string {
	if t == WarningDiaper {
		return c.DiaperWarningTime
	}
	return c.FeedWarningTime
}

// AdvanceMinutes returns the advance minutes for a category, 0 when unset.
func (c *WarningThresholdConfig) AdvanceMinutes(t WarningType) int {
	v := c.NotificationFeedAdvanceMinutes
	if t == WarningDiaper {
		v = c.NotificationDiaperAdvanceMinutes
	}
	if v == nil {
		return 0
	}
	return *v
}

// ToWarningConfig converts the settings row into the monitor's view.
func (s *FamilySettings) ToWarningConfig() *WarningThresholdConfig {
	cfg := &WarningThresholdConfig{
		FamilyID:                   s.FamilyID,
		NotificationEnabled:        s.NotificationEnabled,
		FeedWarningTime:            s.FeedWarningTime,
		DiaperWarningTime:          s.DiaperWarningTime,
		NotificationTitle:          s.NotificationTitle.String,
		NotificationFeedSubtitle:   s.FeedSubtitle.String,
		NotificationFeedBody:       s.FeedBody.String,
		NotificationDiaperSubtitle: s.DiaperSubtitle.String,
		NotificationDiaperBody:     s.DiaperBody.String,
		NotificationSound:          s.NotificationSound.String,
	}
	if s.FeedAdvanceMinutes.Valid {
		v := int(s.FeedAdvanceMinutes.Int64)
		cfg.NotificationFeedAdvanceMinutes = &v
	}
	if s.DiaperAdvanceMinutes.Valid {
		v := int(s.DiaperAdvanceMinutes.Int64)
		cfg.NotificationDiaperAdvanceMinutes = &v
	}
	return cfg
}

// NotificationLog is a write-once dedupe ledger record.
type NotificationLog struct {
	ID          string      `db:"id" json:"id"`
	BabyID      int64       `db:"baby_id" json:"babyId"`
	FamilyID    int64       `db:"family_id" json:"familyId"`
	WarningType WarningType `db:"warning_type" json:"warningType"`
	SentAt      time.Time   `db:"sent_at" json:"sentAt"`
}

// ============ Invite Code / Sharing Models ============

// InviteCode represents a caretaker invite code.
type InviteCode struct {
	ID         int64          `db:"id" json:"id"`
	FamilyID   int64          `db:"family_id" json:"-"`
	CodeHash   string         `db:"code_hash" json:"-"`
	CodePrefix string         `db:"code_prefix" json:"codePrefix"`
	Role       string         `db:"role" json:"role"`
	Permission string         `db:"permission" json:"permission"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	ExpiresAt  time.Time      `db:"expires_at" json:"expiresAt"`
	RedeemedAt sql.NullTime   `db:"redeemed_at" json:"redeemedAt,omitempty"`
	RedeemedBy sql.NullString `db:"redeemed_by" json:"redeemedBy,omitempty"`
	RevokedAt  sql.NullTime   `db:"revoked_at" json:"revokedAt,omitempty"`
}

// CodeAttempt represents a code redemption attempt for rate limiting.
type CodeAttempt struct {
	ID          int64          `db:"id"`
	UserID      string         `db:"user_id"`
	AttemptedAt time.Time      `db:"attempted_at"`
	Success     bool           `db:"success"`
	IPAddress   sql.NullString `db:"ip_address"`
}

// Roles and permissions.
const (
	RoleOwner     = "owner"
	RoleCaretaker = "caretaker"

	PermissionRead  = "read"
	PermissionWrite = "write"
)

// API Request/Response types

// FamilyRequest is the request body for creating/updating a family.
type FamilyRequest struct {
	Name     *string `json:"name,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// FamilyResponse is the response for family endpoints.
type FamilyResponse struct {
	Family     *Family `json:"family"`
	Role       string  `json:"role"`
	Permission string  `json:"permission"`
}

// BabyRequest is the request body for creating/updating a baby.
type BabyRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	BirthDate *string `json:"birthDate,omitempty"`
	Gender    *string `json:"gender,omitempty"`
}

// InactiveRequest toggles a baby's inactive flag.
type InactiveRequest struct {
	Inactive bool `json:"inactive"`
}

// MedicineRequest is the request body for creating/updating a medicine.
type MedicineRequest struct {
	Name            *string           `json:"name,omitempty"`
	TypicalDoseSize *float64          `json:"typicalDoseSize,omitempty"`
	UnitAbbr        *string           `json:"unitAbbr,omitempty"`
	DoseMinTime     *string           `json:"doseMinTime,omitempty"`
	Active          *bool             `json:"active,omitempty"`
	Contacts        []MedicineContact `json:"contacts,omitempty"`
}

// AdministrationRequest is the request body for logging or editing a dose.
type AdministrationRequest struct {
	MedicineID int64    `json:"medicineId"`
	Time       *string  `json:"time,omitempty"`
	DoseAmount *float64 `json:"doseAmount,omitempty"`
	UnitAbbr   *string  `json:"unitAbbr,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// AdministrationFilter narrows FetchAdministrations.
type AdministrationFilter struct {
	MedicineID *int64
	BabyID     *int64
	Since      *time.Time
}

// FeedRequest is the request body for logging a feed.
type FeedRequest struct {
	Time     *string  `json:"time,omitempty"`
	FeedType string   `json:"feedType"`
	Amount   *float64 `json:"amount,omitempty"`
	UnitAbbr *string  `json:"unitAbbr,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

// DiaperRequest is the request body for logging a diaper change.
type DiaperRequest struct {
	Time       *string `json:"time,omitempty"`
	DiaperType string  `json:"diaperType"`
	Condition  *string `json:"condition,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerateCodeRequest is the request body for generating an invite code.
type GenerateCodeRequest struct {
	Permission string `json:"permission,omitempty"` // "read" or "write" (default: read)
}

// GenerateCodeResponse is the response after generating a code.
type GenerateCodeResponse struct {
	Code      string    `json:"code"` // Full code: XXXX-XXXX-XX
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
}

// RedeemCodeRequest is the request body for redeeming a code.
type RedeemCodeRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

// RedeemCodeResponse is the response after redeeming a code.
type RedeemCodeResponse struct {
	Success    bool    `json:"success"`
	Role       string  `json:"role"`
	Permission string  `json:"permission"`
	Family     *Family `json:"family"`
}

// MemberInfo contains caretaker information for display.
type MemberInfo struct {
	ID          int64  `json:"id"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Permission  string `json:"permission"`
	JoinedAt    string `json:"joinedAt"`
}

// ActiveCodeInfo contains active invite code information for display.
type ActiveCodeInfo struct {
	ID         int64  `json:"id"`
	CodePrefix string `json:"codePrefix"` // XXXX-****-**
	Role       string `json:"role"`
	ExpiresAt  string `json:"expiresAt"`
	ExpiresIn  string `json:"expiresIn"` // "23h 45m"
}

// SharingStatus is the response for the sharing status endpoint.
type SharingStatus struct {
	Members     []MemberInfo     `json:"members"`
	ActiveCodes []ActiveCodeInfo `json:"activeCodes"`
}

// MyRoleResponse is the response for the /api/me/role endpoint.
type MyRoleResponse struct {
	Role       string  `json:"role"` // "owner", "caretaker", or "" if no access
	Permission string  `json:"permission"`
	Family     *Family `json:"family,omitempty"`
}

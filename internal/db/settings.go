package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// ============ Notification Settings ============

// DefaultWarningConfig is used for families that never saved settings.
// Notifications stay off until the family opts in.
func DefaultWarningConfig(familyID int64) *models.WarningThresholdConfig {
	return &models.WarningThresholdConfig{
		FamilyID:          familyID,
		FeedWarningTime:   models.DefaultFeedWarningTime,
		DiaperWarningTime: models.DefaultDiaperWarningTime,
	}
}

// FamilySettings returns a family's warning configuration, or the defaults when none was saved.
func (d *DB) FamilySettings(ctx context.Context, familyID int64) (*models.WarningThresholdConfig, error) {
	var s models.FamilySettings
	err := d.db.GetContext(ctx, &s, `SELECT * FROM bt_family_settings WHERE family_id = $1`, familyID)
	if err == sql.ErrNoRows {
		return DefaultWarningConfig(familyID), nil
	}
	if err != nil {
		return nil, err
	}
	return s.ToWarningConfig(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// UpsertFamilySettings saves a family's warning configuration.
func (d *DB) UpsertFamilySettings(ctx context.Context, cfg *models.WarningThresholdConfig) (*models.WarningThresholdConfig, error) {
	var s models.FamilySettings
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_family_settings (
			family_id, notification_enabled, feed_warning_time, diaper_warning_time,
			feed_advance_minutes, diaper_advance_minutes, notification_title,
			feed_subtitle, feed_body, diaper_subtitle, diaper_body, notification_sound
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (family_id) DO UPDATE SET
			notification_enabled = EXCLUDED.notification_enabled,
			feed_warning_time = EXCLUDED.feed_warning_time,
			diaper_warning_time = EXCLUDED.diaper_warning_time,
			feed_advance_minutes = EXCLUDED.feed_advance_minutes,
			diaper_advance_minutes = EXCLUDED.diaper_advance_minutes,
			notification_title = EXCLUDED.notification_title,
			feed_subtitle = EXCLUDED.feed_subtitle,
			feed_body = EXCLUDED.feed_body,
			diaper_subtitle = EXCLUDED.diaper_subtitle,
			diaper_body = EXCLUDED.diaper_body,
			notification_sound = EXCLUDED.notification_sound,
			updated_at = NOW()
		RETURNING *
	`,
		cfg.FamilyID,
		cfg.NotificationEnabled,
		cfg.FeedWarningTime,
		cfg.DiaperWarningTime,
		nullInt(cfg.NotificationFeedAdvanceMinutes),
		nullInt(cfg.NotificationDiaperAdvanceMinutes),
		nullString(cfg.NotificationTitle),
		nullString(cfg.NotificationFeedSubtitle),
		nullString(cfg.NotificationFeedBody),
		nullString(cfg.NotificationDiaperSubtitle),
		nullString(cfg.NotificationDiaperBody),
		nullString(cfg.NotificationSound),
	).StructScan(&s)
	if err != nil {
		return nil, err
	}
	return s.ToWarningConfig(), nil
}

// ============ Notification Ledger ============

// FindRecentNotification returns the latest ledger record for a baby and category
// sent at or after since, or nil when there is none.
func (d *DB) FindRecentNotification(ctx context.Context, babyID int64, category models.WarningType, since time.Time) (*models.NotificationLog, error) {
	var n models.NotificationLog
	err := d.db.GetContext(ctx, &n, `
		SELECT * FROM bt_notification_log
		WHERE baby_id = $1 AND warning_type = $2 AND sent_at >= $3
		ORDER BY sent_at DESC
		LIMIT 1
	`, babyID, category, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification records a sent notification.
func (d *DB) CreateNotification(ctx context.Context, babyID int64, category models.WarningType, familyID int64) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO bt_notification_log (id, baby_id, family_id, warning_type)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), babyID, familyID, category)
	return err
}

// ListNotifications lists a family's recent ledger records, newest first.
func (d *DB) ListNotifications(ctx context.Context, familyID int64, limit int) ([]models.NotificationLog, error) {
	var logs []models.NotificationLog
	err := d.db.SelectContext(ctx, &logs, `
		SELECT * FROM bt_notification_log
		WHERE family_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, familyID, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// ============ Feed / Diaper Operations ============

// CreateFeedLog logs a feed.
func (d *DB) CreateFeedLog(ctx context.Context, babyID int64, at time.Time, req *models.FeedRequest) (*models.FeedLog, error) {
	var f models.FeedLog
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_feed_logs (baby_id, time, feed_type, amount, unit_abbr, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, babyID, at, req.FeedType, req.Amount, req.UnitAbbr, req.Notes).StructScan(&f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFeedLogs lists feeds since a time, newest first.
func (d *DB) ListFeedLogs(ctx context.Context, babyID int64, since time.Time, limit int) ([]models.FeedLog, error) {
	var logs []models.FeedLog
	err := d.db.SelectContext(ctx, &logs, `
		SELECT * FROM bt_feed_logs
		WHERE baby_id = $1 AND time >= $2
		ORDER BY time DESC
		LIMIT $3
	`, babyID, since, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// CreateDiaperLog logs a diaper change.
func (d *DB) CreateDiaperLog(ctx context.Context, babyID int64, at time.Time, req *models.DiaperRequest) (*models.DiaperLog, error) {
	var l models.DiaperLog
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_diaper_logs (baby_id, time, diaper_type, condition, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, babyID, at, req.DiaperType, req.Condition, req.Notes).StructScan(&l)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListDiaperLogs lists diaper changes since a time, newest first.
func (d *DB) ListDiaperLogs(ctx context.Context, babyID int64, since time.Time, limit int) ([]models.DiaperLog, error) {
	var logs []models.DiaperLog
	err := d.db.SelectContext(ctx, &logs, `
		SELECT * FROM bt_diaper_logs
		WHERE baby_id = $1 AND time >= $2
		ORDER BY time DESC
		LIMIT $3
	`, babyID, since, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

var activityTables = map[models.WarningType]string{
	models.WarningFeed:   "bt_feed_logs",
	models.WarningDiaper: "bt_diaper_logs",
}

// LastActivity returns the time of the latest event in a category, or nil when none exists.
func (d *DB) LastActivity(ctx context.Context, babyID int64, category models.WarningType) (*time.Time, error) {
	table, ok := activityTables[category]
	if !ok {
		return nil, fmt.Errorf("unknown warning type %q", category)
	}

	var at time.Time
	err := d.db.GetContext(ctx, &at, `
		SELECT time FROM `+table+`
		WHERE baby_id = $1
		ORDER BY time DESC
		LIMIT 1
	`, babyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

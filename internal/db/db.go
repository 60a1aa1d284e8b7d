// Package db provides database operations for the baby tracker API.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DB wraps database operations.
type DB struct {
	db *sqlx.DB
}

// New creates a new database connection.
func New(databaseURL string) (*DB, error) {
	db, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{db: db}, nil
}

// NewFromSQLX wraps an existing handle.
func NewFromSQLX(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ============ Family Operations ============

// GetFamilyByOwner gets the family owned by a user.
func (d *DB) GetFamilyByOwner(ctx context.Context, ownerID string) (*models.Family, error) {
	var f models.Family
	err := d.db.GetContext(ctx, &f, `SELECT * FROM bt_families WHERE owner_id = $1`, ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFamilyByMember gets the family a user cares for, with their membership.
func (d *DB) GetFamilyByMember(ctx context.Context, userID string) (*models.Family, *models.FamilyMember, error) {
	var m models.FamilyMember
	err := d.db.GetContext(ctx, &m, `
		SELECT * FROM bt_family_members
		WHERE user_id = $1 AND removed_at IS NULL
		ORDER BY joined_at DESC
		LIMIT 1
	`, userID)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var f models.Family
	if err := d.db.GetContext(ctx, &f, `SELECT * FROM bt_families WHERE id = $1`, m.FamilyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return &f, &m, nil
}

// GetFamilyByID gets a family by ID.
func (d *DB) GetFamilyByID(ctx context.Context, id int64) (*models.Family, error) {
	var f models.Family
	err := d.db.GetContext(ctx, &f, `SELECT * FROM bt_families WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFamily creates a family owned by ownerID. A user owns at most one family.
func (d *DB) CreateFamily(ctx context.Context, ownerID string, req *models.FamilyRequest) (*models.Family, error) {
	name, timezone := "", "UTC"
	if req.Name != nil {
		name = *req.Name
	}
	if req.Timezone != nil && *req.Timezone != "" {
		timezone = *req.Timezone
	}

	var f models.Family
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_families (owner_id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO NOTHING
		RETURNING *
	`, ownerID, name, timezone).StructScan(&f)
	if err == sql.ErrNoRows {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateFamily updates the family's name and timezone.
func (d *DB) UpdateFamily(ctx context.Context, id int64, req *models.FamilyRequest) (*models.Family, error) {
	var f models.Family
	err := d.db.QueryRowxContext(ctx, `
		UPDATE bt_families SET
			name = COALESCE($2, name),
			timezone = COALESCE($3, timezone),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, req.Name, req.Timezone).StructScan(&f)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFamilyMembers gets all active caretakers of a family.
func (d *DB) GetFamilyMembers(ctx context.Context, familyID int64) ([]models.FamilyMember, error) {
	var members []models.FamilyMember
	err := d.db.SelectContext(ctx, &members, `
		SELECT * FROM bt_family_members
		WHERE family_id = $1 AND removed_at IS NULL
		ORDER BY joined_at DESC
	`, familyID)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// RemoveFamilyMember removes a caretaker (soft delete). Only the owner may do this.
func (d *DB) RemoveFamilyMember(ctx context.Context, memberID int64, ownerID string) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE bt_family_members SET removed_at = NOW()
		WHERE id = $1
		  AND family_id IN (SELECT id FROM bt_families WHERE owner_id = $2)
		  AND removed_at IS NULL
	`, memberID, ownerID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

package db

import (
	"context"
	"database/sql"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
)

// ListBabies lists the babies of a family, active first.
func (d *DB) ListBabies(ctx context.Context, familyID int64) ([]models.Baby, error) {
	var babies []models.Baby
	err := d.db.SelectContext(ctx, &babies, `
		SELECT * FROM bt_babies
		WHERE family_id = $1
		ORDER BY inactive ASC, created_at ASC
	`, familyID)
	if err != nil {
		return nil, err
	}
	return babies, nil
}

// GetBaby gets a baby scoped to its family.
func (d *DB) GetBaby(ctx context.Context, familyID, babyID int64) (*models.Baby, error) {
	var b models.Baby
	err := d.db.GetContext(ctx, &b, `
		SELECT * FROM bt_babies WHERE id = $1 AND family_id = $2
	`, babyID, familyID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBaby adds a baby to a family.
func (d *DB) CreateBaby(ctx context.Context, familyID int64, req *models.BabyRequest) (*models.Baby, error) {
	var b models.Baby
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_babies (family_id, first_name, last_name, birth_date, gender)
		VALUES ($1, $2, $3, $4::date, $5)
		RETURNING *
	`, familyID, req.FirstName, req.LastName, req.BirthDate, req.Gender).StructScan(&b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBaby updates the provided fields of a baby.
func (d *DB) UpdateBaby(ctx context.Context, familyID, babyID int64, req *models.BabyRequest) (*models.Baby, error) {
	var b models.Baby
	err := d.db.QueryRowxContext(ctx, `
		UPDATE bt_babies SET
			first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			birth_date = COALESCE($5::date, birth_date),
			gender = COALESCE($6, gender),
			updated_at = NOW()
		WHERE id = $1 AND family_id = $2
		RETURNING *
	`, babyID, familyID, req.FirstName, req.LastName, req.BirthDate, req.Gender).StructScan(&b)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SetBabyInactive toggles whether the warning monitor watches a baby.
func (d *DB) SetBabyInactive(ctx context.Context, familyID, babyID int64, inactive bool) (*models.Baby, error) {
	var b models.Baby
	err := d.db.QueryRowxContext(ctx, `
		UPDATE bt_babies SET inactive = $3, updated_at = NOW()
		WHERE id = $1 AND family_id = $2
		RETURNING *
	`, babyID, familyID, inactive).StructScan(&b)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ActiveBabies lists every active baby across all families.
func (d *DB) ActiveBabies(ctx context.Context) ([]monitor.Baby, error) {
	var rows []struct {
		ID        int64  `db:"id"`
		FamilyID  int64  `db:"family_id"`
		FirstName string `db:"first_name"`
	}
	err := d.db.SelectContext(ctx, &rows, `
		SELECT id, family_id, first_name FROM bt_babies
		WHERE inactive = FALSE
		ORDER BY family_id, id
	`)
	if err != nil {
		return nil, err
	}

	babies := make([]monitor.Baby, len(rows))
	for i, r := range rows {
		babies[i] = monitor.Baby{ID: r.ID, FamilyID: r.FamilyID, Name: r.FirstName}
	}
	return babies, nil
}

// GetBabyByID gets a baby without family scoping. For operator tooling only.
func (d *DB) GetBabyByID(ctx context.Context, babyID int64) (*models.Baby, error) {
	var b models.Baby
	err := d.db.GetContext(ctx, &b, `SELECT * FROM bt_babies WHERE id = $1`, babyID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

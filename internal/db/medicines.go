package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// ============ Medicine Operations ============

// ListMedicines lists a family's medicines. Inactive ones are included only when asked.
func (d *DB) ListMedicines(ctx context.Context, familyID int64, includeInactive bool) ([]models.Medicine, error) {
	var medicines []models.Medicine
	err := d.db.SelectContext(ctx, &medicines, `
		SELECT * FROM bt_medicines
		WHERE family_id = $1 AND (active OR $2)
		ORDER BY name ASC
	`, familyID, includeInactive)
	if err != nil {
		return nil, err
	}
	return medicines, nil
}

// GetMedicine gets a medicine scoped to its family.
func (d *DB) GetMedicine(ctx context.Context, familyID, medicineID int64) (*models.Medicine, error) {
	var m models.Medicine
	err := d.db.GetContext(ctx, &m, `
		SELECT * FROM bt_medicines WHERE id = $1 AND family_id = $2
	`, medicineID, familyID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func contactsJSON(contacts []models.MedicineContact) (*string, error) {
	if contacts == nil {
		return nil, nil
	}
	data, err := json.Marshal(contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contacts: %w", err)
	}
	s := string(data)
	return &s, nil
}

// CreateMedicine creates a medicine definition.
func (d *DB) CreateMedicine(ctx context.Context, familyID int64, req *models.MedicineRequest) (*models.Medicine, error) {
	contacts, err := contactsJSON(req.Contacts)
	if err != nil {
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	var m models.Medicine
	err = d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_medicines (family_id, name, typical_dose_size, unit_abbr, dose_min_time, active, contacts)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::jsonb, '[]'::jsonb))
		RETURNING *
	`, familyID, req.Name, req.TypicalDoseSize, req.UnitAbbr, req.DoseMinTime, active, contacts).StructScan(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMedicine updates the provided fields of a medicine.
func (d *DB) UpdateMedicine(ctx context.Context, familyID, medicineID int64, req *models.MedicineRequest) (*models.Medicine, error) {
	contacts, err := contactsJSON(req.Contacts)
	if err != nil {
		return nil, err
	}

	var m models.Medicine
	err = d.db.QueryRowxContext(ctx, `
		UPDATE bt_medicines SET
			name = COALESCE($3, name),
			typical_dose_size = COALESCE($4, typical_dose_size),
			unit_abbr = COALESCE($5, unit_abbr),
			dose_min_time = COALESCE($6, dose_min_time),
			active = COALESCE($7, active),
			contacts = COALESCE($8::jsonb, contacts),
			updated_at = NOW()
		WHERE id = $1 AND family_id = $2
		RETURNING *
	`, medicineID, familyID, req.Name, req.TypicalDoseSize, req.UnitAbbr, req.DoseMinTime, req.Active, contacts).StructScan(&m)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ============ Administration Operations ============

// FetchAdministrations returns non-deleted administrations matching filter, newest first.
func (d *DB) FetchAdministrations(ctx context.Context, filter models.AdministrationFilter) ([]models.MedicineAdministration, error) {
	var (
		where []string
		args  []interface{}
	)
	where = append(where, "deleted_at IS NULL")
	if filter.BabyID != nil {
		args = append(args, *filter.BabyID)
		where = append(where, fmt.Sprintf("baby_id = $%d", len(args)))
	}
	if filter.MedicineID != nil {
		args = append(args, *filter.MedicineID)
		where = append(where, fmt.Sprintf("medicine_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("time >= $%d", len(args)))
	}

	query := `SELECT * FROM bt_medicine_administrations WHERE ` + strings.Join(where, " AND ") + ` ORDER BY time DESC`

	var admins []models.MedicineAdministration
	if err := d.db.SelectContext(ctx, &admins, query, args...); err != nil {
		return nil, err
	}
	return admins, nil
}

// CreateAdministration logs a dose given to a baby.
func (d *DB) CreateAdministration(ctx context.Context, babyID, medicineID int64, at time.Time, amount float64, unitAbbr, notes *string) (*models.MedicineAdministration, error) {
	var a models.MedicineAdministration
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_medicine_administrations (medicine_id, baby_id, time, dose_amount, unit_abbr, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, medicineID, babyID, at, amount, unitAbbr, notes).StructScan(&a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAdministration edits a dose log entry within a family.
func (d *DB) UpdateAdministration(ctx context.Context, familyID, adminID int64, at *time.Time, amount *float64, unitAbbr, notes *string) (*models.MedicineAdministration, error) {
	var a models.MedicineAdministration
	err := d.db.QueryRowxContext(ctx, `
		UPDATE bt_medicine_administrations SET
			time = COALESCE($3, time),
			dose_amount = COALESCE($4, dose_amount),
			unit_abbr = COALESCE($5, unit_abbr),
			notes = COALESCE($6, notes),
			updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND baby_id IN (SELECT id FROM bt_babies WHERE family_id = $2)
		RETURNING *
	`, adminID, familyID, at, amount, unitAbbr, notes).StructScan(&a)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAdministration soft deletes a dose log entry within a family.
func (d *DB) DeleteAdministration(ctx context.Context, familyID, adminID int64) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE bt_medicine_administrations SET deleted_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND baby_id IN (SELECT id FROM bt_babies WHERE family_id = $2)
	`, adminID, familyID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

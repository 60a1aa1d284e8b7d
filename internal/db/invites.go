package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// ============ Invite Code Operations ============

// CreateInviteCode creates a new invite code record.
func (d *DB) CreateInviteCode(ctx context.Context, familyID int64, codeHash, codePrefix, role, permission string, expiresAt time.Time) (*models.InviteCode, error) {
	var code models.InviteCode
	err := d.db.QueryRowxContext(ctx, `
		INSERT INTO bt_invite_codes (family_id, code_hash, code_prefix, role, permission, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, familyID, codeHash, codePrefix, role, permission, expiresAt).StructScan(&code)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// GetActiveInviteCodes gets all active (non-redeemed, non-revoked, non-expired) codes for a family.
func (d *DB) GetActiveInviteCodes(ctx context.Context, familyID int64) ([]models.InviteCode, error) {
	var codes []models.InviteCode
	err := d.db.SelectContext(ctx, &codes, `
		SELECT * FROM bt_invite_codes
		WHERE family_id = $1
		  AND redeemed_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at > NOW()
		ORDER BY created_at DESC
	`, familyID)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// FindActiveInviteCodes returns active codes sharing a prefix; the caller verifies the hash.
func (d *DB) FindActiveInviteCodes(ctx context.Context, codePrefix string) ([]models.InviteCode, error) {
	var codes []models.InviteCode
	err := d.db.SelectContext(ctx, &codes, `
		SELECT * FROM bt_invite_codes
		WHERE code_prefix = $1
		  AND redeemed_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at > NOW()
	`, codePrefix)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// RedeemInviteCode marks a code as redeemed, adds the user as a caretaker and
// returns the family with the granted permission.
func (d *DB) RedeemInviteCode(ctx context.Context, codeID int64, userID, displayName string) (*models.Family, string, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()

	var code models.InviteCode
	err = tx.GetContext(ctx, &code, `
		SELECT * FROM bt_invite_codes
		WHERE id = $1 AND redeemed_at IS NULL AND revoked_at IS NULL AND expires_at > NOW()
		FOR UPDATE
	`, codeID)
	if err == sql.ErrNoRows {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}

	var family models.Family
	if err := tx.GetContext(ctx, &family, `SELECT * FROM bt_families WHERE id = $1`, code.FamilyID); err != nil {
		return nil, "", err
	}
	if family.OwnerID == userID {
		return nil, "", ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bt_invite_codes SET redeemed_at = NOW(), redeemed_by = $1
		WHERE id = $2
	`, userID, codeID)
	if err != nil {
		return nil, "", err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bt_family_members (family_id, user_id, display_name, role, permission, invited_via_code_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (family_id, user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role,
			permission = EXCLUDED.permission,
			invited_via_code_id = EXCLUDED.invited_via_code_id,
			removed_at = NULL,
			joined_at = NOW()
	`, code.FamilyID, userID, displayName, code.Role, code.Permission, codeID)
	if err != nil {
		return nil, "", err
	}

	if err := tx.Commit(); err != nil {
		return nil, "", err
	}

	return &family, code.Permission, nil
}

// RevokeInviteCode revokes an invite code.
func (d *DB) RevokeInviteCode(ctx context.Context, codeID int64, ownerID string) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE bt_invite_codes SET revoked_at = NOW()
		WHERE id = $1
		  AND family_id IN (SELECT id FROM bt_families WHERE owner_id = $2)
		  AND redeemed_at IS NULL
		  AND revoked_at IS NULL
	`, codeID, ownerID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ============ Rate Limiting Operations ============

// CountRecentCodeAttempts counts failed code attempts in the last hour.
func (d *DB) CountRecentCodeAttempts(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bt_code_attempts
		WHERE user_id = $1 AND attempted_at > NOW() - INTERVAL '1 hour' AND success = false
	`, userID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RecordCodeAttempt records a code redemption attempt.
func (d *DB) RecordCodeAttempt(ctx context.Context, userID string, success bool, ipAddress string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO bt_code_attempts (user_id, success, ip_address)
		VALUES ($1, $2, $3)
	`, userID, success, ipAddress)
	return err
}

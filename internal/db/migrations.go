package db

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS bt_families (
  id BIGSERIAL PRIMARY KEY,
  owner_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  timezone TEXT NOT NULL DEFAULT 'UTC',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bt_invite_codes (
  id BIGSERIAL PRIMARY KEY,
  family_id BIGINT NOT NULL REFERENCES bt_families(id) ON DELETE CASCADE,
  code_hash TEXT NOT NULL,
  code_prefix TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'caretaker',
  permission TEXT NOT NULL DEFAULT 'read',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  expires_at TIMESTAMPTZ NOT NULL,
  redeemed_at TIMESTAMPTZ,
  redeemed_by TEXT,
  revoked_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS bt_family_members (
  id BIGSERIAL PRIMARY KEY,
  family_id BIGINT NOT NULL REFERENCES bt_families(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  display_name TEXT,
  role TEXT NOT NULL DEFAULT 'caretaker',
  permission TEXT NOT NULL DEFAULT 'read',
  joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  invited_via_code_id BIGINT REFERENCES bt_invite_codes(id),
  removed_at TIMESTAMPTZ,
  UNIQUE (family_id, user_id)
);

CREATE TABLE IF NOT EXISTS bt_code_attempts (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL,
  attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  success BOOLEAN NOT NULL,
  ip_address TEXT
);
CREATE INDEX IF NOT EXISTS idx_bt_code_attempts_user ON bt_code_attempts(user_id, attempted_at);

CREATE TABLE IF NOT EXISTS bt_babies (
  id BIGSERIAL PRIMARY KEY,
  family_id BIGINT NOT NULL REFERENCES bt_families(id) ON DELETE CASCADE,
  first_name TEXT NOT NULL,
  last_name TEXT,
  birth_date DATE,
  gender TEXT,
  inactive BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bt_medicines (
  id BIGSERIAL PRIMARY KEY,
  family_id BIGINT NOT NULL REFERENCES bt_families(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  typical_dose_size DOUBLE PRECISION,
  unit_abbr TEXT,
  dose_min_time TEXT,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  contacts JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bt_medicine_administrations (
  id BIGSERIAL PRIMARY KEY,
  medicine_id BIGINT NOT NULL REFERENCES bt_medicines(id) ON DELETE CASCADE,
  baby_id BIGINT NOT NULL REFERENCES bt_babies(id) ON DELETE CASCADE,
  time TIMESTAMPTZ NOT NULL,
  dose_amount DOUBLE PRECISION NOT NULL,
  unit_abbr TEXT,
  notes TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  deleted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_bt_admin_baby_time ON bt_medicine_administrations(baby_id, time DESC);

CREATE TABLE IF NOT EXISTS bt_feed_logs (
  id BIGSERIAL PRIMARY KEY,
  baby_id BIGINT NOT NULL REFERENCES bt_babies(id) ON DELETE CASCADE,
  time TIMESTAMPTZ NOT NULL,
  feed_type TEXT NOT NULL,
  amount DOUBLE PRECISION,
  unit_abbr TEXT,
  notes TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bt_feed_baby_time ON bt_feed_logs(baby_id, time DESC);

CREATE TABLE IF NOT EXISTS bt_diaper_logs (
  id BIGSERIAL PRIMARY KEY,
  baby_id BIGINT NOT NULL REFERENCES bt_babies(id) ON DELETE CASCADE,
  time TIMESTAMPTZ NOT NULL,
  diaper_type TEXT NOT NULL,
  condition TEXT,
  notes TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bt_diaper_baby_time ON bt_diaper_logs(baby_id, time DESC);

CREATE TABLE IF NOT EXISTS bt_family_settings (
  family_id BIGINT PRIMARY KEY REFERENCES bt_families(id) ON DELETE CASCADE,
  notification_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  feed_warning_time TEXT NOT NULL DEFAULT '02:00',
  diaper_warning_time TEXT NOT NULL DEFAULT '03:00',
  feed_advance_minutes INTEGER,
  diaper_advance_minutes INTEGER,
  notification_title TEXT,
  feed_subtitle TEXT,
  feed_body TEXT,
  diaper_subtitle TEXT,
  diaper_body TEXT,
  notification_sound TEXT,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bt_notification_log (
  id UUID PRIMARY KEY,
  baby_id BIGINT NOT NULL REFERENCES bt_babies(id) ON DELETE CASCADE,
  family_id BIGINT NOT NULL REFERENCES bt_families(id) ON DELETE CASCADE,
  warning_type TEXT NOT NULL,
  sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bt_notification_lookup ON bt_notification_log(baby_id, warning_type, sent_at DESC);
`,
	},
}

// Migrate applies pending schema migrations in order.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS bt_schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := d.db.GetContext(ctx, &exists, `SELECT 1 FROM bt_schema_migrations WHERE version = $1`, m.version)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration version %d: %w", m.version, err)
		}

		tx, err := d.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration version %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO bt_schema_migrations(version, name) VALUES($1, $2)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration version %d: %w", m.version, err)
		}
	}
	return nil
}

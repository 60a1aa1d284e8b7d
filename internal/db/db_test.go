package db

import (
	"strings"
	"testing"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
)

var _ monitor.Store = (*DB)(nil)

func TestDefaultWarningConfig(t *testing.T) {
	cfg := DefaultWarningConfig(7)
	if cfg.FamilyID != 7 {
		t.Errorf("FamilyID = %d, want 7", cfg.FamilyID)
	}
	if cfg.NotificationEnabled {
		t.Error("defaults should leave notifications disabled")
	}
	if cfg.FeedWarningTime != models.DefaultFeedWarningTime || cfg.DiaperWarningTime != models.DefaultDiaperWarningTime {
		t.Errorf("warning times = %q/%q", cfg.FeedWarningTime, cfg.DiaperWarningTime)
	}
	if cfg.NotificationFeedAdvanceMinutes != nil || cfg.NotificationDiaperAdvanceMinutes != nil {
		t.Error("defaults should not set advance minutes")
	}
}

func TestNullHelpers(t *testing.T) {
	if v := nullString(""); v.Valid {
		t.Error("nullString(\"\") should be NULL")
	}
	if v := nullString("Ding"); !v.Valid || v.String != "Ding" {
		t.Errorf("nullString(\"Ding\") = %+v", v)
	}
	if v := nullInt(nil); v.Valid {
		t.Error("nullInt(nil) should be NULL")
	}
	zero := 0
	if v := nullInt(&zero); !v.Valid || v.Int64 != 0 {
		t.Errorf("nullInt(&0) = %+v", v)
	}
}

func TestMigrationsOrdered(t *testing.T) {
	for i, m := range migrations {
		if m.version != i+1 {
			t.Errorf("migration %d has version %d", i, m.version)
		}
		if m.name == "" || strings.TrimSpace(m.sql) == "" {
			t.Errorf("migration %d is missing a name or sql", m.version)
		}
	}
}

func TestActivityTablesCoverWarningTypes(t *testing.T) {
	for _, wt := range models.WarningTypes {
		if _, ok := activityTables[wt]; !ok {
			t.Errorf("no activity table for %q", wt)
		}
	}
}

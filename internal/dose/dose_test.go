package dose

import (
	"bytes"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

func testEvaluator() *Evaluator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseMinInterval(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"0:01:00", time.Hour, true},
		{"1:00:30", 24*time.Hour + 30*time.Minute, true},
		{"12:23:59", 12*24*time.Hour + 23*time.Hour + 59*time.Minute, true},
		{"04:00", 4 * time.Hour, true},
		{"00:45", 45 * time.Minute, true},
		{"0:00:00", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"24:00", 0, false},
		{"0:24:00", 0, false},
		{"0:01:60", 0, false},
		{"100:01:00", 0, false},
		{"4:00", 0, false},
		{" 0:01:00", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMinInterval(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseMinInterval(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEvaluateNoHistoryIsSafe(t *testing.T) {
	now := time.Now()
	state := testEvaluator().Evaluate(Medicine{ID: 1, DoseMinTime: "0:04:00"}, nil, now)

	if !state.IsSafe || state.MinutesRemaining != 0 {
		t.Errorf("Evaluate() = %+v, want safe with 0 minutes remaining", state)
	}
	if state.NextSafeTime != nil || state.LastDoseTime != nil {
		t.Errorf("Evaluate() should not set times without history: %+v", state)
	}
}

func TestEvaluateInterval(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	med := Medicine{ID: 7, DoseMinTime: "0:01:00", UnitAbbr: "mg"}

	tests := []struct {
		name          string
		lastDoseAgo   time.Duration
		wantSafe      bool
		wantRemaining int
	}{
		{"61 minutes ago", 61 * time.Minute, true, 0},
		{"exactly one hour ago", time.Hour, true, 0},
		{"30 minutes ago", 30 * time.Minute, false, 30},
		{"59.5 minutes ago", 59*time.Minute + 30*time.Second, false, 1},
		{"just now", 0, false, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := []Administration{{MedicineID: 7, Time: now.Add(-tt.lastDoseAgo), DoseAmount: 5}}
			state := testEvaluator().Evaluate(med, history, now)

			if state.IsSafe != tt.wantSafe {
				t.Errorf("IsSafe = %v, want %v", state.IsSafe, tt.wantSafe)
			}
			if state.MinutesRemaining != tt.wantRemaining {
				t.Errorf("MinutesRemaining = %d, want %d", state.MinutesRemaining, tt.wantRemaining)
			}
			if !tt.wantSafe {
				want := now.Add(-tt.lastDoseAgo).Add(time.Hour)
				if state.NextSafeTime == nil || !state.NextSafeTime.Equal(want) {
					t.Errorf("NextSafeTime = %v, want %v", state.NextSafeTime, want)
				}
			}
		})
	}
}

func TestEvaluateMalformedIntervalIsSafe(t *testing.T) {
	now := time.Now()
	history := []Administration{{MedicineID: 3, Time: now.Add(-time.Minute), DoseAmount: 2.5}}

	for _, interval := range []string{"abc", "", "99:99", "1:2:3"} {
		state := testEvaluator().Evaluate(Medicine{ID: 3, DoseMinTime: interval}, history, now)
		if !state.IsSafe || state.MinutesRemaining != 0 {
			t.Errorf("DoseMinTime %q: Evaluate() = %+v, want safe", interval, state)
		}
		if state.TotalDoseAmountLast24h != 2.5 {
			t.Errorf("DoseMinTime %q: total = %v, want 2.5", interval, state.TotalDoseAmountLast24h)
		}
	}
}

func TestEvaluateLogsUnusableInterval(t *testing.T) {
	now := time.Now()
	history := []Administration{{MedicineID: 3, Time: now.Add(-time.Minute)}}

	tests := []struct {
		interval string
		want     string
	}{
		{"", "level=DEBUG msg=\"No dose interval set"},
		{"abc", "level=WARN msg=\"Malformed dose interval"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		e := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
		e.Evaluate(Medicine{ID: 3, DoseMinTime: tt.interval}, history, now)
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("DoseMinTime %q: log = %q, want %q", tt.interval, buf.String(), tt.want)
		}
	}
}

func TestEvaluateZeroTimestampIsSafe(t *testing.T) {
	history := []Administration{{MedicineID: 3, DoseAmount: 1}}
	state := testEvaluator().Evaluate(Medicine{ID: 3, DoseMinTime: "0:04:00"}, history, time.Now())
	if !state.IsSafe {
		t.Errorf("Evaluate() with zero timestamp = %+v, want safe", state)
	}
}

func TestEvaluateUsesMostRecentDose(t *testing.T) {
	now := time.Now()
	history := []Administration{
		{MedicineID: 1, Time: now.Add(-5 * time.Hour), DoseAmount: 5},
		{MedicineID: 1, Time: now.Add(-20 * time.Minute), DoseAmount: 5},
		{MedicineID: 1, Time: now.Add(-3 * time.Hour), DoseAmount: 5},
	}
	state := testEvaluator().Evaluate(Medicine{ID: 1, DoseMinTime: "04:00"}, history, now)

	if state.IsSafe {
		t.Fatal("IsSafe = true, want false")
	}
	if state.MinutesRemaining < 219 || state.MinutesRemaining > 221 {
		t.Errorf("MinutesRemaining = %d, want ~220", state.MinutesRemaining)
	}
}

func TestTotalDoseAmountLast24h(t *testing.T) {
	now := time.Now()
	history := []Administration{
		{MedicineID: 1, Time: now.Add(-2 * time.Hour), DoseAmount: 5, UnitAbbr: "mg"},
		{MedicineID: 1, Time: now.Add(-10 * time.Hour), DoseAmount: 5, UnitAbbr: "mg"},
		{MedicineID: 1, Time: now.Add(-30 * time.Hour), DoseAmount: 5, UnitAbbr: "mg"},
		{MedicineID: 2, Time: now.Add(-1 * time.Hour), DoseAmount: 100, UnitAbbr: "ml"},
	}

	state := testEvaluator().Evaluate(Medicine{ID: 1, DoseMinTime: "0:01:00"}, history, now)

	if state.TotalDoseAmountLast24h != 10 {
		t.Errorf("TotalDoseAmountLast24h = %v, want 10", state.TotalDoseAmountLast24h)
	}
	if state.TotalDoseUnit != "mg" {
		t.Errorf("TotalDoseUnit = %q, want mg", state.TotalDoseUnit)
	}
	if !state.IsSafe {
		t.Error("IsSafe = false, want true (last dose 2h ago, interval 1h)")
	}
}

func TestTotalDoseUnitFallsBackToMedicine(t *testing.T) {
	now := time.Now()
	history := []Administration{{MedicineID: 1, Time: now.Add(-time.Hour), DoseAmount: 2}}
	state := testEvaluator().Evaluate(Medicine{ID: 1, UnitAbbr: "ml"}, history, now)
	if state.TotalDoseUnit != "ml" {
		t.Errorf("TotalDoseUnit = %q, want ml", state.TotalDoseUnit)
	}
}

func TestEvaluateAllPartitionsByMedicine(t *testing.T) {
	now := time.Now()
	meds := []Medicine{
		{ID: 1, DoseMinTime: "0:06:00"},
		{ID: 2, DoseMinTime: "0:01:00"},
		{ID: 3, DoseMinTime: "0:01:00"},
	}
	history := []Administration{
		{MedicineID: 1, Time: now.Add(-time.Hour), DoseAmount: 1},
		{MedicineID: 2, Time: now.Add(-2 * time.Hour), DoseAmount: 1},
	}

	states := testEvaluator().EvaluateAll(meds, history, now)
	if len(states) != 3 {
		t.Fatalf("len(states) = %d, want 3", len(states))
	}
	if states[0].IsSafe {
		t.Error("medicine 1 should be waiting")
	}
	if !states[1].IsSafe || !states[2].IsSafe {
		t.Error("medicines 2 and 3 should be safe")
	}
	if got := PollInterval(states); got != WaitingPollInterval {
		t.Errorf("PollInterval() = %v, want %v", got, WaitingPollInterval)
	}
	if got := PollInterval(states[1:]); got != 0 {
		t.Errorf("PollInterval() = %v, want 0", got)
	}
}

func TestConvertModels(t *testing.T) {
	med := MedicineFromModel(&models.Medicine{
		ID:          4,
		Name:        "Ibuprofen",
		DoseMinTime: sql.NullString{String: "0:06:00", Valid: true},
		UnitAbbr:    sql.NullString{String: "ml", Valid: true},
	})
	if med.DoseMinTime != "0:06:00" || med.UnitAbbr != "ml" {
		t.Errorf("MedicineFromModel() = %+v", med)
	}

	at := time.Now()
	admins := AdministrationsFromModels([]models.MedicineAdministration{
		{MedicineID: 4, Time: at, DoseAmount: 2.5},
	})
	if len(admins) != 1 || admins[0].UnitAbbr != "" || !admins[0].Time.Equal(at) {
		t.Errorf("AdministrationsFromModels() = %+v", admins)
	}
}

func TestLookback(t *testing.T) {
	tests := []struct {
		name string
		meds []Medicine
		want time.Duration
	}{
		{"none", nil, Window},
		{"shorter than window", []Medicine{{DoseMinTime: "0:06:00"}}, Window},
		{"multi day", []Medicine{{DoseMinTime: "0:06:00"}, {DoseMinTime: "3:00:00"}}, 72 * time.Hour},
		{"malformed ignored", []Medicine{{DoseMinTime: "forever"}}, Window},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Lookback(tt.meds); got != tt.want {
				t.Errorf("Lookback() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Package dose decides whether another dose of a medicine can be given.
//
// Evaluation is pure and synchronous: callers fetch the administration
// history and call Evaluate again whenever they want a fresh answer.
// Any fault while parsing or computing degrades to the permissive
// "safe" state with a logged diagnostic, so dose entry is never blocked
// by a calculation error.
package dose

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
)

// Window is the trailing period summed into TotalDoseAmountLast24h.
const Window = 24 * time.Hour

// WaitingPollInterval is how often clients should refresh while any medicine is waiting.
const WaitingPollInterval = 60 * time.Second

var (
	daysHoursMinutes = regexp.MustCompile(`^(\d{1,2}):([01]\d|2[0-3]):([0-5]\d)$`)
	hoursMinutes     = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// Medicine is the part of a medicine definition the evaluator needs.
type Medicine struct {
	ID          int64
	Name        string
	DoseMinTime string
	UnitAbbr    string
}

// Administration is one logged dose.
type Administration struct {
	MedicineID int64
	Time       time.Time
	DoseAmount float64
	UnitAbbr   string
}

// State is the derived dosing state of one medicine for one baby.
type State struct {
	MedicineID             int64      `json:"medicineId"`
	MedicineName           string     `json:"medicineName,omitempty"`
	IsSafe                 bool       `json:"isSafe"`
	MinutesRemaining       int        `json:"minutesRemaining"`
	NextSafeTime           *time.Time `json:"nextSafeTime,omitempty"`
	LastDoseTime           *time.Time `json:"lastDoseTime,omitempty"`
	TotalDoseAmountLast24h float64    `json:"totalDoseAmountLast24h"`
	TotalDoseUnit          string     `json:"totalDoseUnit,omitempty"`
}

// ParseMinInterval parses "D:HH:MM" or legacy "HH:MM".
// It reports false for empty or malformed input.
func ParseMinInterval(s string) (time.Duration, bool) {
	if m := daysHoursMinutes.FindStringSubmatch(s); m != nil {
		days, _ := strconv.Atoi(m[1])
		hours, _ := strconv.Atoi(m[2])
		minutes, _ := strconv.Atoi(m[3])
		return time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, true
	}
	if m := hoursMinutes.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, true
	}
	return 0, false
}

// GroupByMedicine partitions a mixed log by medicine id.
func GroupByMedicine(records []Administration) map[int64][]Administration {
	groups := make(map[int64][]Administration)
	for _, r := range records {
		groups[r.MedicineID] = append(groups[r.MedicineID], r)
	}
	return groups
}

// Latest returns the most recent record. Ties keep the first one seen.
func Latest(records []Administration) (Administration, bool) {
	var latest Administration
	found := false
	for _, r := range records {
		if !found || r.Time.After(latest.Time) {
			latest = r
			found = true
		}
	}
	return latest, found
}

// Evaluator computes dose safety states.
type Evaluator struct {
	logger *slog.Logger
}

// New creates an Evaluator. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate computes the state of med from history. Records of other
// medicines in history are ignored.
func (e *Evaluator) Evaluate(med Medicine, history []Administration, now time.Time) State {
	records := GroupByMedicine(history)[med.ID]

	state := State{
		MedicineID:   med.ID,
		MedicineName: med.Name,
		IsSafe:       true,
	}
	state.TotalDoseAmountLast24h, state.TotalDoseUnit = total24h(records, med.UnitAbbr, now)

	last, ok := Latest(records)
	if !ok {
		return state
	}
	lastTime := last.Time
	state.LastDoseTime = &lastTime

	interval, ok := ParseMinInterval(med.DoseMinTime)
	if !ok {
		if med.DoseMinTime == "" {
			e.logger.Debug("No dose interval set, treating medicine as safe", "medicine_id", med.ID)
		} else {
			e.logger.Warn("Malformed dose interval, treating medicine as safe",
				"medicine_id", med.ID,
				"dose_min_time", med.DoseMinTime)
		}
		return state
	}

	if last.Time.IsZero() {
		e.logger.Warn("Last dose has no timestamp, treating medicine as safe", "medicine_id", med.ID)
		return state
	}

	safeTime := last.Time.Add(interval)
	if safeTime.Before(last.Time) {
		e.logger.Warn("Next safe time overflowed, treating medicine as safe",
			"medicine_id", med.ID,
			"last_dose", last.Time.Format(time.RFC3339),
			"interval", interval.String())
		return state
	}

	if !safeTime.After(now) {
		return state
	}

	remaining := int(math.Ceil(safeTime.Sub(now).Minutes()))
	if remaining < 0 {
		remaining = 0
	}
	state.IsSafe = false
	state.MinutesRemaining = remaining
	state.NextSafeTime = &safeTime
	return state
}

// EvaluateAll evaluates every medicine against a mixed history.
func (e *Evaluator) EvaluateAll(meds []Medicine, history []Administration, now time.Time) []State {
	groups := GroupByMedicine(history)
	states := make([]State, 0, len(meds))
	for _, med := range meds {
		states = append(states, e.Evaluate(med, groups[med.ID], now))
	}
	return states
}

// PollInterval returns how soon a client should re-evaluate, or 0 when
// every medicine is already safe.
func PollInterval(states []State) time.Duration {
	for _, s := range states {
		if !s.IsSafe {
			return WaitingPollInterval
		}
	}
	return 0
}

// Lookback is how much history is needed to evaluate meds: the 24 hour
// window or the longest minimum interval, whichever is greater.
func Lookback(meds []Medicine) time.Duration {
	lookback := Window
	for _, m := range meds {
		if d, ok := ParseMinInterval(m.DoseMinTime); ok && d > lookback {
			lookback = d
		}
	}
	return lookback
}

func total24h(records []Administration, defaultUnit string, now time.Time) (float64, string) {
	since := now.Add(-Window)
	var total float64
	var unit string
	var unitTime time.Time
	for _, r := range records {
		if r.Time.Before(since) {
			continue
		}
		total += r.DoseAmount
		if r.UnitAbbr != "" && (unit == "" || r.Time.After(unitTime)) {
			unit = r.UnitAbbr
			unitTime = r.Time
		}
	}
	if unit == "" {
		unit = defaultUnit
	}
	return total, unit
}

// MedicineFromModel converts a stored medicine.
func MedicineFromModel(m *models.Medicine) Medicine {
	return Medicine{
		ID:          m.ID,
		Name:        m.Name,
		DoseMinTime: m.DoseMinTime.String,
		UnitAbbr:    m.UnitAbbr.String,
	}
}

// AdministrationsFromModels converts stored administrations.
func AdministrationsFromModels(list []models.MedicineAdministration) []Administration {
	out := make([]Administration, 0, len(list))
	for _, a := range list {
		out = append(out, Administration{
			MedicineID: a.MedicineID,
			Time:       a.Time,
			DoseAmount: a.DoseAmount,
			UnitAbbr:   a.UnitAbbr.String,
		})
	}
	return out
}

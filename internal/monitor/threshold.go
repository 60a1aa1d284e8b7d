package monitor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

var warningTimePattern = regexp.MustCompile(`^(\d{1,2}):([0-5]\d)$`)

// ParseWarningTime converts an "HH:MM" duration into minutes.
func ParseWarningTime(s string) (int, bool) {
	m := warningTimePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, true
}

// EffectiveThreshold is the configured warning minutes minus the advance
// minutes, never below zero.
func EffectiveThreshold(cfg *models.WarningThresholdConfig, category models.WarningType) (int, bool) {
	warn, ok := ParseWarningTime(cfg.WarningTime(category))
	if !ok {
		return 0, false
	}
	threshold := warn - cfg.AdvanceMinutes(category)
	if threshold < 0 {
		threshold = 0
	}
	return threshold, true
}

// ElapsedMinutes is the whole minutes between last and now, never negative.
func ElapsedMinutes(last, now time.Time) int {
	elapsed := int(now.Sub(last) / time.Minute)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// IsDue reports whether a category with its last event at last has crossed
// the family threshold. Categories with no event are never due.
func IsDue(cfg *models.WarningThresholdConfig, category models.WarningType, last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	threshold, ok := EffectiveThreshold(cfg, category)
	if !ok {
		return false
	}
	return ElapsedMinutes(*last, now) >= threshold
}

// Default templates used when a family leaves a field empty.
const (
	defaultTitle      = "Baby Tracker"
	defaultFeedBody   = "{name} was last fed {elapsed} ago."
	defaultDiaperBody = "{name} last had a diaper change {elapsed} ago."
	defaultSound      = "default"
)

// BuildPayload renders the family templates for one due category.
// Templates may use {name}, {elapsed} and {threshold}.
func BuildPayload(cfg *models.WarningThresholdConfig, baby Baby, category models.WarningType, elapsed, threshold int) push.Payload {
	subtitle, body := cfg.NotificationFeedSubtitle, cfg.NotificationFeedBody
	if body == "" {
		body = defaultFeedBody
	}
	if category == models.WarningDiaper {
		subtitle, body = cfg.NotificationDiaperSubtitle, cfg.NotificationDiaperBody
		if body == "" {
			body = defaultDiaperBody
		}
	}

	title := cfg.NotificationTitle
	if title == "" {
		title = defaultTitle
	}
	sound := cfg.NotificationSound
	if sound == "" {
		sound = defaultSound
	}

	r := strings.NewReplacer(
		"{name}", baby.Name,
		"{elapsed}", FormatMinutes(elapsed),
		"{threshold}", FormatMinutes(threshold),
	)
	return push.Payload{
		Title:    r.Replace(title),
		Subtitle: r.Replace(subtitle),
		Body:     r.Replace(body),
		Name:     fmt.Sprintf("%s_warning_%d", category, baby.ID),
		Sound:    sound,
	}
}

// FormatMinutes renders minutes as "2h 5m", "2h" or "45m".
func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

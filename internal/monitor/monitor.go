// Package monitor runs the feed/diaper warning pass.
//
// A pass scans every active baby, compares the time since the last feed
// and diaper change against the family's thresholds, and sends at most
// one notification per baby and category within the dedupe window.
// Delivery is at-least-once: a notification is recorded in the ledger
// only after the dispatcher reports success, so a failed send is retried
// by the next pass.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

const (
	// DefaultInterval is the tick period when WithInterval is not given.
	DefaultInterval = 60 * time.Second

	// DefaultDedupeWindow is how long a sent notification suppresses repeats by default.
	DefaultDedupeWindow = 60 * time.Minute

	lockKey = "babytracker:monitor:pass"
)

// ErrPassInProgress is returned by Check when another pass has not finished.
var ErrPassInProgress = errors.New("monitor pass already in progress")

// Baby is an active subject of the monitor.
type Baby struct {
	ID       int64
	FamilyID int64
	Name     string
}

// Store is the persistence the monitor reads from and writes its ledger to.
type Store interface {
	ActiveBabies(ctx context.Context) ([]Baby, error)
	// LastActivity returns the most recent event time of a category, or nil when none was logged.
	LastActivity(ctx context.Context, babyID int64, category models.WarningType) (*time.Time, error)
	FamilySettings(ctx context.Context, familyID int64) (*models.WarningThresholdConfig, error)
	FindRecentNotification(ctx context.Context, babyID int64, category models.WarningType, since time.Time) (*models.NotificationLog, error)
	CreateNotification(ctx context.Context, babyID int64, category models.WarningType, familyID int64) error
}

// Dispatcher sends a notification to a family's devices.
type Dispatcher interface {
	Send(ctx context.Context, familyID int64, payload push.Payload) push.Result
}

// Locker elects the instance that runs a pass when several are deployed.
// Acquire must succeed again for the instance already holding key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Status is the externally visible monitor state.
type Status struct {
	Active         bool       `json:"active"`
	Interval       string     `json:"interval"`
	IntervalMS     int64      `json:"intervalMs"`
	PassInProgress bool       `json:"passInProgress"`
	LastPassAt     *time.Time `json:"lastPassAt,omitempty"`
}

// PassResult summarises one pass.
type PassResult struct {
	StartedAt      time.Time `json:"startedAt"`
	Babies         int       `json:"babies"`
	Due            int       `json:"due"`
	Deduplicated   int       `json:"deduplicated"`
	Sent           int       `json:"sent"`
	Failed         int       `json:"failed"`
	FamiliesMuted  int       `json:"familiesMuted"`
	SkippedNoLock  bool      `json:"skippedNoLock,omitempty"`
	DurationMillis int64     `json:"durationMs"`
}

// Monitor owns the ticker and the pass guard.
type Monitor struct {
	store        Store
	dispatcher   Dispatcher
	locker       Locker
	logger       *slog.Logger
	interval     time.Duration
	dedupeWindow time.Duration
	now          func() time.Time

	mu         sync.Mutex
	active     bool
	stop       chan struct{}
	done       chan struct{}
	lastPassAt time.Time

	running atomic.Bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithDedupeWindow sets how long a sent notification suppresses repeats.
func WithDedupeWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.dedupeWindow = d
		}
	}
}

// WithLocker makes every pass acquire a leader lock first.
func WithLocker(l Locker) Option {
	return func(m *Monitor) { m.locker = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a stopped monitor.
func New(store Store, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:        store,
		dispatcher:   dispatcher,
		logger:       logger,
		interval:     DefaultInterval,
		dedupeWindow: DefaultDedupeWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins ticking and reports whether the monitor was stopped before.
// Starting an active monitor is a no-op.
func (m *Monitor) Start() (Status, bool) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		m.logger.Info("Warning monitor already running", "interval", m.interval.String())
		return m.Status(), false
	}
	m.active = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
	m.mu.Unlock()

	m.logger.Info("Warning monitor started", "interval", m.interval.String())
	return m.Status(), true
}

// Stop halts ticking and reports whether the monitor was running before.
// A pass already running finishes on its own. Stopping an inactive monitor
// is a no-op.
func (m *Monitor) Stop() (Status, bool) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		m.logger.Info("Warning monitor not running")
		return m.Status(), false
	}
	m.active = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("Warning monitor stopped")
	return m.Status(), true
}

// Status reports the current state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Active:         m.active,
		Interval:       m.interval.String(),
		IntervalMS:     m.interval.Milliseconds(),
		PassInProgress: m.running.Load(),
	}
	if !m.lastPassAt.IsZero() {
		t := m.lastPassAt
		s.LastPassAt = &t
	}
	return s
}

// Check runs one pass now. It returns ErrPassInProgress instead of
// overlapping a running pass.
func (m *Monitor) Check(ctx context.Context) (PassResult, error) {
	if !m.running.CompareAndSwap(false, true) {
		return PassResult{}, ErrPassInProgress
	}
	defer m.running.Store(false)
	return m.pass(ctx)
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick starts a pass in its own goroutine so Stop never waits on it.
func (m *Monitor) tick() {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Warn("Skipping monitor tick, previous pass still running")
		return
	}
	go func() {
		defer m.running.Store(false)
		// no per-pass timeout; the pass always runs to completion
		if _, err := m.pass(context.Background()); err != nil {
			m.logger.Error("Warning monitor pass failed", "error", err)
		}
	}()
}

func (m *Monitor) pass(ctx context.Context) (result PassResult, err error) {
	now := m.now()
	started := time.Now()
	result.StartedAt = now
	defer func() {
		result.DurationMillis = time.Since(started).Milliseconds()
		m.mu.Lock()
		m.lastPassAt = now
		m.mu.Unlock()
	}()

	if m.locker != nil {
		ok, err := m.locker.Acquire(ctx, lockKey, lockTTL(m.interval))
		if err != nil {
			return result, fmt.Errorf("acquire monitor lock: %w", err)
		}
		if !ok {
			m.logger.Debug("Another instance holds the monitor lock, skipping pass")
			result.SkippedNoLock = true
			return result, nil
		}
		defer func() {
			if err := m.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
				m.logger.Warn("Failed to release monitor lock", "error", err)
			}
		}()
	}

	babies, err := m.store.ActiveBabies(ctx)
	if err != nil {
		return result, fmt.Errorf("list active babies: %w", err)
	}
	result.Babies = len(babies)

	settings := make(map[int64]*models.WarningThresholdConfig)
	muted := make(map[int64]bool)

	for _, baby := range babies {
		cfg, ok := settings[baby.FamilyID]
		if !ok {
			cfg, err = m.store.FamilySettings(ctx, baby.FamilyID)
			if err != nil {
				return result, fmt.Errorf("load settings for family %d: %w", baby.FamilyID, err)
			}
			settings[baby.FamilyID] = cfg
		}
		if cfg == nil || !cfg.NotificationEnabled {
			if !muted[baby.FamilyID] {
				muted[baby.FamilyID] = true
				result.FamiliesMuted++
			}
			continue
		}

		last, err := m.lastActivities(ctx, baby.ID)
		if err != nil {
			return result, err
		}

		for _, category := range models.WarningTypes {
			at := last[category]
			if at == nil {
				continue
			}

			threshold, ok := EffectiveThreshold(cfg, category)
			if !ok {
				m.logger.Warn("Malformed warning time, skipping category",
					"family_id", baby.FamilyID,
					"category", category,
					"warning_time", cfg.WarningTime(category))
				continue
			}

			elapsed := ElapsedMinutes(*at, now)
			if elapsed < threshold {
				continue
			}
			result.Due++

			if err := m.notify(ctx, baby, category, cfg, elapsed, threshold, now, &result); err != nil {
				return result, err
			}
		}
	}

	m.logger.Info("Warning monitor pass completed",
		"babies", result.Babies,
		"due", result.Due,
		"sent", result.Sent,
		"deduplicated", result.Deduplicated,
		"failed", result.Failed)

	return result, nil
}

// lockTTL bounds how long a crashed holder blocks other instances.
// It stays below the interval so the next tick never races the expiry.
func lockTTL(interval time.Duration) time.Duration {
	return interval - interval/10
}

// lastActivities fetches the latest feed and diaper times concurrently.
func (m *Monitor) lastActivities(ctx context.Context, babyID int64) (map[models.WarningType]*time.Time, error) {
	times := make([]*time.Time, len(models.WarningTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range models.WarningTypes {
		g.Go(func() error {
			at, err := m.store.LastActivity(gctx, babyID, category)
			if err != nil {
				return fmt.Errorf("last %s for baby %d: %w", category, babyID, err)
			}
			times[i] = at
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[models.WarningType]*time.Time, len(times))
	for i, category := range models.WarningTypes {
		out[category] = times[i]
	}
	return out, nil
}

func (m *Monitor) notify(ctx context.Context, baby Baby, category models.WarningType, cfg *models.WarningThresholdConfig, elapsed, threshold int, now time.Time, result *PassResult) error {
	recent, err := m.store.FindRecentNotification(ctx, baby.ID, category, now.Add(-m.dedupeWindow))
	if err != nil {
		return fmt.Errorf("check notification ledger: %w", err)
	}
	if recent != nil {
		result.Deduplicated++
		m.logger.Debug("Notification already sent within window",
			"baby_id", baby.ID,
			"category", category,
			"sent_at", recent.SentAt.Format(time.RFC3339))
		return nil
	}

	payload := BuildPayload(cfg, baby, category, elapsed, threshold)
	res := m.dispatcher.Send(ctx, baby.FamilyID, payload)
	if !res.Success {
		result.Failed++
		m.logger.Warn("Notification dispatch failed, next pass will retry",
			"baby_id", baby.ID,
			"family_id", baby.FamilyID,
			"category", category,
			"error", res.Error)
		return nil
	}

	if err := m.store.CreateNotification(ctx, baby.ID, category, baby.FamilyID); err != nil {
		// the notification went out; a missing ledger row only risks one duplicate
		m.logger.Error("Failed to record sent notification",
			"baby_id", baby.ID,
			"category", category,
			"error", err)
	}
	result.Sent++
	m.logger.Info("Warning notification sent",
		"baby_id", baby.ID,
		"family_id", baby.FamilyID,
		"category", category,
		"elapsed_minutes", elapsed)
	return nil
}

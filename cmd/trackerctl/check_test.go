package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

// ledgerStore has one baby overdue for a feed and counts ledger writes.
type ledgerStore struct {
	last    time.Time
	created int
}

func (s *ledgerStore) ActiveBabies(ctx context.Context) ([]monitor.Baby, error) {
	return []monitor.Baby{{ID: 1, FamilyID: 10, Name: "Ada"}}, nil
}

func (s *ledgerStore) LastActivity(ctx context.Context, babyID int64, category models.WarningType) (*time.Time, error) {
	if category != models.WarningFeed {
		return nil, nil
	}
	return &s.last, nil
}

func (s *ledgerStore) FamilySettings(ctx context.Context, familyID int64) (*models.WarningThresholdConfig, error) {
	return &models.WarningThresholdConfig{
		FamilyID:            familyID,
		NotificationEnabled: true,
		FeedWarningTime:     "01:00",
		DiaperWarningTime:   "03:00",
	}, nil
}

func (s *ledgerStore) FindRecentNotification(ctx context.Context, babyID int64, category models.WarningType, since time.Time) (*models.NotificationLog, error) {
	if s.created > 0 {
		return &models.NotificationLog{SentAt: since}, nil
	}
	return nil, nil
}

func (s *ledgerStore) CreateNotification(ctx context.Context, babyID int64, category models.WarningType, familyID int64) error {
	s.created++
	return nil
}

func TestDryRunLeavesLedgerUntouched(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &ledgerStore{last: time.Now().Add(-2 * time.Hour)}
	dispatcher := push.NewDispatcher(push.NewMockProvider(logger), nil, logger)
	mon := monitor.New(dryRunStore{Store: inner, logger: logger}, dispatcher, logger)

	for i := 0; i < 2; i++ {
		res, err := mon.Check(context.Background())
		if err != nil {
			t.Fatalf("Check() #%d error = %v", i+1, err)
		}
		if res.Sent != 1 || res.Deduplicated != 0 {
			t.Errorf("Check() #%d = %+v, want 1 sent and nothing deduplicated", i+1, res)
		}
	}
	if inner.created != 0 {
		t.Errorf("dry run wrote %d ledger rows, want 0", inner.created)
	}

	regular := monitor.New(inner, dispatcher, logger)
	if _, err := regular.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if inner.created != 1 {
		t.Errorf("regular pass wrote %d ledger rows, want 1", inner.created)
	}
}

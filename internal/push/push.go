// Package push delivers family notifications through a pluggable provider.
package push

import (
	"context"
	"log/slog"
	"time"
)

// Payload is a push notification.
type Payload struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body"`
	Name     string `json:"name"`
	Sound    string `json:"sound,omitempty"`
}

// Result reports the outcome of a dispatch.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Provider defines the interface for push delivery implementations.
type Provider interface {
	// Send delivers payload to every device registered for the family.
	Send(ctx context.Context, familyID int64, payload Payload) error
}

// Publisher receives a copy of every delivered notification.
type Publisher interface {
	Publish(e Event)
}

// Dispatcher adapts a Provider to the success/error contract the warning
// monitor consumes, and mirrors delivered notifications to live clients.
type Dispatcher struct {
	provider  Provider
	publisher Publisher
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. publisher may be nil.
func NewDispatcher(provider Provider, publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider:  provider,
		publisher: publisher,
		logger:    logger,
	}
}

// Send delivers payload and never returns an error; failures are reported in Result.
func (d *Dispatcher) Send(ctx context.Context, familyID int64, payload Payload) Result {
	if err := d.provider.Send(ctx, familyID, payload); err != nil {
		d.logger.Warn("Push delivery failed",
			"family_id", familyID,
			"name", payload.Name,
			"error", err)
		return Result{Success: false, Error: err.Error()}
	}

	if d.publisher != nil {
		d.publisher.Publish(Event{
			Type:     EventNotification,
			FamilyID: familyID,
			Payload:  &payload,
			At:       time.Now(),
		})
	}
	return Result{Success: true}
}

// MockProvider logs notifications instead of sending them.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock push provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// Send logs the notification.
func (m *MockProvider) Send(ctx context.Context, familyID int64, payload Payload) error {
	m.logger.Info("MOCK PUSH",
		"family_id", familyID,
		"title", payload.Title,
		"subtitle", payload.Subtitle,
		"body", payload.Body,
		"name", payload.Name)
	return nil
}

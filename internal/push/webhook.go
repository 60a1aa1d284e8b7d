package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// WebhookProvider posts notifications to a push gateway that fans them out
// to the family's registered devices.
type WebhookProvider struct {
	url        string
	apiKey     string
	client     *http.Client
	logger     *slog.Logger
	attempts   uint
	retryDelay time.Duration
}

// NewWebhookProvider creates a new gateway provider.
func NewWebhookProvider(url, apiKey string, logger *slog.Logger) *WebhookProvider {
	return &WebhookProvider{
		url:        url,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		attempts:   3,
		retryDelay: time.Second,
	}
}

// webhookRequest is the gateway request body.
type webhookRequest struct {
	FamilyID int64 `json:"familyId"`
	Payload
}

// Send posts the notification, retrying transient failures.
// 4xx responses other than 429 are not retried.
func (p *WebhookProvider) Send(ctx context.Context, familyID int64, payload Payload) error {
	jsonData, err := json.Marshal(webhookRequest{FamilyID: familyID, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			startTime := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(jsonData))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")
			if p.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+p.apiKey)
			}

			resp, err := p.client.Do(req)
			duration := time.Since(startTime)
			if err != nil {
				p.logger.Warn("Push gateway request failed, will retry",
					"family_id", familyID,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					p.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				statusErr := fmt.Errorf("push gateway HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(statusErr)
				}
				p.logger.Warn("Push gateway returned non-2xx status, will retry",
					"status_code", resp.StatusCode,
					"family_id", familyID)
				return statusErr
			}

			p.logger.Info("Push gateway request completed",
				"family_id", familyID,
				"name", payload.Name,
				"duration_ms", duration.Milliseconds())
			return nil
		},
		retry.Attempts(p.attempts),
		retry.Delay(p.retryDelay),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(p.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying push delivery after error", "attempt", n, "error", err)
		}),
	)
}

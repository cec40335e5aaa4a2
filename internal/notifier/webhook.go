package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/models"
)

// WebhookPayload is the flattened body expected by the automation scenario.
type WebhookPayload struct {
	models.IncidentAnalysis
	OriginalMessage string `json:"original_message"`
	TenantName      string `json:"tenant_name"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Room            string `json:"room"`
	Timestamp       string `json:"timestamp"`
	Source          string `json:"source"`
}

// WebhookNotifier POSTs incidents to a fixed automation hook.
type WebhookNotifier struct {
	URL        string
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		HTTPClient: &http.Client{Timeout: config.NotifyTimeout},
		Now:        time.Now,
	}
}

// SplitName splits a full name into first name and the remaining last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// BuildPayload flattens the analysis and tenant identity.
func BuildPayload(analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant, now time.Time) WebhookPayload {
	first, last := SplitName(tenant.Name)
	return WebhookPayload{
		IncidentAnalysis: analysis,
		OriginalMessage:  originalMessage,
		TenantName:       tenant.Name,
		FirstName:        first,
		LastName:         last,
		Room:             tenant.Room,
		Timestamp:        now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Source:           config.WebhookSourceTag,
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) error {
	if w.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	body, err := json.Marshal(BuildPayload(analysis, originalMessage, tenant, now()))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

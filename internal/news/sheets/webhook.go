package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig holds the endpoint that receives rows, such as an Apps
// Script web app bound to the review spreadsheet.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// WebhookAppender POSTs rows as {"values": [[...], ...]}, the shape of the
// Sheets values.append body.
type WebhookAppender struct {
	config WebhookConfig
	http   *http.Client
}

// NewWebhookAppender creates a webhook appender.
func NewWebhookAppender(cfg WebhookConfig) *WebhookAppender {
	return &WebhookAppender{
		config: cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Name implements Appender.
func (w *WebhookAppender) Name() string { return "webhook" }

// Append implements Appender.
func (w *WebhookAppender) Append(ctx context.Context, rows []Row) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = []any(r)
	}
	body, err := json.Marshal(map[string]any{
		"range":  "Sheet1!A:AN",
		"values": values,
	})
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send rows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Package notify sends outbound notifications about portal events. Delivery
// is best-effort; failures are logged and never surfaced to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/citylab/agora/internal/models"
)

// Notifier publishes portal events.
type Notifier interface {
	FeedbackReceived(f *models.Feedback)
}

const webhookTimeout = 5 * time.Second

// WebhookNotifier POSTs events as JSON to a configured webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a notifier for the given URL. An empty URL
// yields a notifier that drops all events.
func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

// FeedbackReceived delivers the event in the background and returns
// immediately.
func (n *WebhookNotifier) FeedbackReceived(f *models.Feedback) {
	if n.url == "" {
		return
	}
	go n.send(f)
}

func (n *WebhookNotifier) send(f *models.Feedback) {
	payload := map[string]any{
		"event":    "feedback.received",
		"feedback": f,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("feedback webhook payload failed", zap.Error(err))
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("feedback webhook request failed", zap.Error(err))
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("feedback webhook delivery failed", zap.Error(err))
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		if n.logger != nil {
			n.logger.Warn("feedback webhook rejected", zap.Int("status", resp.StatusCode))
		}
	}
}

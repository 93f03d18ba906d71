package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/harvest/models"
)

// Event types.
const (
	EventCompleted = "extraction.completed"
	EventFailed    = "extraction.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Harvest-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Source    string              `json:"source"`
	Timestamp int64               `json:"timestamp"`
	Data      any                 `json:"data,omitempty"`
	Error     *models.ErrorDetail `json:"error,omitempty"`
}

// NewCompleted builds the event sent after a record was produced.
func NewCompleted(source string, rec models.Record) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventCompleted,
		Source:    source,
		Timestamp: time.Now().Unix(),
		Data:      rec,
	}
}

// NewFailed builds the event sent after an extraction failed.
func NewFailed(source string, detail *models.ErrorDetail) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventFailed,
		Source:    source,
		Timestamp: time.Now().Unix(),
		Error:     detail,
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events with retries.
type Notifier struct {
	client *http.Client
	secret string
	delays []time.Duration
	sleep  func(time.Duration)
}

// NewNotifier creates a Notifier. The request body is signed with
// HMAC-SHA256 if secret is non-empty.
func NewNotifier(secret string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		sleep:  time.Sleep,
	}
}

// Deliver sends a webhook event synchronously.
// Header: X-Harvest-Signature: sha256=<hex>
func (n *Notifier) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Harvest-Webhook/1.0")

	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry tries each configured delay in turn and reports whether
// any attempt succeeded. Retry intervals: 1s, 5s, 30s.
func (n *Notifier) DeliverWithRetry(url string, event *Event) bool {
	for attempt, delay := range n.delays {
		if delay > 0 {
			n.sleep(delay)
		}
		err := n.Deliver(context.Background(), url, event)
		if err == nil {
			slog.Info("webhook delivered",
				"url", url,
				"event", event.Type,
				"event_id", event.ID,
				"attempt", attempt+1,
			)
			return true
		}
		slog.Warn("webhook delivery failed",
			"url", url,
			"event", event.Type,
			"event_id", event.ID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", url,
		"event", event.Type,
		"event_id", event.ID,
	)
	return false
}

// DeliverAsync runs DeliverWithRetry in its own goroutine.
func (n *Notifier) DeliverAsync(url string, event *Event) {
	go n.DeliverWithRetry(url, event)
}

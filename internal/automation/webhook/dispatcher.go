// Package webhook dispatches outbound automation webhooks through the
// authenticated egress proxy. Calls never go directly to the configured
// target from this process; the egress endpoint enforces tenant egress
// policy and holds the outbound credentials.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pipeline_crm_backend/platform/config"
	"pipeline_crm_backend/platform/logger"
)

// Payload is the document delivered to the configured webhook target.
type Payload struct {
	EventType      string         `json:"event_type"`
	AutomationName string         `json:"automation_name"`
	Timestamp      time.Time      `json:"timestamp"`
	Lead           map[string]any `json:"lead"`
	CustomFields   map[string]any `json:"custom_fields,omitempty"`
}

// Request is one outbound call: the target, the HTTP method (GET or POST),
// extra headers, and the payload.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload Payload           `json:"payload"`
}

// Dispatcher performs outbound webhook calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// EgressDispatcher sends requests to the internal egress endpoint, which
// relays them to the target URL. Transport errors and 5xx responses are
// retried with exponential backoff up to the configured attempt count; 4xx
// responses are treated as permanent.
type EgressDispatcher struct {
	client   *http.Client
	endpoint string
	token    string
	attempts int
	backoff  time.Duration
	log      *logger.Logger
}

// NewEgressDispatcher creates a dispatcher from automation config.
func NewEgressDispatcher(cfg config.AutomationConfig, log *logger.Logger) *EgressDispatcher {
	attempts := cfg.GetWebhookRetryAttempts()
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.GetWebhookRetryBackoff()
	if backoff <= 0 {
		backoff = time.Second
	}

	return &EgressDispatcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: cfg.GetWebhookEgressURL(),
		token:    cfg.GetWebhookEgressToken(),
		attempts: attempts,
		backoff:  backoff,
		log:      log,
	}
}

// Dispatch relays the request through the egress endpoint.
func (d *EgressDispatcher) Dispatch(ctx context.Context, req Request) error {
	if d.endpoint == "" {
		return fmt.Errorf("webhook egress endpoint not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal webhook request: %w", err)
	}

	backoff := d.backoff
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		retryable, err := d.send(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == d.attempts {
			break
		}

		d.log.Warn("webhook dispatch failed, retrying",
			"attempt", attempt, "url", req.URL, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}

// send performs one egress call. The bool reports whether a failure may be
// retried.
func (d *EgressDispatcher) send(ctx context.Context, body []byte) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("egress returned %d: %s", resp.StatusCode, string(snippet))
	return resp.StatusCode >= 500, err
}

// Compile-time check that EgressDispatcher implements Dispatcher.
var _ Dispatcher = (*EgressDispatcher)(nil)

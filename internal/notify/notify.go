// Package notify implements the change-notification side channel: after a
// successful ingestion the viewer is told to refetch.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Event is the body POSTed to the notify endpoint.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
}

// NotifyError is a failed delivery. The coordinator logs it and moves on;
// it never fails the ingestion job that triggered it.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string {
	return "notify: " + e.Err.Error()
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// HTTP POSTs a timestamped event to the viewer's notify endpoint. Delivery
// is best-effort; the caller logs failures and moves on.
type HTTP struct {
	url    string
	client *retryablehttp.Client
}

func NewHTTP(url string) *HTTP {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &HTTP{url: url, client: client}
}

// DataChanged implements ingest.Notifier.
func (n *HTTP) DataChanged(ctx context.Context) error {
	body, err := json.Marshal(Event{Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notify event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, body)
	if err != nil {
		return &NotifyError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &NotifyError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &NotifyError{Err: fmt.Errorf("endpoint returned %s", resp.Status)}
	}
	return nil
}

// Nop discards notifications, for one-shot CLI ingestion.
type Nop struct{}

func (Nop) DataChanged(context.Context) error { return nil }

package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	submitPath = "/api/forms"
	healthPath = "/api/health"
)

// DeliveryError wraps a failed submission attempt: either the request
// never completed (Err set) or the collector answered outside 2xx
// (StatusCode set). Both are retryable from the queue's point of view.
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("delivery rejected: HTTP %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Client is an HTTP client for the report collector.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a new collector client. The timeout bounds every submit
// attempt so a hung connection counts as a delivery failure instead of
// stalling the queue.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SubmitResponse is the collector's acknowledgement body. Queue
// correctness never depends on it: any 2xx status is success even if
// the body fails to parse.
type SubmitResponse struct {
	Success bool   `json:"success"`
	FormID  string `json:"formId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Submit posts a report payload to the collector. The payload is sent
// verbatim. Returns a DeliveryError for network failures and non-2xx
// statuses alike.
func (c *Client) Submit(payload json.RawMessage) (*SubmitResponse, error) {
	req, err := http.NewRequest("POST", c.BaseURL+submitPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeliveryError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DeliveryError{StatusCode: resp.StatusCode}
	}

	var sr SubmitResponse
	if len(respBody) > 0 {
		// Unparseable ack bodies are tolerated: the 2xx status is the
		// contract, the body is informational
		json.Unmarshal(respBody, &sr)
	}
	sr.Success = true
	return &sr, nil
}

// HealthCheck probes the collector to decide the online/offline state.
// Any completed HTTP exchange counts as reachable; only transport-level
// failures mean offline.
func (c *Client) HealthCheck() bool {
	req, err := http.NewRequest("GET", c.BaseURL+healthPath, nil)
	if err != nil {
		return false
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Package submit delivers event records to the remote logging service.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yctsai/classlog/backend/internal/models"
)

// DeliveryError reports a failed submission attempt. Transient failures
// (connectivity drop, server 5xx) are worth retrying on a later
// reconciliation pass; permanent ones (4xx validation rejection) are not,
// though the engine currently retries both.
type DeliveryError struct {
	StatusCode int    // 0 when the request never reached the server
	Body       string // first 512 bytes of the response body
	Transient  bool
	Err        error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("delivery rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns the underlying transport error, if any.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a delivery failure worth retrying.
func IsTransient(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Transient
	}
	return false
}

// Client submits event records to the remote authority. It performs exactly
// one network call per Submit, no retries, and mutates no local state.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a Client with Bearer auth and a base URL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// eventPayload is the wire form of one record. The locally assigned event id
// is included so the server can deduplicate a resubmission after a lost ack.
type eventPayload struct {
	EventID     string `json:"event_id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Note        string `json:"note,omitempty"`
	LoggedAt    int64  `json:"logged_at"`
}

// Submit delivers one record's business fields to the remote authority.
// Success means an explicit 2xx acknowledgment; anything else is returned as
// a *DeliveryError classified transient or permanent.
func (c *Client) Submit(ctx context.Context, rec *models.EventRecord) error {
	payload := eventPayload{
		EventID:     rec.ID.String(),
		StudentID:   rec.StudentID,
		StudentName: rec.StudentName,
		Kind:        string(rec.Kind),
		Category:    rec.Category,
		Note:        rec.Note,
		LoggedAt:    rec.LoggedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Transient: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/events", bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Transient: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failure or timeout: the server state is unknown,
		// retry later is reasonable.
		return &DeliveryError{Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       string(snippet),
		Transient:  transientStatus(resp.StatusCode),
	}
}

// transientStatus classifies a non-2xx response. Server-side failures and
// throttling are transient; other client errors mean the payload itself was
// rejected.
func transientStatus(status int) bool {
	switch {
	case status >= 500:
		return true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// HTTPChecker probes an HTTP endpoint. A check passes when the response
// status falls inside the expected range within the attempt budget.
type HTTPChecker struct {
	// URL is the full URL to probe (e.g., "https://svc.example.com/health")
	URL string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 399)
	ExpectedStatusMax int

	// Policy bounds the probe's internal retries
	Policy RetryPolicy

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP probe with the default retry policy.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Policy:            DefaultRetryPolicy(),
		Client:            &http.Client{},
	}
}

// WithPolicy overrides the retry policy.
func (h *HTTPChecker) WithPolicy(p RetryPolicy) *HTTPChecker {
	h.Policy = p
	return h
}

// WithStatusRange sets the expected status code range.
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// Check probes the endpoint, retrying transient failures up to the policy's
// attempt budget with jittered constant backoff.
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	backoff := retry.NewConstant(h.Policy.Interval)
	backoff = retry.WithJitter(h.Policy.Interval/2, backoff)
	if h.Policy.MaxAttempts > 0 {
		backoff = retry.WithMaxRetries(uint64(h.Policy.MaxAttempts-1), backoff)
	}

	var lastMsg string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		msg, err := h.attempt(ctx)
		lastMsg = msg
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	return Result{
		Healthy:   err == nil,
		Message:   lastMsg,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (h *HTTPChecker) attempt(ctx context.Context) (string, error) {
	if h.Policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Policy.AttemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return fmt.Sprintf("failed to create request: %v", err), err
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("request failed: %v", err), err
	}
	defer resp.Body.Close()

	msg := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if resp.StatusCode < h.ExpectedStatusMin || resp.StatusCode > h.ExpectedStatusMax {
		return fmt.Sprintf("%s (expected %d-%d)", msg, h.ExpectedStatusMin, h.ExpectedStatusMax),
			fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return msg, nil
}

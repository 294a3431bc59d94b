package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const productName = "flare-signals"

// Notifier dispatches webhook payloads for triggered signals.
type Notifier struct {
	httpClient *http.Client
	secret     string // empty means signing is off (spec.md §6 Configuration)
	maxRetries int
}

// New builds a Notifier. secret may be empty: per spec.md, signing is off
// when the webhook secret is unset.
func New(secret string, maxRetries int, timeout time.Duration) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		secret:     secret,
		maxRetries: maxRetries,
	}
}

// Dispatch sends payload to url, retrying transport errors, 429s, and 5xx
// responses with bounded exponential backoff (spec.md §4.9). The
// Idempotency-Key, timestamp, and signature are all computed once, before
// any attempt, so retries are byte-identical.
func (n *Notifier) Dispatch(ctx context.Context, url string, payload *Payload) (*Result, error) {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notifier: marshaling payload: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	idempotencyKey := fmt.Sprintf("%s:%s", payload.SignalID, payload.TriggeredAt.UTC().Format(time.RFC3339))

	headers := map[string]string{
		"Content-Type":      "application/json",
		"User-Agent":        productName + "/1.0",
		"Idempotency-Key":   idempotencyKey,
		"X-Flare-Timestamp": timestamp,
	}
	if n.secret != "" {
		headers["X-Flare-Signature"] = "sha256=" + n.sign(timestamp, body)
	}

	attempts := 0
	var lastStatus int

	policy := backoff.WithMaxRetries(newBackoff(), uint64(maxAttempts(n.maxRetries)-1))

	operation := func() error {
		attempts++
		status, err := n.attempt(ctx, url, body, headers)
		lastStatus = status
		if err == nil {
			return nil
		}
		if isRetryable(status, err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err = backoff.Retry(operation, policy)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		return &Result{Success: false, Status: lastStatus, Error: err.Error(), DurationMs: durationMs, Attempts: attempts}, nil
	}
	return &Result{Success: true, Status: lastStatus, DurationMs: durationMs, Attempts: attempts}, nil
}

// maxAttempts mirrors spec.md §4.9: "up to maxAttempts = maxRetries+1".
func maxAttempts(maxRetries int) int {
	return maxRetries + 1
}

// newBackoff implements spec.md's exact formula:
// min(500ms · 2^(attempt-1), 5000ms).
func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 5000 * time.Millisecond
	b.MaxElapsedTime = 0 // unbounded by wall time; WithMaxRetries bounds attempts
	b.RandomizationFactor = 0
	return b
}

func (n *Notifier) attempt(ctx context.Context, url string, body []byte, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp.StatusCode, nil
}

// isRetryable implements spec.md §4.9's retry policy: transport errors (no
// status), 429, or 5xx are retried; any other 4xx is not.
func isRetryable(status int, err error) bool {
	if err == nil {
		return false
	}
	if status == 0 {
		return true // transport error, no HTTP response at all
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}

func (n *Notifier) sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	HeaderSignature = "X-Enlarge-Signature"
	HeaderTimestamp = "X-Enlarge-Timestamp"
	HeaderEvent     = "X-Enlarge-Event"

	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient     *http.Client
	signingSecret  string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 1 * time.Second
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		signingSecret:  cfg.SigningSecret,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Send posts payload as JSON to endpoint. Client errors other than 429 are
// not retried.
func (c *Client) Send(ctx context.Context, endpoint, event string, payload any) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	signature := c.sign(timestamp, body)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = c.maxBackoff

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderTimestamp, timestamp)
		req.Header.Set(HeaderSignature, signature)
		req.Header.Set(HeaderEvent, event)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			return struct{}{}, backoff.Permanent(fmt.Errorf("webhook returned status=%d", resp.StatusCode))
		default:
			return struct{}{}, fmt.Errorf("webhook returned status=%d", resp.StatusCode)
		}
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.maxAttempts)))
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	return nil
}

func (c *Client) sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.signingSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

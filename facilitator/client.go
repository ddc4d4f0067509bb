package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/clearroute/paygate/metrics"
	"github.com/clearroute/paygate/retry"
	"github.com/clearroute/paygate/types"
)

// Default operation timeouts. Settlement moves funds and is given more room
// than verification.
const (
	DefaultVerifyTimeout = 5 * time.Second
	DefaultSettleTimeout = 30 * time.Second
)

// Client is an HTTP Facilitator talking to a remote facilitator service.
// Verify and Settle POST JSON to {BaseURL}/verify and {BaseURL}/settle.
//
// Transport-level failures are retried per Retry and surface as
// types.ErrFacilitatorUnreachable; rejections stated by the facilitator are
// terminal. The zero value is not usable; construct with NewClient.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	authorization string
	verifyTimeout time.Duration
	settleTimeout time.Duration
	retryConfig   retry.Config
	breaker       *gobreaker.CircuitBreaker
	recorder      metrics.Recorder
}

var _ Facilitator = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the transport. Bounded-timeout discipline for
// facilitator calls belongs to this client, so give it a sane Timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthorization sets a static Authorization header value, e.g.
// "Bearer api-key".
func WithAuthorization(value string) ClientOption {
	return func(c *Client) { c.authorization = value }
}

// WithTimeouts overrides the per-call verify and settle timeouts. A
// non-positive value keeps the default.
func WithTimeouts(verify, settle time.Duration) ClientOption {
	return func(c *Client) {
		if verify > 0 {
			c.verifyTimeout = verify
		}
		if settle > 0 {
			c.settleTimeout = settle
		}
	}
}

// WithRetry sets the retry policy for transport failures.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) { c.retryConfig = cfg }
}

// WithCircuitBreaker trips calls after repeated facilitator failures so a
// down facilitator degrades fast instead of stacking timeouts. An open
// breaker surfaces as types.ErrFacilitatorUnreachable.
func WithCircuitBreaker(name string, settings gobreaker.Settings) ClientOption {
	return func(c *Client) {
		settings.Name = name
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// WithMetrics records call latencies on the given recorder.
func WithMetrics(r metrics.Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// NewClient builds a facilitator client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: DefaultSettleTimeout},
		verifyTimeout: DefaultVerifyTimeout,
		settleTimeout: DefaultSettleTimeout,
		retryConfig:   retry.DefaultConfig(),
		recorder:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify implements Facilitator.
func (c *Client) Verify(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.VerificationResult, error) {
	body, err := json.Marshal(VerifyRequest{
		ProtocolVersion:     types.ProtocolVersion,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	start := time.Now()
	result, err := retry.Do(ctx, c.retryConfig, isUnreachable, func() (*types.VerificationResult, error) {
		var out types.VerificationResult
		if err := c.post(ctx, "/verify", c.verifyTimeout, body, &out, types.ErrVerificationFailed); err != nil {
			return nil, err
		}
		return &out, nil
	})
	c.recorder.ObserveLatency("verify", time.Since(start), map[string]string{"network": requirements.Network})
	return result, err
}

// Settle implements Facilitator.
func (c *Client) Settle(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.SettlementReceipt, error) {
	body, err := json.Marshal(SettleRequest{
		ProtocolVersion:     types.ProtocolVersion,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal settle request: %w", err)
	}

	start := time.Now()
	receipt, err := retry.Do(ctx, c.retryConfig, isUnreachable, func() (*types.SettlementReceipt, error) {
		var out types.SettlementReceipt
		if err := c.post(ctx, "/settle", c.settleTimeout, body, &out, types.ErrSettlementFailed); err != nil {
			return nil, err
		}
		return &out, nil
	})
	c.recorder.ObserveLatency("settle", time.Since(start), map[string]string{"network": requirements.Network})
	return receipt, err
}

// post performs one facilitator round trip, optionally through the breaker,
// and decodes the 200 response into out. baseErr classifies non-200
// facilitator answers.
func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body []byte, out any, baseErr error) error {
	do := func() error { return c.doPost(ctx, path, timeout, body, out, baseErr) }

	if c.breaker == nil {
		return do()
	}

	_, err := c.breaker.Execute(func() (any, error) {
		if err := do(); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", types.ErrFacilitatorUnreachable)
	}
	return err
}

func (c *Client) doPost(ctx context.Context, path string, timeout time.Duration, body []byte, out any, baseErr error) error {
	// Respect an inbound deadline when one exists; it carries the caller's
	// cancellation, so a dropped connection aborts the call in flight.
	reqCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrFacilitatorUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp, baseErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode facilitator response: %w", err)
	}
	return nil
}

// errorFromResponse extracts the facilitator's stated reason from a non-200
// answer. 5xx answers count as unreachable for retry purposes.
func errorFromResponse(resp *http.Response, baseErr error) error {
	if resp.StatusCode >= http.StatusInternalServerError {
		baseErr = types.ErrFacilitatorUnreachable
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		InvalidReason string `json:"invalid_reason"`
		ErrorReason   string `json:"error_reason"`
		Error         string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, reason := range []string{body.InvalidReason, body.ErrorReason, body.Error} {
			if reason != "" {
				return fmt.Errorf("%w: status %d: %s", baseErr, resp.StatusCode, reason)
			}
		}
	}
	return fmt.Errorf("%w: status %d", baseErr, resp.StatusCode)
}

func isUnreachable(err error) bool {
	return errors.Is(err, types.ErrFacilitatorUnreachable)
}

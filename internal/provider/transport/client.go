// Package transport is the outbound HTTP client shared by provider adapters.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"go.uber.org/zap"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultMaxAttempts  = 3
	defaultRetryInitial = 300 * time.Millisecond
	maxBodyBytes        = 4 << 20
)

type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      []byte
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Client applies the provider rate limiter, a fixed timeout and bounded
// retries of transient failures to every call.
type Client struct {
	provider     string
	baseURL      string
	http         *http.Client
	limiter      domain.Limiter
	observer     domain.CallObserver
	maxAttempts  uint
	retryInitial time.Duration
	log          *zap.Logger
}

func New(provider string, cfg domain.AdapterConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = defaultMaxAttempts
	}
	initial := cfg.RetryInitial
	if initial <= 0 {
		initial = defaultRetryInitial
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		provider:     provider,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         httpClient,
		limiter:      cfg.Limiter,
		observer:     cfg.Observer,
		maxAttempts:  attempts,
		retryInitial: initial,
		log:          log.Named("provider.transport").With(zap.String("provider", provider)),
	}
}

func (c *Client) Provider() string { return c.provider }

// Do returns the response for any status below 500 except 429. Transport
// failures and 5xx come back as *domain.Error after retries.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitial

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		attempt++
		resp, err := c.once(ctx, req)
		if err == nil {
			return resp, nil
		}
		if domain.IsRetryable(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("provider call failed, retrying",
				zap.String("operation", req.Operation),
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, c.classify(err)
	}
	return resp, nil
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.send(ctx, req)
	code := ""
	if err != nil {
		code = string(domain.CodeOf(err))
		if code == "" {
			code = "error"
		}
	}
	if c.observer != nil {
		c.observer.ObserveProviderCall(ctx, c.provider, req.Operation, code, time.Since(start))
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, domain.WrapError(c.provider, domain.CodeProviderError, err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.transportError(err)
	}

	switch {
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, &domain.Error{
			Provider:   c.provider,
			Code:       domain.CodeProviderError,
			Message:    fmt.Sprintf("http %d: %s", httpResp.StatusCode, snippet(payload)),
			HTTPStatus: httpResp.StatusCode,
		}
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, &domain.Error{
			Provider:   c.provider,
			Code:       domain.CodeRateLimited,
			Message:    snippet(payload),
			HTTPStatus: httpResp.StatusCode,
		}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: payload}, nil
}

func (c *Client) transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.WrapError(c.provider, domain.CodeTimeout, err)
	}
	return domain.WrapError(c.provider, domain.CodeNetwork, err)
}

func (c *Client) classify(err error) error {
	var perr *domain.Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(c.provider, domain.CodeTimeout, err)
	}
	return err
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}

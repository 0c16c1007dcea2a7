package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const maxBackoff = 30 * time.Second

// retryClient retries transient failures with exponential backoff. A
// provider Retry-After hint replaces the computed delay when it is longer.
type retryClient struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func wrapWithRetry(client Client, maxRetries int) Client {
	if maxRetries <= 1 {
		return client
	}
	return &retryClient{
		inner:      client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *retryClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	var err error
	for attempt := 1; ; attempt++ {
		var resp *Response
		resp, err = r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		if attempt >= r.maxRetries {
			break
		}

		delay := r.delay(attempt, err)
		slog.Warn("LLM request failed, retrying",
			"provider", r.inner.Provider(), "attempt", attempt, "max_retries", r.maxRetries,
			"delay", delay, "error", err)
		sleep := r.sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		if serr := sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.maxRetries, err)
}

// delay doubles baseDelay per attempt up to maxBackoff.
func (r *retryClient) delay(attempt int, err error) time.Duration {
	d := r.baseDelay << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > d {
		d = min(apiErr.RetryAfter, maxBackoff)
	}
	return d
}

func (r *retryClient) GenerateJSON(ctx context.Context, req *Request, out any) error {
	req.JSONMode = true
	resp, err := r.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Content), out); err != nil {
		return fmt.Errorf("unmarshal JSON response: %w", err)
	}
	return nil
}

func (r *retryClient) Provider() Provider { return r.inner.Provider() }
func (r *retryClient) Close() error       { return r.inner.Close() }

// isRetryableError reports whether err is a rate limit, a server error or a
// transport timeout. Safety blocks and cancellations are final.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrBlocked) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

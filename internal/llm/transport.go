package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// retryTransport retries rate-limited, timed-out and server-error responses
// with exponential backoff. Request bodies are replayed through GetBody; a
// request whose body cannot be replayed is sent once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func newHTTPClient(timeout time.Duration, maxRetries int, backoff time.Duration, logger *slog.Logger) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:       http.DefaultTransport,
			maxRetries: maxRetries,
			backoff:    backoff,
			logger:     logger,
		},
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// RoundTrip executes the request, retrying transient failures.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	var resp *http.Response
	var err error

	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("replay request body: %w", bodyErr)
			}
			attemptReq = req.Clone(ctx)
			attemptReq.Body = body
		}

		resp, err = t.base.RoundTrip(attemptReq)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil && errors.Is(err, context.Canceled) {
			return nil, err
		}
		if attempt >= t.maxRetries || !replayable {
			return resp, err
		}

		wait := t.backoff * time.Duration(1<<attempt)
		if resp != nil {
			if ra := retryAfter(resp); ra > wait {
				wait = ra
			}
			_ = resp.Body.Close()
		}
		t.logger.Warn("LLM request failed, retrying",
			"attempt", attempt+1,
			"delay", wait,
			"status", statusOf(resp),
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

package synth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// synthMaxAttempts bounds how many times one provider call is tried
// before the failover chain gets a chance to move on.
const synthMaxAttempts = 4

// transientStatus reports whether a response status is worth retrying:
// rate limits and server-side failures. Other 4xx responses mean the
// request itself is bad and go straight back to the provider.
func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoffDelay grows quadratically with jitter so concurrent planning
// requests hammering the same provider spread out.
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * time.Second
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

// postJSON sends one JSON request to a synthesis provider, retrying
// transient failures. The request is rebuilt on every attempt so the
// body reader is fresh. Extra headers carry the provider's auth;
// Content-Type is set here. Any response outside the transient band is
// returned as-is for the caller to decode, open body included.
func postJSON(ctx context.Context, client *http.Client, provider, url string, body []byte, header http.Header, logger *slog.Logger) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= synthMaxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt - 1)
			logger.Warn("retrying provider call",
				"provider", provider, "attempt", attempt, "backoff", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", provider, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("provider call failed",
				"provider", provider, "attempt", attempt, "error", err)
			continue
		}
		if transientStatus(resp.StatusCode) {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, bytes.TrimSpace(msg))
			logger.Warn("provider overloaded",
				"provider", provider, "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%s unavailable after %d attempts: %w", provider, synthMaxAttempts, lastErr)
}

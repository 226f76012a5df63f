package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

const maxErrorBody = 4 * 1024

// doWithRetry wraps an HTTP call with retry logic.
// It will attempt the request up to attempts times (initial + retries).
// - Retries only on transient network errors, 408, 429 and 5xx statuses.
// - A Retry-After header replaces the backoff before the next attempt.
// - Respects the provided ctx (deadline / cancellation).
//
// A returned response always has a status that is not worth retrying;
// the caller owns its body.
func doWithRetry(
	ctx context.Context,
	logger *zap.Logger,
	attempts int,
	baseBackoff time.Duration,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		resp    *http.Response
		attempt int
		// set by an attempt that got Retry-After; replaces the next backoff
		retryAfter time.Duration
	)

	err := retry.Do(
		func() error {
			attempt++
			retryAfter = 0
			start := time.Now()
			r, err := do(ctx)

			status := 0
			if r != nil {
				status = r.StatusCode
			}
			logger.Debug("llm upstream request",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)

			if err != nil {
				return err
			}
			if !shouldRetryStatus(status) {
				resp = r
				return nil
			}

			// Retryable HTTP status (408, 429, 5xx)
			retryAfter = parseRetryAfter(r)
			if retryAfter > 0 && attempt < attempts {
				logger.Info("honoring Retry-After header",
					zap.Duration("wait", retryAfter),
					zap.Int("status", status),
				)
			}
			return readStatusError(r)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(baseBackoff),
		retry.DelayType(func(n uint, config *retry.Config) time.Duration {
			if retryAfter > 0 {
				return retryAfter
			}
			return retry.BackOffDelay(n, config)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("transient upstream error, will retry",
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if attempt >= attempts && isRetryable(err) {
			logger.Warn("llm request exhausted all retries",
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return resp, nil
}

// isRetryable decides whether an attempt error should be tried again.
// Context errors never are.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var serr *StatusError
	if errors.As(err, &serr) {
		return shouldRetryStatus(serr.StatusCode)
	}

	return isTransientNetError(err)
}

// isTransientNetError determines whether a network error is worth retrying.
// Returns true for temporary network issues that might resolve on retry.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	// Timeout errors are always retryable
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// DNS errors with timeout/temporary flag
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	// Connection errors (service might be restarting)
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write" {
			return true
		}
	}

	// Check error string for common transient patterns
	// This is not ideal but sometimes necessary for wrapped errors
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// shouldRetryStatus returns true if the HTTP status code indicates
// the request should be retried.
func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests: // 429
		return true
	case status == http.StatusRequestTimeout: // 408
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		// 2xx success, 3xx redirects, 4xx client errors - don't retry
		return false
	}
}

// parseRetryAfter extracts the retry delay from a Retry-After header.
// Returns 0 if header is missing or invalid.
//
// Retry-After can be:
// - Number of seconds: "120"
// - HTTP date: "Wed, 21 Oct 2015 07:28:00 GMT"
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	const maxRetryAfter = 5 * time.Minute

	// Try parsing as seconds (integer)
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil {
		if seconds <= 0 {
			return 0
		}
		d := time.Duration(seconds) * time.Second
		if d > maxRetryAfter {
			d = maxRetryAfter
		}
		return d
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		d := time.Until(t)
		if d <= 0 {
			return 0
		}
		if d > maxRetryAfter {
			d = maxRetryAfter
		}
		return d
	}

	return 0
}

// readStatusError consumes and closes resp.Body and describes the failure.
// Ollama reports errors as {"error": "..."}; anything else is kept raw.
func readStatusError(resp *http.Response) *StatusError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(body))
	var perr ollamaErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error != "" {
		msg = perr.Error
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: truncate(msg, 200)}
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns sensible defaults for rate limit retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  10 * time.Second,
	}
}

// RateLimitError is returned for a 429 response.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// IsLongWait returns true if the retry wait is too long for automatic retry.
func (e *RateLimitError) IsLongWait() bool {
	return e.RetryAfter > 2*time.Minute
}

// newRateLimitError builds a RateLimitError from a 429 response.
func newRateLimitError(provider string, body []byte, headers http.Header) error {
	rle := &RateLimitError{
		Message: fmt.Sprintf("%s rate limit exceeded (429): %s", provider, truncate(strings.TrimSpace(string(body)), 300)),
	}
	if v := headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			rle.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return rle
}

// RetryProvider wraps a provider with automatic retry on transient errors.
//
// A retry only happens while nothing has been forwarded yet: once text has reached the
// caller a restart would duplicate it, so later failures are returned as-is.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
	log    *logrus.Entry
	sleep  func(ctx context.Context, d time.Duration) error
}

// WrapWithRetry wraps a provider with retry logic.
func WrapWithRetry(p Provider, config RetryConfig) *RetryProvider {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryProvider{
		inner:  p,
		config: config,
		log:    logrus.WithField("component", "llm.retry"),
		sleep:  sleepContext,
	}
}

func (r *RetryProvider) Name() string {
	return r.inner.Name()
}

func (r *RetryProvider) Credential() string {
	return r.inner.Credential()
}

// ListModels forwards to the inner provider when it can list models.
func (r *RetryProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	lister, ok := r.inner.(ModelLister)
	if !ok {
		return nil, fmt.Errorf("%s does not support listing models", r.inner.Name())
	}
	return lister.ListModels(ctx)
}

func (r *RetryProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		var lastErr error

		for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
			forwarded := false
			stream, err := r.inner.Stream(ctx, req)
			if err == nil {
				forwarded, err = r.forwardEvents(ctx, stream, events)
				if err == nil {
					return nil
				}
			}
			if forwarded || !isRetryable(err) {
				return err
			}
			lastErr = err

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt >= r.config.MaxAttempts {
				break
			}

			wait := r.calculateBackoff(attempt, lastErr)
			r.log.WithFields(logrus.Fields{
				"provider": r.inner.Name(),
				"attempt":  attempt,
				"wait":     wait,
			}).WithError(err).Warn("retrying completion stream")

			events <- Event{
				Type:             EventRetry,
				RetryAttempt:     attempt,
				RetryMaxAttempts: r.config.MaxAttempts,
				RetryWaitSecs:    wait.Seconds(),
			}

			if err := r.sleep(ctx, wait); err != nil {
				return err
			}
		}

		return lastErr
	}), nil
}

// forwardEvents reads events from the inner stream and forwards them. It reports whether
// any text reached the caller before the stream ended.
func (r *RetryProvider) forwardEvents(ctx context.Context, stream Stream, events chan<- Event) (bool, error) {
	defer stream.Close()

	forwarded := false
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return forwarded, nil
		}
		if err != nil {
			return forwarded, err
		}
		if event.Type == EventError && event.Err != nil {
			return forwarded, event.Err
		}

		select {
		case events <- event:
			if event.Type == EventTextDelta {
				forwarded = true
			}
		case <-ctx.Done():
			return forwarded, ctx.Err()
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable returns true if the error is a transient error worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return !rle.IsLongWait()
	}

	errStr := strings.ToLower(err.Error())

	// HTTP status codes and rate limit messages
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	// Connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}

// retryAfterRegex matches Retry-After values in error messages.
var retryAfterRegex = regexp.MustCompile(`(?i)retry[- ]?after[:\s]+(\d+)`)

// calculateBackoff computes the wait duration for a retry attempt.
func (r *RetryProvider) calculateBackoff(attempt int, err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return min(rle.RetryAfter, r.config.MaxBackoff)
	}

	if err != nil {
		if matches := retryAfterRegex.FindStringSubmatch(err.Error()); len(matches) > 1 {
			if secs, parseErr := strconv.Atoi(matches[1]); parseErr == nil && secs > 0 {
				return min(time.Duration(secs)*time.Second, r.config.MaxBackoff)
			}
		}
	}

	// Exponential backoff: base * 2^(attempt-1), +/- 25% jitter
	backoff := float64(r.config.BaseBackoff) * math.Pow(2, float64(attempt-1))
	backoff += (rand.Float64() - 0.5) * 0.5 * backoff
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

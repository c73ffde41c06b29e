package service

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// retryDecision tells the retry loop whether to try again and by which
// factor the base delay grows per attempt.
type retryDecision struct {
	retry  bool
	factor float64
}

type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(maxAttempts int, baseDelay time.Duration) retryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return retryPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay is base * factor^attempt, attempt counted from zero.
func backoffDelay(base time.Duration, factor float64, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(factor, float64(attempt)))
}

// withRetry runs call until it succeeds, classify says stop, or the policy
// runs out of attempts. It returns the last error and the attempts used.
func withRetry[T any](ctx context.Context, p retryPolicy, op string, call func(ctx context.Context) (T, error), classify func(error) retryDecision) (T, int, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, attempt + 1, nil
		}
		lastErr = err

		decision := classify(err)
		if !decision.retry || attempt == p.maxAttempts-1 {
			return zero, attempt + 1, lastErr
		}

		delay := backoffDelay(p.baseDelay, decision.factor, attempt)
		log.Warn().Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Int("max_attempts", p.maxAttempts).
			Dur("delay", delay).
			Msg("call failed, retrying")

		if err := p.sleep(ctx, delay); err != nil {
			return zero, attempt + 1, errors.Join(lastErr, err)
		}
	}
	return zero, p.maxAttempts, lastErr
}

// retryAlways backs off by a factor of two on any error.
func retryAlways(error) retryDecision {
	return retryDecision{retry: true, factor: 2}
}

// retryNetwork retries timeouts with a factor of three and other transient
// network or server errors with a factor of two. Everything else stops.
func retryNetwork(err error) retryDecision {
	switch {
	case isTimeout(err):
		return retryDecision{retry: true, factor: 3}
	case isTransient(err):
		return retryDecision{retry: true, factor: 2}
	default:
		return retryDecision{}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusGatewayTimeout {
		return true
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

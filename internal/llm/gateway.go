package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"medassist/internal/metrics"
)

// DefaultMaxAttempts is used when GatewayOptions.MaxAttempts is not positive.
const DefaultMaxAttempts = 3

// GatewayError is returned once the gateway gives up on a prompt, either
// because attempts ran out, the failure was permanent, or ctx ended.
type GatewayError struct {
	Provider Provider
	Attempts int
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("model gateway (%s) failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// GatewayOptions configures a Gateway. Zero values fall back to defaults.
type GatewayOptions struct {
	Provider    Provider
	Model       string
	MaxAttempts int
	BackoffUnit time.Duration
	Logger      *slog.Logger
	Sleep       SleepFunc
}

// Gateway wraps a Generator with bounded exponential-backoff retries.
type Gateway struct {
	gen         Generator
	provider    Provider
	model       string
	maxAttempts int
	unit        time.Duration
	logger      *slog.Logger
	sleep       SleepFunc
}

func NewGateway(gen Generator, opts GatewayOptions) *Gateway {
	g := &Gateway{
		gen:         gen,
		provider:    opts.Provider,
		model:       opts.Model,
		maxAttempts: opts.MaxAttempts,
		unit:        opts.BackoffUnit,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.unit <= 0 {
		g.unit = time.Second
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.sleep == nil {
		g.sleep = sleepContext
	}
	return g
}

// Provider reports the provider this gateway talks to.
func (g *Gateway) Provider() Provider { return g.provider }

// Model reports the model name this gateway talks to.
func (g *Gateway) Model() string { return g.model }

// Invoke sends instruction followed by payload as one prompt and returns
// the response text verbatim. After a transient failure on attempt n
// (starting at 0) it waits 2^n backoff units before trying again.
func (g *Gateway) Invoke(ctx context.Context, payload, instruction string) (string, error) {
	prompt := instruction + payload

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts++
		text, err := g.gen.Generate(ctx, prompt)
		if err == nil {
			metrics.RecordLLMCall(string(g.provider), g.model, "success")
			return text, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			if !errors.Is(err, ctxErr) {
				lastErr = fmt.Errorf("%w: %w", ctxErr, err)
			}
			break
		}
		if !IsTransient(err) {
			break
		}
		if attempt == g.maxAttempts-1 {
			break
		}

		delay := Backoff(attempt, g.unit)
		metrics.RecordLLMRetry(string(g.provider), g.model)
		g.logger.Warn("llm_retry",
			"provider", g.provider,
			"model", g.model,
			"attempt", attempt+1,
			"max_attempts", g.maxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		if err := g.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	metrics.RecordLLMCall(string(g.provider), g.model, "failed")
	return "", &GatewayError{Provider: g.provider, Attempts: attempts, Err: lastErr}
}

// Backoff returns 2^attempt units.
func Backoff(attempt int, unit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return unit << uint(attempt)
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts, empty responses and HTTP 408/429/5xx. Other 4xx statuses,
// requests that could not be built and caller cancellation are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidRequest) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// *url.Error itself satisfies net.Error, so classify by its cause.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return transientTransport(urlErr.Err)
	}

	// Deadlines, empty responses and unclassified SDK failures are retried.
	return true
}

// transientTransport classifies the cause of a failed http.Client.Do.
// Dial/read failures and truncated responses are transient; anything else
// (unsupported scheme, bad redirect) is a configuration problem.
func transientTransport(err error) bool {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	default:
		return false
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

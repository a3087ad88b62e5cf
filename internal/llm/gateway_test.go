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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedGenerator fails the first `failures` calls with err, then
// returns text.
type scriptedGenerator struct {
	failures int
	err      error
	text     string
	calls    int
	prompts  []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.calls <= g.failures {
		return "", g.err
	}
	return g.text, nil
}

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(gen Generator, sleeps *recordedSleeps, maxAttempts int) *Gateway {
	return NewGateway(gen, GatewayOptions{
		Provider:    ProviderGoogle,
		Model:       "gemini-test",
		MaxAttempts: maxAttempts,
		BackoffUnit: 10 * time.Millisecond,
		Logger:      quietLogger(),
		Sleep:       sleeps.sleep,
	})
}

func TestInvokeConcatenatesInstructionAndPayload(t *testing.T) {
	gen := &scriptedGenerator{text: "ok"}
	gw := newTestGateway(gen, &recordedSleeps{}, 3)

	out, err := gw.Invoke(context.Background(), "fever, headache", "Analyze these symptoms: ")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, []string{"Analyze these symptoms: fever, headache"}, gen.prompts)
}

func TestInvokeRetriesWithExponentialBackoff(t *testing.T) {
	gen := &scriptedGenerator{failures: 2, err: errors.New("connection reset"), text: "{}"}
	sleeps := &recordedSleeps{}
	gw := newTestGateway(gen, sleeps, 3)

	out, err := gw.Invoke(context.Background(), "payload", "instruction ")
	require.NoError(t, err)
	require.Equal(t, "{}", out)
	require.Equal(t, 3, gen.calls)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, sleeps.delays)
}

func TestInvokeFailsAfterMaxAttempts(t *testing.T) {
	gen := &scriptedGenerator{failures: 100, err: &StatusError{Provider: ProviderGoogle, StatusCode: http.StatusServiceUnavailable}}
	sleeps := &recordedSleeps{}
	gw := newTestGateway(gen, sleeps, 3)

	_, err := gw.Invoke(context.Background(), "payload", "instruction ")
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, 3, gwErr.Attempts)
	require.Equal(t, 3, gen.calls)
	// No sleep after the final attempt.
	require.Len(t, sleeps.delays, 2)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestInvokeDoesNotRetryPermanentErrors(t *testing.T) {
	gen := &scriptedGenerator{failures: 100, err: &StatusError{Provider: ProviderOpenAI, StatusCode: http.StatusBadRequest}}
	sleeps := &recordedSleeps{}
	gw := newTestGateway(gen, sleeps, 3)

	_, err := gw.Invoke(context.Background(), "payload", "instruction ")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, 1, gwErr.Attempts)
	require.Equal(t, 1, gen.calls)
	require.Empty(t, sleeps.delays)
}

func TestInvokeStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{failures: 100, err: errors.New("timeout")}
	gw := NewGateway(gen, GatewayOptions{
		Provider:    ProviderGoogle,
		MaxAttempts: 5,
		Logger:      quietLogger(),
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	_, err := gw.Invoke(ctx, "payload", "instruction ")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, 1, gen.calls)
	require.ErrorIs(t, err, context.Canceled)
}

func TestInvokeHonoursAlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &scriptedGenerator{text: "never"}
	gw := newTestGateway(gen, &recordedSleeps{}, 3)

	_, err := gw.Invoke(ctx, "payload", "instruction ")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, gen.calls)
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", errors.New("transport closed")
}

func TestInvokeDeadlineDuringCallIsReported(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	gw := newTestGateway(blockingGenerator{}, &recordedSleeps{}, 3)

	_, err := gw.Invoke(ctx, "payload", "instruction ")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, 1, gwErr.Attempts)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvokeDoesNotRetryMalformedBaseURL(t *testing.T) {
	gen := &openAIClient{apiKey: "sk-test", baseURL: "http://[::1", model: "gpt-test", http: http.DefaultClient}
	sleeps := &recordedSleeps{}
	gw := newTestGateway(gen, sleeps, 3)

	_, err := gw.Invoke(context.Background(), "payload", "instruction ")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, 1, gwErr.Attempts)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Empty(t, sleeps.delays)
}

func TestNewGatewayDefaults(t *testing.T) {
	gw := NewGateway(&scriptedGenerator{}, GatewayOptions{})
	require.Equal(t, DefaultMaxAttempts, gw.maxAttempts)
	require.Equal(t, time.Second, gw.unit)
}

func TestBackoff(t *testing.T) {
	require.Equal(t, time.Second, Backoff(0, time.Second))
	require.Equal(t, 2*time.Second, Backoff(1, time.Second))
	require.Equal(t, 4*time.Second, Backoff(2, time.Second))
	require.Equal(t, time.Second, Backoff(-1, time.Second))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "429", err: &StatusError{StatusCode: 429}, want: true},
		{name: "408", err: &StatusError{StatusCode: 408}, want: true},
		{name: "502", err: &StatusError{StatusCode: 502}, want: true},
		{name: "400", err: &StatusError{StatusCode: 400}, want: false},
		{name: "401", err: &StatusError{StatusCode: 401}, want: false},
		{name: "empty response", err: ErrEmptyResponse, want: true},
		{name: "unclassified", err: errors.New("boom"), want: true},
		{name: "invalid request", err: fmt.Errorf("%w: build openai request: bad url", ErrInvalidRequest), want: false},
		{name: "unsupported scheme", err: &url.Error{Op: "Post", URL: "ftp://x", Err: errors.New(`unsupported protocol scheme "ftp"`)}, want: false},
		{name: "dial failure", err: &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}, want: true},
		{name: "transport deadline", err: &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}, want: true},
		{name: "truncated response", err: &url.Error{Op: "Post", URL: "http://x", Err: io.ErrUnexpectedEOF}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

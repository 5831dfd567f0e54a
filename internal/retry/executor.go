package retry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"amp-session/internal/circuitbreaker"
	"amp-session/internal/common/errors"
	"amp-session/internal/common/logging"
)

const (
	// RequestIDHeader carries the per-operation id to the upstream
	RequestIDHeader = "X-Request-ID"

	// DefaultRetryAfterSeconds applies when a 429 carries no usable Retry-After header
	DefaultRetryAfterSeconds = 60
)

// RequestBuilder creates a fresh request for every attempt. The request must be bound to ctx.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Response is a fully read upstream response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Attempts is the number of attempts made, including the successful one
	Attempts int
	// Duration covers all attempts and the waits between them
	Duration time.Duration
}

// DecodeJSON unmarshals the response body into v
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid JSON response: %v", err)).
			WithContext("status", r.StatusCode)
	}
	return nil
}

// Executor performs HTTP requests with per-attempt timeouts, exponential backoff and
// Retry-After handling. It keeps no state between calls apart from the optional breaker
// and limiter, which are shared across callers.
type Executor struct {
	client  *http.Client
	logger  logging.Logger
	sleep   Sleeper
	jitter  Jitter
	breaker *circuitbreaker.GoBreakerAdapter
	limiter *rate.Limiter
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithHTTPClient sets the underlying client. Its own Timeout should be zero or larger than
// any attempt timeout.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = client
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithSleeper replaces the wait between attempts
func WithSleeper(sleep Sleeper) ExecutorOption {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// WithJitter replaces the jitter source used by the backoff
func WithJitter(jitter Jitter) ExecutorOption {
	return func(e *Executor) {
		e.jitter = jitter
	}
}

// WithCircuitBreaker routes every round trip through cb
func WithCircuitBreaker(cb *circuitbreaker.GoBreakerAdapter) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// WithRateLimiter waits on limiter before every attempt
func WithRateLimiter(limiter *rate.Limiter) ExecutorOption {
	return func(e *Executor) {
		e.limiter = limiter
	}
}

// NewExecutor creates an Executor
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		client: &http.Client{},
		sleep:  ContextSleep,
		jitter: CryptoJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.GetGlobalLogger()
	}
	return e
}

// ContextSleep waits for d unless ctx finishes first
func ContextSleep(ctx context.Context, d time.Duration) error {
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

// Execute runs build up to cfg.MaxAttempts times.
//
// Per attempt outcome:
//   - transport timeout: backoff and retry; on the last attempt a timeout error
//   - other transport error: backoff and retry
//   - 429: wait min(Retry-After, MaxDelay) and retry; on the last attempt a rate-limit error
//   - other 4xx: stop immediately with an obtain_failed error carrying the status code
//   - 5xx: backoff and retry
//   - anything else: returned as success
//
// When attempts run out the result is an obtain_failed error with the last failure reason.
// Cancelling ctx aborts without further attempts.
func (e *Executor) Execute(ctx context.Context, build RequestBuilder, cfg Config) (*Response, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	operationID := uuid.NewString()
	logger := e.logger.WithContext(logging.ContextWithRequestID(ctx, operationID))
	started := time.Now()
	lastError := ""

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("retry cancelled: %w", err)
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("retry cancelled: %w", err)
			}
		}

		lastAttempt := attempt == cfg.MaxAttempts
		resp, err := e.attempt(ctx, build, cfg, operationID)

		var delay time.Duration
		var reason string

		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())

		case err != nil && isBuildError(err):
			return nil, err

		case err != nil && isTimeout(err):
			if lastAttempt {
				logger.Warn("Request timed out on final attempt",
					logging.Int("attempt", attempt),
					logging.Duration("timeout", cfg.Timeout),
				)
				return nil, errors.TimeoutError(cfg.TimeoutSeconds())
			}
			reason = "timeout"
			lastError = fmt.Sprintf("Request timeout after %v", cfg.Timeout)
			delay = Delay(attempt, cfg, e.jitter)

		case err != nil:
			reason = "transport error"
			if circuitbreaker.IsOpenError(err) {
				reason = "circuit breaker open"
			}
			lastError = fmt.Sprintf("Request failed: %v", err)
			delay = Delay(attempt, cfg, e.jitter)

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
			if lastAttempt {
				logger.Warn("Rate limited on final attempt",
					logging.Int("attempt", attempt),
					logging.Int("retry_after_seconds", retryAfter),
				)
				return nil, errors.RateLimitedError(retryAfter)
			}
			reason = "rate limited"
			lastError = fmt.Sprintf("Rate limited: retry after %d seconds", retryAfter)
			delay = retryAfterDelay(retryAfter, cfg.MaxDelay)

		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			logger.Debug("Client error, not retrying",
				logging.Int("attempt", attempt),
				logging.Int("status", resp.StatusCode),
			)
			appErr := errors.ObtainFailedError(attempt, fmt.Sprintf("Client error: %d", resp.StatusCode))
			appErr.StatusCode = resp.StatusCode
			return nil, appErr

		case resp.StatusCode >= 500:
			reason = "server error"
			lastError = fmt.Sprintf("Server error: %d", resp.StatusCode)
			delay = Delay(attempt, cfg, e.jitter)

		default:
			resp.Attempts = attempt
			resp.Duration = time.Since(started)
			logger.Debug("Request completed",
				logging.Int("attempt", attempt),
				logging.Int("status", resp.StatusCode),
				logging.Duration("duration", resp.Duration),
			)
			return resp, nil
		}

		if lastAttempt {
			break
		}

		logger.Warn("Retrying request",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", cfg.MaxAttempts),
			logging.String("reason", reason),
			logging.String("last_error", lastError),
			logging.Duration("delay", delay),
		)

		if err := e.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	logger.Warn("Request attempts exhausted",
		logging.Int("attempts", cfg.MaxAttempts),
		logging.String("last_error", lastError),
	)
	return nil, errors.ObtainFailedError(cfg.MaxAttempts, lastError)
}

type buildError struct {
	err error
}

func (b *buildError) Error() string {
	return fmt.Sprintf("failed to build request: %v", b.err)
}

func (b *buildError) Unwrap() error {
	return b.err
}

func isBuildError(err error) bool {
	var b *buildError
	return stderrors.As(err, &b)
}

// attempt performs one bounded round trip. The timeout covers reading the body.
func (e *Executor) attempt(ctx context.Context, build RequestBuilder, cfg Config, operationID string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, &buildError{err: err}
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, operationID)
	}

	var resp *Response
	call := func() error {
		r, err := e.roundTrip(req)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= 500 {
			return fmt.Errorf("server error: %d", r.StatusCode)
		}
		return nil
	}

	if e.breaker != nil {
		err = e.breaker.Execute(call)
	} else {
		err = call()
	}

	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func (e *Executor) roundTrip(req *http.Request) (*Response, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// ParseRetryAfter reads an integer-seconds Retry-After value. Missing, malformed and
// negative values yield DefaultRetryAfterSeconds.
func ParseRetryAfter(value string) int {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return DefaultRetryAfterSeconds
	}
	return seconds
}

// retryAfterDelay converts a Retry-After value to a sleep, capped at max. The comparison is
// done in seconds so large values cannot overflow time.Duration.
func retryAfterDelay(seconds int, max time.Duration) time.Duration {
	if int64(seconds) > int64(max/time.Second) {
		return max
	}
	delay := time.Duration(seconds) * time.Second
	if delay > max {
		return max
	}
	return delay
}

// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient provides an HTTP client with retry, backoff, and
// bounded-deadline handling for the external collaborators the
// orchestration core depends on: the PHP backend (geocode, zone,
// auth, orders), the search service, and the embedding service.
//
// Every outbound call the core makes goes through a *Client so
// retry/backoff policy lives in one place instead of being
// reimplemented at each call site.
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mangwale/assistant-core/internal/observability"
)

// RetryStrategy decides how a non-2xx response should be retried.
type RetryStrategy int

const (
	// NoRetry means the response (or error) should be returned as-is.
	NoRetry RetryStrategy = iota

	// ConservativeRetry waits a linearly growing delay (attempt+1 times
	// the base delay) between attempts, used for 408/500/502/504
	// responses from our own backend services.
	ConservativeRetry

	// SmartRetry backs off exponentially with jitter, used for 429/503
	// from rate-limited or overloaded upstreams (embedding/search
	// providers).
	SmartRetry
)

// StrategyFunc maps a status code to a retry strategy.
type StrategyFunc func(statusCode int) RetryStrategy

// Client wraps http.Client with retry and backoff.
type Client struct {
	http         *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	strategyFunc StrategyFunc

	tracer   trace.Tracer
	recorder *observability.CallRecorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client (e.g. for tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMaxRetries caps the number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithTimeout sets the per-attempt request timeout. Every external
// call carries a bounded 3-8s timeout; callers pick the value
// appropriate to the collaborator (see internal/deadlines).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetryStrategy overrides the status-code -> strategy mapping.
func WithRetryStrategy(fn StrategyFunc) Option {
	return func(c *Client) { c.strategyFunc = fn }
}

// WithTracing instruments every Do call with an OTel span (named
// GetTracer(serviceName)) and, if recorder is non-nil, a duration/
// count/error metric, instrumented once here since every
// PHP-backend/NLU/geocoding/flow-engine/search call in this repo
// goes through a *Client.
func WithTracing(serviceName string, recorder *observability.CallRecorder) Option {
	return func(c *Client) {
		c.tracer = observability.GetTracer(serviceName)
		c.recorder = recorder
	}
}

// New builds a Client with sensible defaults: 1 retry, 500ms base
// delay, 8s max delay, 5s per-attempt timeout.
func New(opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{Timeout: 5 * time.Second},
		maxRetries:   1,
		baseDelay:    500 * time.Millisecond,
		maxDelay:     8 * time.Second,
		strategyFunc: DefaultStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultStrategy retries 429/503 with backoff and 408/500/502/504
// conservatively; everything else is returned as-is.
func DefaultStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// RetryableError is returned when retries were exhausted.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s (status=%d): %v", e.Message, e.StatusCode, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Do executes req with retry/backoff. The caller is responsible for
// attaching a context deadline (context.WithTimeout) before building
// req; Do does not impose an overall deadline of its own, only a
// per-attempt one via the underlying http.Client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.tracer != nil {
		return c.doTraced(req)
	}
	return c.do(req)
}

// doTraced wraps do in a span covering every retry attempt, and
// records a suspension-point metric keyed by the request host.
func (c *Client) doTraced(req *http.Request) (*http.Response, error) {
	ctx, span := c.tracer.Start(req.Context(), req.Method+" "+req.URL.Host,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.host", req.URL.Host),
			attribute.String("http.path", req.URL.Path),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.do(req)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	c.recorder.RecordCall(ctx, req.URL.Host, duration, err)

	return resp, err
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt >= c.maxRetries {
				break
			}
			time.Sleep(c.delay(ConservativeRetry, attempt))
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		strategy := c.strategyFunc(resp.StatusCode)
		if strategy == NoRetry {
			return resp, nil
		}

		lastResp = resp
		lastErr = fmt.Errorf("http %d", resp.StatusCode)

		if attempt >= c.maxRetries {
			break
		}

		delay := c.delay(strategy, attempt)
		slog.Debug("retrying http request", "url", req.URL.String(), "status", resp.StatusCode, "attempt", attempt+1, "delay", delay)
		resp.Body.Close()
		time.Sleep(delay)
	}

	statusCode := 0
	if lastResp != nil {
		statusCode = lastResp.StatusCode
	}
	return lastResp, &RetryableError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
		Err:        lastErr,
	}
}

func (c *Client) delay(strategy RetryStrategy, attempt int) time.Duration {
	switch strategy {
	case SmartRetry:
		d := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(rand.Float64() * float64(d) * 0.2)
		return min(d+jitter, c.maxDelay)
	case ConservativeRetry:
		return time.Duration(attempt+1) * c.baseDelay
	default:
		return 0
	}
}

package core

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transport executes single stat-search requests with throttling,
// bounded retry, and HTTP/body status classification. It is safe for
// concurrent use; concurrent callers share the throttler state.
type Transport struct {
	config    *Config
	client    *http.Client
	throttler *MinIntervalThrottler
	logger    Logger
	telemetry Telemetry

	rngMu sync.Mutex
	rng   *rand.Rand

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	closed atomic.Bool
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithTransportLogger sets the logger for transport operations
func WithTransportLogger(logger Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTransportTelemetry sets the telemetry provider. When set, the
// underlying HTTP client is instrumented with otelhttp and each
// request runs inside a span.
func WithTransportTelemetry(telemetry Telemetry) TransportOption {
	return func(t *Transport) {
		if telemetry != nil {
			t.telemetry = telemetry
		}
	}
}

// WithHTTPClient injects the HTTP client, used by tests and callers
// with bespoke transport needs
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithClock injects the transport clock, used by tests
func WithClock(clock func() time.Time) TransportOption {
	return func(t *Transport) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithSleeper injects the backoff sleep primitive, used by tests
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) TransportOption {
	return func(t *Transport) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithRand injects the jitter source, used by tests
func WithRand(rng *rand.Rand) TransportOption {
	return func(t *Transport) {
		if rng != nil {
			t.rng = rng
		}
	}
}

// NewTransport creates a transport from a validated configuration.
func NewTransport(config *Config, opts ...TransportOption) *Transport {
	t := &Transport{
		config:    config,
		logger:    &NoOpLogger{},
		telemetry: &NoOpTelemetry{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:     time.Now,
		sleep:     sleepContext,
	}
	t.throttler = NewMinIntervalThrottler(config.MinWaitInterval())
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = t.defaultHTTPClient()
	}
	return t
}

func (t *Transport) defaultHTTPClient() *http.Client {
	var rt http.RoundTripper = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: t.config.ConnectTimeout(),
		}).DialContext,
		TLSHandshakeTimeout:   t.config.ConnectTimeout(),
		ResponseHeaderTimeout: t.config.ReadTimeout(),
		IdleConnTimeout:       t.config.PoolTimeout(),
		MaxIdleConns:          10,
		// The Accept-Encoding header is set explicitly, so transparent
		// decompression is off and the response reader handles gzip.
		DisableCompression: true,
	}
	if _, noop := t.telemetry.(*NoOpTelemetry); !noop {
		rt = otelhttp.NewTransport(rt)
	}
	return &http.Client{
		Transport: rt,
		Timeout:   t.config.ReadTimeout() + t.config.WriteTimeout(),
	}
}

// Close releases the transport. It is idempotent; requests after Close
// fail with a transport error.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.client.CloseIdleConnections()
	return nil
}

// Request performs one API call: throttle, send, parse, classify, and
// retry transient failures within the attempt and time budgets.
// The endpoint is joined onto the configured base URL.
func (t *Transport) Request(ctx context.Context, endpoint string, params url.Values) (map[string]interface{}, error) {
	if t.closed.Load() {
		return nil, &APIError{Kind: ErrTransport, Message: "transport is already closed"}
	}

	requestURL := t.buildURL(endpoint, params)
	startedAt := t.clock()
	attempt := 0

	ctx, span := t.telemetry.StartSpan(ctx, "bojstat.request")
	defer span.End()
	span.SetAttribute("endpoint", endpoint)

	for {
		attempt++
		t.logger.DebugWithContext(ctx, "request start", map[string]interface{}{
			"operation": "request_start",
			"endpoint":  endpoint,
			"attempt":   attempt,
		})
		if err := t.throttler.Wait(ctx); err != nil {
			span.RecordError(err)
			return nil, &APIError{Kind: ErrTransport, Message: "request canceled while throttled", Cause: "network", Err: err}
		}

		response, err := t.send(ctx, requestURL)
		if err != nil {
			if t.canRetry(attempt, startedAt) {
				t.logger.WarnWithContext(ctx, "request network error; retrying", map[string]interface{}{
					"operation": "retry",
					"endpoint":  endpoint,
					"attempt":   attempt,
					"error":     err.Error(),
				})
				if sleepErr := t.backoff(ctx, attempt); sleepErr != nil {
					span.RecordError(sleepErr)
					return nil, &APIError{Kind: ErrTransport, Message: "request canceled during backoff", Cause: "network", Err: sleepErr}
				}
				continue
			}
			t.logger.ErrorWithContext(ctx, "request network error; giving up", map[string]interface{}{
				"operation": "request_failed",
				"endpoint":  endpoint,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			span.RecordError(err)
			return nil, &APIError{Kind: ErrTransport, Message: "network/transport error", Cause: "network", Err: err}
		}

		httpStatus := response.status
		span.SetAttribute("http.status_code", httpStatus)
		payload, err := parseJSONPayload(response.body, httpStatus)
		if err != nil {
			t.logger.ErrorWithContext(ctx, "response parse error", map[string]interface{}{
				"operation":   "request_failed",
				"endpoint":    endpoint,
				"attempt":     attempt,
				"http_status": httpStatus,
			})
			span.RecordError(err)
			return nil, err
		}

		mapped := ClassifyAPIError(payload, httpStatus)
		if mapped == nil {
			t.logger.InfoWithContext(ctx, "request success", map[string]interface{}{
				"operation": "request_success",
				"endpoint":  endpoint,
				"attempt":   attempt,
			})
			t.telemetry.RecordMetric("bojstat.request.attempts", float64(attempt), map[string]string{"endpoint": endpoint})
			return payload, nil
		}

		status, _ := ExtractStatus(payload)
		if IsRetryableAPIStatus(status) && t.canRetry(attempt, startedAt) {
			t.logger.WarnWithContext(ctx, "request transient failure; retrying", map[string]interface{}{
				"operation": "retry",
				"endpoint":  endpoint,
				"attempt":   attempt,
				"status":    status,
			})
			if sleepErr := t.backoff(ctx, attempt); sleepErr != nil {
				span.RecordError(sleepErr)
				return nil, &APIError{Kind: ErrTransport, Message: "request canceled during backoff", Cause: "network", Err: sleepErr}
			}
			continue
		}

		t.logger.ErrorWithContext(ctx, "request failed", map[string]interface{}{
			"operation":   "request_failed",
			"endpoint":    endpoint,
			"attempt":     attempt,
			"status":      mapped.Status,
			"http_status": httpStatus,
		})
		span.RecordError(mapped)
		return nil, mapped
	}
}

type rawResponse struct {
	status int
	body   []byte
}

func (t *Transport) send(ctx context.Context, requestURL string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", t.config.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return &rawResponse{status: resp.StatusCode, body: body}, nil
}

func (t *Transport) buildURL(endpoint string, params url.Values) string {
	base := strings.TrimRight(t.config.BaseURL, "/")
	path := strings.TrimLeft(endpoint, "/")
	requestURL := base + "/" + path
	if encoded := params.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}
	return requestURL
}

func (t *Transport) canRetry(attempt int, startedAt time.Time) bool {
	return CanRetry(attempt, t.config.Retry.MaxAttempts, startedAt, t.clock(), t.config.RetryBudget())
}

func (t *Transport) backoff(ctx context.Context, attempt int) error {
	t.rngMu.Lock()
	delay := NextBackoff(attempt-1, t.config.MaxBackoff(), t.rng)
	t.rngMu.Unlock()
	return t.sleep(ctx, delay)
}

// parseJSONPayload decodes a response body whose root must be a JSON
// object. Decode failures map onto the taxonomy by HTTP status band.
func parseJSONPayload(body []byte, httpStatus int) (map[string]interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		parseErr := JSONParseError(httpStatus)
		parseErr.Err = err
		return nil, parseErr
	}
	payload, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, &APIError{
			Kind:       ErrProtocol,
			Message:    "response JSON root must be an object",
			HTTPStatus: httpStatus,
		}
	}
	return payload, nil
}

package passio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"passiogo/pkg/metrics"
	potel "passiogo/pkg/otel"
	"passiogo/pkg/parser"
	"passiogo/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL   = "https://passiogo.com"
	DefaultUserAgent = "passiogo/1.0.0"
	DefaultTimeout   = 30 * time.Second
)

// Endpoint paths, relative to the base URL.
const (
	systemsPath = "/mapGetData.php?getSystems=2&sortMode=1&credentials=1"
	alertsPath  = "/goServices.php?getAlertMessages=1"
	routesPath  = "/mapGetData.php?getRoutes=1"
	busesPath   = "/mapGetData.php?getBuses=2"
	stopsPath   = "/mapGetData.php?getStops=2"
)

// Client talks to the PassioGo web API. It holds no per-call state and is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	parser     *parser.ResponseParser
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// NewHTTPClient returns an HTTP client instrumented with OpenTelemetry.
// A non-positive timeout selects DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: NewHTTPClient(DefaultTimeout),
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		parser:     parser.NewResponseParser(),
		tracer:     otel.Tracer("passio-client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the host the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetSystems lists every transportation system in the server's sort order.
func (c *Client) GetSystems(ctx context.Context) ([]types.TransportationSystem, error) {
	data, err := c.sendAPIRequest(ctx, parser.EndpointSystems, c.baseURL+systemsPath, nil)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseSystems(ctx, data), nil
}

// GetAlerts lists the service alerts of a system.
func (c *Client) GetAlerts(ctx context.Context, systemID int64) ([]types.SystemAlert, error) {
	body := map[string]interface{}{
		"systemSelected0": strconv.FormatInt(systemID, 10),
		"amount":          1,
	}

	data, err := c.sendAPIRequest(ctx, parser.EndpointAlerts, c.baseURL+alertsPath, body)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseAlerts(ctx, data), nil
}

// GetRoutes lists the routes of a system.
func (c *Client) GetRoutes(ctx context.Context, systemID int64) ([]types.Route, error) {
	body := map[string]interface{}{
		"systemSelected0": strconv.FormatInt(systemID, 10),
		"amount":          1,
	}

	data, err := c.sendAPIRequest(ctx, parser.EndpointRoutes, c.baseURL+routesPath, body)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseRoutes(ctx, data), nil
}

// GetBuses lists the vehicles of a system with their latest snapshot.
func (c *Client) GetBuses(ctx context.Context, systemID int64) ([]types.Vehicle, error) {
	body := map[string]interface{}{
		"s0": strconv.FormatInt(systemID, 10),
		"sA": 1,
	}

	data, err := c.sendAPIRequest(ctx, parser.EndpointBuses, c.baseURL+busesPath, body)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseBuses(ctx, data), nil
}

// GetStops lists the stops of a system with their positions on each route.
func (c *Client) GetStops(ctx context.Context, systemID int64) ([]types.Stop, error) {
	body := map[string]interface{}{
		"s0": strconv.FormatInt(systemID, 10),
		"sA": 1,
	}

	data, err := c.sendAPIRequest(ctx, parser.EndpointStops, c.baseURL+stopsPath, body)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseStops(ctx, data), nil
}

// FindSystem returns the first system whose name contains name, ignoring case.
func (c *Client) FindSystem(ctx context.Context, name string) (*types.TransportationSystem, error) {
	systems, err := c.GetSystems(ctx)
	if err != nil {
		return nil, err
	}

	sys := types.FindSystemByName(systems, name)
	if sys == nil {
		return nil, fmt.Errorf("%w: %q", ErrSystemNotFound, name)
	}
	return sys, nil
}

// sendAPIRequest performs one round trip and decodes the JSON body. A nil
// body sends a GET, anything else is POSTed as JSON.
func (c *Client) sendAPIRequest(ctx context.Context, op, url string, body interface{}) (interface{}, error) {
	method := http.MethodGet
	if body != nil {
		method = http.MethodPost
	}

	ctx, span := c.tracer.Start(ctx, "passio.fetch_"+op,
		trace.WithAttributes(
			attribute.String("passio.endpoint", op),
			attribute.String("http.url", url),
			attribute.String("http.method", method),
		),
	)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("endpoint", op),
			attribute.String("status", status),
		)
		metrics.PassioAPIRequestsTotal.Add(ctx, 1, attrs)
		metrics.HTTPClientRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			potel.RecordError(span, err, potel.ErrorTypeValidation, false)
			return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
		metrics.HTTPClientRequestBodySize.Record(ctx, int64(len(payload)))
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeValidation, false)
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("Sending PassioGo request", "endpoint", op, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeNetwork, true)
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("http.response.content_type", resp.Header.Get("Content-Type")),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeNetwork, true)
		return nil, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	metrics.HTTPClientResponseBodySize.Record(ctx, int64(len(raw)))
	span.SetAttributes(attribute.Int("response.size_bytes", len(raw)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status: %s", truncate(raw, 256))
		potel.RecordError(span, err, potel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return nil, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	data, err := decodeJSON(raw)
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeParse, false)
		return nil, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	status = "ok"
	potel.SetSpanOk(span)
	slog.Debug("Received PassioGo response", "endpoint", op, "status", resp.StatusCode, "bytes", len(raw))

	return data, nil
}

// decodeJSON decodes a single JSON document keeping numbers as json.Number
// so integer ids and float coordinates stay distinguishable.
func decodeJSON(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

package metrics

import (
	"go.opentelemetry.io/otel/metric"
)

// HTTP Client Metrics (OTEL Semantic Conventions)
var (
	HTTPClientRequestDuration  metric.Float64Histogram
	HTTPClientRequestBodySize  metric.Int64Histogram
	HTTPClientResponseBodySize metric.Int64Histogram
)

// PassioGo API Metrics
var (
	// PassioAPIRequestsTotal counts requests by endpoint and status (ok|error)
	PassioAPIRequestsTotal metric.Int64Counter
)

// Parser Metrics
var (
	ParseDuration          metric.Float64Histogram
	ParserRecordsExtracted metric.Int64Counter

	// ParserRecordsSkipped counts entries dropped by the mapper, by reason
	ParserRecordsSkipped metric.Int64Counter
)

// Tracker Metrics
var (
	TrackerCyclesTotal        metric.Int64Counter
	TrackerCycleDuration      metric.Float64Histogram
	TrackerVehiclesProcessed  metric.Int64Counter
	TrackerSystemsInFlight    metric.Int64UpDownCounter
	TrackerErrorsTotal        metric.Int64Counter
	TrackerCycleSystemsFailed metric.Int64Counter
)

// Loki Metrics
var (
	LokiBatchSize    metric.Int64Histogram
	LokiSendDuration metric.Float64Histogram
	LokiSendTotal    metric.Int64Counter
)

// Gateway Metrics
var (
	GatewayRequestsTotal metric.Int64Counter
)

// initializeInstruments creates all metric instruments
func initializeInstruments() error {
	var err error

	HTTPClientRequestDuration, err = Meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1.0, 2.5, 5.0, 7.5, 10.0),
	)
	if err != nil {
		return err
	}

	HTTPClientRequestBodySize, err = Meter.Int64Histogram(
		"http.client.request.body.size",
		metric.WithDescription("Size of HTTP request bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(16, 64, 256, 1024, 4096),
	)
	if err != nil {
		return err
	}

	HTTPClientResponseBodySize, err = Meter.Int64Histogram(
		"http.client.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1024, 10240, 102400, 1048576, 10485760), // 1KB to 10MB
	)
	if err != nil {
		return err
	}

	PassioAPIRequestsTotal, err = Meter.Int64Counter(
		"passio.api.requests.total",
		metric.WithDescription("Total PassioGo API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	ParseDuration, err = Meter.Float64Histogram(
		"passio.parse.duration",
		metric.WithDescription("Duration of response mapping"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5),
	)
	if err != nil {
		return err
	}

	ParserRecordsExtracted, err = Meter.Int64Counter(
		"passio.parser.records.extracted",
		metric.WithDescription("Records built from PassioGo responses"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return err
	}

	ParserRecordsSkipped, err = Meter.Int64Counter(
		"passio.parser.records.skipped",
		metric.WithDescription("Response entries skipped while mapping"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return err
	}

	TrackerCyclesTotal, err = Meter.Int64Counter(
		"tracker.cycles.total",
		metric.WithDescription("Total number of tracker polling cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	TrackerCycleDuration, err = Meter.Float64Histogram(
		"tracker.cycle.duration",
		metric.WithDescription("Duration of tracker polling cycles"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return err
	}

	TrackerVehiclesProcessed, err = Meter.Int64Counter(
		"tracker.vehicles.processed",
		metric.WithDescription("Number of vehicles processed"),
		metric.WithUnit("{vehicle}"),
	)
	if err != nil {
		return err
	}

	TrackerSystemsInFlight, err = Meter.Int64UpDownCounter(
		"tracker.systems.in_flight",
		metric.WithDescription("Number of systems currently being polled"),
		metric.WithUnit("{system}"),
	)
	if err != nil {
		return err
	}

	TrackerErrorsTotal, err = Meter.Int64Counter(
		"tracker.errors.total",
		metric.WithDescription("Total errors by stage"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	TrackerCycleSystemsFailed, err = Meter.Int64Counter(
		"tracker.cycle.systems.failed",
		metric.WithDescription("Systems that failed per cycle"),
		metric.WithUnit("{system}"),
	)
	if err != nil {
		return err
	}

	LokiBatchSize, err = Meter.Int64Histogram(
		"loki.batch.size",
		metric.WithDescription("Number of vehicle records per batch"),
		metric.WithUnit("{record}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return err
	}

	LokiSendDuration, err = Meter.Float64Histogram(
		"loki.send.duration",
		metric.WithDescription("Duration of Loki push operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return err
	}

	LokiSendTotal, err = Meter.Int64Counter(
		"loki.send.total",
		metric.WithDescription("Total Loki sends by status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	GatewayRequestsTotal, err = Meter.Int64Counter(
		"gateway.requests.total",
		metric.WithDescription("Gateway requests by route and status class"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	return nil
}

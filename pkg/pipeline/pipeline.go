package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"passiogo/pkg/loki"
	"passiogo/pkg/metrics"
	potel "passiogo/pkg/otel"
	"passiogo/pkg/passio"
	"passiogo/pkg/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultInterval = 30 * time.Second

// VehicleSource fetches the current vehicles of one system.
type VehicleSource interface {
	GetBuses(ctx context.Context, systemID int64) ([]types.Vehicle, error)
}

// Sink receives one batch per system per cycle.
type Sink interface {
	SendVehicles(ctx context.Context, batch loki.Batch) error
}

type Pipeline struct {
	config Config
	source VehicleSource
	sink   Sink
	out    io.Writer
	tracer trace.Tracer
}

type Config struct {
	DryRun       bool
	SystemIDs    []int64
	SystemNames  map[int64]string
	LokiURL      string
	LokiUser     string
	LokiPassword string
	Interval     time.Duration
}

// Option overrides a collaborator, mostly for tests.
type Option func(*Pipeline)

func WithSource(source VehicleSource) Option {
	return func(p *Pipeline) { p.source = source }
}

func WithSink(sink Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithOutput sets where dry-run lines are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

func New(config Config, client *passio.Client, opts ...Option) (*Pipeline, error) {
	if len(config.SystemIDs) == 0 {
		return nil, fmt.Errorf("at least one system id is required")
	}
	if !config.DryRun && config.LokiURL == "" {
		return nil, fmt.Errorf("loki URL is required unless dry run is enabled")
	}

	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}

	pipeline := &Pipeline{
		config: config,
		out:    os.Stdout,
		tracer: otel.Tracer("pipeline"),
	}
	if client != nil {
		pipeline.source = client
	}

	// Only create Loki client if not in dry run mode
	if !config.DryRun {
		pipeline.sink = loki.NewClient(config.LokiURL, config.LokiUser, config.LokiPassword)
	}

	for _, opt := range opts {
		opt(pipeline)
	}

	if pipeline.source == nil {
		return nil, fmt.Errorf("a vehicle source is required")
	}

	return pipeline, nil
}

func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	slog.Info("Tracker started", "interval", p.config.Interval, "systems", p.config.SystemIDs, "dry_run", p.config.DryRun)

	// Process immediately on start
	if err := p.ProcessOnce(ctx); err != nil {
		slog.Error("Error in initial cycle", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Tracker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil {
				slog.Error("Error in tracker cycle", "error", err)
			}
		}
	}
}

type systemResult struct {
	systemID int64
	vehicles []types.Vehicle
	err      error
}

// ProcessOnce runs a single polling cycle across every configured system. It
// returns an error only when no system was both fetched and delivered.
func (p *Pipeline) ProcessOnce(ctx context.Context) error {
	cycleID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "pipeline.process_once",
		trace.WithAttributes(
			attribute.String("cycle.id", cycleID),
			attribute.Int64Slice("system_ids", p.config.SystemIDs),
			attribute.Bool("dry_run", p.config.DryRun),
		),
	)
	defer span.End()

	start := time.Now()
	logger := slog.With("cycle_id", cycleID)

	results := make(chan systemResult, len(p.config.SystemIDs))
	for _, systemID := range p.config.SystemIDs {
		go func(id int64) {
			results <- p.fetchSystem(ctx, id)
		}(systemID)
	}

	var failures []error
	fetched := 0
	delivered := 0
	totalVehicles := 0
	for range p.config.SystemIDs {
		result := <-results
		if result.err != nil {
			failures = append(failures, result.err)
			logger.Error("Error fetching system", "system_id", result.systemID, "error", result.err)
			continue
		}

		fetched++
		totalVehicles += len(result.vehicles)

		batch := loki.Batch{
			SystemID:   result.systemID,
			SystemName: p.config.SystemNames[result.systemID],
			CycleID:    cycleID,
			Timestamp:  start,
			Vehicles:   result.vehicles,
		}
		if err := p.deliver(ctx, batch); err != nil {
			failures = append(failures, err)
			logger.Error("Error delivering vehicles", "system_id", result.systemID, "error", err)
			continue
		}
		delivered++
	}

	duration := time.Since(start)
	status := "ok"
	if len(failures) > 0 {
		status = "partial"
	}
	if delivered == 0 {
		status = "error"
	}

	metrics.TrackerCyclesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	metrics.TrackerCycleDuration.Record(ctx, duration.Seconds())
	if len(failures) > 0 {
		metrics.TrackerCycleSystemsFailed.Add(ctx, int64(len(failures)))
	}

	span.SetAttributes(
		attribute.Int("total_vehicles_processed", totalVehicles),
		attribute.Int("fetched_systems", fetched),
		attribute.Int("successful_systems", delivered),
		attribute.Int("failed_systems", len(p.config.SystemIDs)-delivered),
		attribute.String("processing_duration", duration.String()),
	)

	logger.Info("Tracker cycle finished",
		"vehicles", totalVehicles,
		"systems_ok", delivered,
		"failures", len(failures),
		"duration", duration,
	)

	// A cycle counts as a success only if some batch reached its destination.
	if delivered == 0 {
		err := fmt.Errorf("all systems failed: %w", errors.Join(failures...))
		potel.RecordError(span, err, potel.ErrorTypeUpstream, true)
		return err
	}

	metrics.RecordLastSuccessTimestamp()
	potel.SetSpanOk(span)
	return nil
}

func (p *Pipeline) fetchSystem(ctx context.Context, systemID int64) systemResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_system",
		trace.WithAttributes(attribute.Int64("system.id", systemID)),
	)
	defer span.End()

	metrics.TrackerSystemsInFlight.Add(ctx, 1)
	defer metrics.TrackerSystemsInFlight.Add(ctx, -1)

	vehicles, err := p.source.GetBuses(ctx, systemID)
	if err != nil {
		metrics.TrackerErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "fetch")))
		potel.RecordError(span, err, potel.ErrorTypeUpstream, true)
		return systemResult{systemID: systemID, err: fmt.Errorf("failed to fetch vehicles for system %d: %w", systemID, err)}
	}

	metrics.TrackerVehiclesProcessed.Add(ctx, int64(len(vehicles)),
		metric.WithAttributes(attribute.String("system.id", strconv.FormatInt(systemID, 10))))
	span.SetAttributes(attribute.Int("vehicles_processed", len(vehicles)))
	potel.SetSpanOk(span)

	return systemResult{systemID: systemID, vehicles: vehicles}
}

func (p *Pipeline) deliver(ctx context.Context, batch loki.Batch) error {
	if p.config.DryRun {
		return p.handleDryRun(ctx, batch)
	}
	return p.sendToLoki(ctx, batch)
}

func (p *Pipeline) handleDryRun(ctx context.Context, batch loki.Batch) error {
	_, span := p.tracer.Start(ctx, "pipeline.dry_run")
	defer span.End()

	fmt.Fprintf(p.out, "\n=== DRY RUN - System %d (cycle %s) ===\n", batch.SystemID, batch.CycleID)
	fmt.Fprintf(p.out, "Timestamp: %s\n", batch.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(p.out, "Vehicles Found: %d\n", len(batch.Vehicles))

	for i, v := range batch.Vehicles {
		line, err := json.Marshal(v)
		if err != nil {
			potel.RecordError(span, err, potel.ErrorTypeParse, false)
			return fmt.Errorf("failed to marshal vehicle JSON for dry run: %w", err)
		}
		fmt.Fprintf(p.out, "Vehicle %d: %s\n", i+1, line)
	}

	fmt.Fprintln(p.out, "=== END DRY RUN ===")

	span.SetAttributes(attribute.Int("vehicles_printed", len(batch.Vehicles)))
	return nil
}

func (p *Pipeline) sendToLoki(ctx context.Context, batch loki.Batch) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.send_to_loki")
	defer span.End()

	if p.sink == nil {
		err := fmt.Errorf("loki client not initialized")
		potel.RecordError(span, err, potel.ErrorTypeValidation, false)
		return err
	}

	if err := p.sink.SendVehicles(ctx, batch); err != nil {
		metrics.TrackerErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "send")))
		potel.RecordError(span, err, potel.ErrorTypeNetwork, true)
		return fmt.Errorf("failed to send vehicles for system %d to Loki: %w", batch.SystemID, err)
	}

	slog.Debug("Sent vehicle log lines to Loki", "system_id", batch.SystemID, "count", len(batch.Vehicles))
	span.SetAttributes(attribute.Int("vehicles_sent", len(batch.Vehicles)))
	return nil
}

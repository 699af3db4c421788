package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"passiogo/pkg/loki"
	"passiogo/pkg/metrics"
	"passiogo/pkg/passio"
	"passiogo/pkg/types"
)

type fakeSource struct {
	vehicles map[int64][]types.Vehicle
	errs     map[int64]error
}

func (f *fakeSource) GetBuses(_ context.Context, systemID int64) ([]types.Vehicle, error) {
	if err := f.errs[systemID]; err != nil {
		return nil, err
	}
	return f.vehicles[systemID], nil
}

type recordingSink struct {
	mu      sync.Mutex
	batches []loki.Batch
	err     error
}

func (r *recordingSink) SendVehicles(_ context.Context, batch loki.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return r.err
}

func TestNewPipeline_Validation(t *testing.T) {
	client := passio.NewClient()

	tests := []struct {
		name      string
		config    Config
		client    *passio.Client
		expectErr bool
		errMsg    string
	}{
		{
			name: "valid config",
			config: Config{
				SystemIDs: []int64{1068, 1069},
				LokiURL:   "http://localhost:3100",
				Interval:  30 * time.Second,
			},
			client: client,
		},
		{
			name: "valid config with dry run",
			config: Config{
				SystemIDs: []int64{1068},
				DryRun:    true,
				Interval:  30 * time.Second,
			},
			client: client,
		},
		{
			name: "missing system ids",
			config: Config{
				SystemIDs: []int64{},
				LokiURL:   "http://localhost:3100",
			},
			client:    client,
			expectErr: true,
			errMsg:    "at least one system id is required",
		},
		{
			name: "missing loki url outside dry run",
			config: Config{
				SystemIDs: []int64{1068},
			},
			client:    client,
			expectErr: true,
			errMsg:    "loki URL is required unless dry run is enabled",
		},
		{
			name: "no source",
			config: Config{
				SystemIDs: []int64{1068},
				DryRun:    true,
			},
			expectErr: true,
			errMsg:    "a vehicle source is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline, err := New(tt.config, tt.client)

			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error containing %q, got nil", tt.errMsg)
				} else if tt.errMsg != "" && err.Error() != tt.errMsg {
					t.Errorf("Expected error %q, got %q", tt.errMsg, err.Error())
				}
				if pipeline != nil {
					t.Error("Expected nil pipeline on error")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if pipeline == nil {
					t.Error("Expected non-nil pipeline")
				}
			}
		})
	}
}

func TestNewPipeline_DryRunNoLokiClient(t *testing.T) {
	pipeline, err := New(Config{SystemIDs: []int64{1}, DryRun: true}, passio.NewClient())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pipeline.sink != nil {
		t.Error("Expected sink to be nil in dry run mode")
	}
}

func TestNewPipeline_ProductionHasLokiClient(t *testing.T) {
	pipeline, err := New(Config{SystemIDs: []int64{1}, LokiURL: "http://localhost:3100"}, passio.NewClient())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := pipeline.sink.(*loki.Client); !ok {
		t.Errorf("Expected *loki.Client sink, got %T", pipeline.sink)
	}
}

func TestNewPipeline_DefaultInterval(t *testing.T) {
	pipeline, err := New(Config{SystemIDs: []int64{1}, DryRun: true}, passio.NewClient())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pipeline.config.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s default", pipeline.config.Interval)
	}
}

func TestProcessOnce_SendsOneBatchPerSystem(t *testing.T) {
	source := &fakeSource{vehicles: map[int64][]types.Vehicle{
		1: {{ID: "a"}, {ID: "b"}},
		2: {{ID: "c"}},
	}}
	sink := &recordingSink{}

	pipeline, err := New(
		Config{SystemIDs: []int64{1, 2}, SystemNames: map[int64]string{1: "One"}, LokiURL: "http://unused"},
		nil, WithSource(source), WithSink(sink),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := pipeline.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	if len(sink.batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(sink.batches))
	}
	bySystem := make(map[int64]loki.Batch)
	for _, b := range sink.batches {
		bySystem[b.SystemID] = b
	}
	if len(bySystem[1].Vehicles) != 2 || len(bySystem[2].Vehicles) != 1 {
		t.Errorf("unexpected vehicles per system: %+v", bySystem)
	}
	if bySystem[1].SystemName != "One" {
		t.Errorf("SystemName = %q, want One", bySystem[1].SystemName)
	}
	if bySystem[1].CycleID == "" || bySystem[1].CycleID != bySystem[2].CycleID {
		t.Errorf("batches of one cycle should share a cycle id: %q vs %q", bySystem[1].CycleID, bySystem[2].CycleID)
	}
}

func TestProcessOnce_PartialFailure(t *testing.T) {
	source := &fakeSource{
		vehicles: map[int64][]types.Vehicle{1: {{ID: "a"}}},
		errs:     map[int64]error{2: errors.New("boom")},
	}
	sink := &recordingSink{}

	pipeline, err := New(Config{SystemIDs: []int64{1, 2}, LokiURL: "http://unused"}, nil, WithSource(source), WithSink(sink))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := pipeline.ProcessOnce(context.Background()); err != nil {
		t.Errorf("partial failure should not fail the cycle: %v", err)
	}
	if len(sink.batches) != 1 || sink.batches[0].SystemID != 1 {
		t.Errorf("expected only system 1 delivered, got %+v", sink.batches)
	}
}

func TestProcessOnce_AllSystemsFail(t *testing.T) {
	upstream := errors.New("upstream down")
	source := &fakeSource{errs: map[int64]error{1: upstream, 2: upstream}}

	pipeline, err := New(Config{SystemIDs: []int64{1, 2}, DryRun: true}, nil, WithSource(source), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = pipeline.ProcessOnce(context.Background())
	if err == nil {
		t.Fatal("Expected error when every system fails")
	}
	if !errors.Is(err, upstream) {
		t.Errorf("error should wrap the upstream failure: %v", err)
	}
}

func TestProcessOnce_AllDeliveriesFail(t *testing.T) {
	source := &fakeSource{vehicles: map[int64][]types.Vehicle{1: {{ID: "a"}}, 2: {{ID: "b"}}}}
	sinkErr := errors.New("loki unavailable")
	sink := &recordingSink{err: sinkErr}

	pipeline, err := New(Config{SystemIDs: []int64{1, 2}, LokiURL: "http://unused"}, nil, WithSource(source), WithSink(sink))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	before := metrics.LastSuccess()
	err = pipeline.ProcessOnce(context.Background())
	if !errors.Is(err, sinkErr) {
		t.Errorf("ProcessOnce = %v, want error wrapping the delivery failure", err)
	}
	if last := metrics.LastSuccess(); !last.Equal(before) {
		t.Errorf("last success moved to %v on a cycle that delivered nothing", last)
	}
}

func TestProcessOnce_RecordsLastSuccess(t *testing.T) {
	source := &fakeSource{vehicles: map[int64][]types.Vehicle{1: {{ID: "a"}}}}
	pipeline, err := New(Config{SystemIDs: []int64{1}, LokiURL: "http://unused"}, nil, WithSource(source), WithSink(&recordingSink{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	before := time.Now()
	if err := pipeline.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}
	if last := metrics.LastSuccess(); last.Before(before) {
		t.Errorf("last success = %v, want at or after %v", last, before)
	}
}

func TestProcessOnce_DryRunPrintsVehicles(t *testing.T) {
	source := &fakeSource{vehicles: map[int64][]types.Vehicle{1068: {{ID: "4521"}}}}
	var out bytes.Buffer

	pipeline, err := New(Config{SystemIDs: []int64{1068}, DryRun: true}, nil, WithSource(source), WithOutput(&out))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := pipeline.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	printed := out.String()
	for _, want := range []string{"DRY RUN - System 1068", "Vehicles Found: 1", `"id":"4521"`, "END DRY RUN"} {
		if !strings.Contains(printed, want) {
			t.Errorf("dry run output missing %q:\n%s", want, printed)
		}
	}
}

func TestProcessOnce_DryRunNonFiniteSpeed(t *testing.T) {
	speed := math.NaN()
	source := &fakeSource{vehicles: map[int64][]types.Vehicle{1068: {{ID: "4521", Speed: &speed}}}}
	var out bytes.Buffer

	pipeline, err := New(Config{SystemIDs: []int64{1068}, DryRun: true}, nil, WithSource(source), WithOutput(&out))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := pipeline.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}
	if !strings.Contains(out.String(), `"speed":null`) {
		t.Errorf("expected speed printed as null:\n%s", out.String())
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	source := &fakeSource{vehicles: map[int64][]types.Vehicle{1: nil}}
	pipeline, err := New(Config{SystemIDs: []int64{1}, DryRun: true, Interval: time.Hour}, nil, WithSource(source), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pipeline.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

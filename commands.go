package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"passiogo/pkg/config"
	"passiogo/pkg/metrics"
	"passiogo/pkg/output"
	"passiogo/pkg/passio"
	"passiogo/pkg/pipeline"
	"passiogo/pkg/profiling"
	"passiogo/pkg/server"
	"passiogo/pkg/tracing"
)

var (
	errUsage = errors.New("usage")
	errHelp  = errors.New("help requested")
)

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	baseURL    string
	timeout    time.Duration
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("PASSIOGO_CONFIG"), "YAML config file")
	fs.StringVar(&c.baseURL, "base-url", "", "PassioGo API base URL")
	fs.DurationVar(&c.timeout, "timeout", 0, "HTTP timeout")
}

// load reads the config and applies the flags the user actually set.
func (c *commonFlags) load(fs *flag.FlagSet, apply func(cfg *config.Config, name string)) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = c.baseURL
		case "timeout":
			cfg.Timeout = c.timeout
		default:
			if apply != nil {
				apply(cfg, f.Name)
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return errUsage
	}
	return nil
}

func newClient(cfg *config.Config) *passio.Client {
	return passio.NewClient(
		passio.WithBaseURL(cfg.BaseURL),
		passio.WithHTTPClient(passio.NewHTTPClient(cfg.Timeout)),
		passio.WithUserAgent(cfg.UserAgent),
	)
}

// initTelemetry starts tracing, metrics and profiling and returns a single
// shutdown function.
func initTelemetry(command string) (func(), error) {
	shutdownTracing, err := tracing.InitTracing()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	shutdownMetrics, err := metrics.InitMetrics()
	if err != nil {
		shutdownTracing()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	shutdownProfiling, err := profiling.InitProfiling(command)
	if err != nil {
		shutdownMetrics()
		shutdownTracing()
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	return func() {
		shutdownProfiling()
		shutdownMetrics()
		shutdownTracing()
	}, nil
}

func runSystems(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("systems", stderr)
	var common commonFlags
	common.register(fs)
	format := fs.String("format", "json", "Output format: json or xml")
	if err := parse(fs, args); err != nil {
		return err
	}

	outFormat, err := output.ParseFormat(*format)
	if err != nil {
		return err
	}
	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}

	shutdown, err := initTelemetry("systems")
	if err != nil {
		return err
	}
	defer shutdown()

	systems, err := newClient(cfg).GetSystems(ctx)
	if err != nil {
		return err
	}
	return output.Write(stdout, outFormat, "systems", "system", systems)
}

// runList handles the per-system listing commands.
func runList(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet(command, stderr)
	var common commonFlags
	common.register(fs)
	systemID := fs.Int64("system", 0, "System id")
	systemName := fs.String("system-name", "", "Find the system by (part of) its name instead of -system")
	format := fs.String("format", "json", "Output format: json or xml")
	if err := parse(fs, args); err != nil {
		return err
	}

	outFormat, err := output.ParseFormat(*format)
	if err != nil {
		return err
	}
	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}

	shutdown, err := initTelemetry(command)
	if err != nil {
		return err
	}
	defer shutdown()

	client := newClient(cfg)
	id, err := resolveSystem(ctx, client, *systemID, *systemName)
	if err != nil {
		return err
	}

	switch command {
	case "routes":
		routes, err := client.GetRoutes(ctx, id)
		if err != nil {
			return err
		}
		return output.Write(stdout, outFormat, "routes", "route", routes)
	case "stops":
		stops, err := client.GetStops(ctx, id)
		if err != nil {
			return err
		}
		return output.Write(stdout, outFormat, "stops", "stop", stops)
	case "buses":
		vehicles, err := client.GetBuses(ctx, id)
		if err != nil {
			return err
		}
		return output.Write(stdout, outFormat, "vehicles", "vehicle", vehicles)
	default:
		alerts, err := client.GetAlerts(ctx, id)
		if err != nil {
			return err
		}
		return output.Write(stdout, outFormat, "alerts", "alert", alerts)
	}
}

func resolveSystem(ctx context.Context, client *passio.Client, id int64, name string) (int64, error) {
	if id > 0 {
		return id, nil
	}
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("one of -system or -system-name is required")
	}

	system, err := client.FindSystem(ctx, name)
	if err != nil {
		return 0, err
	}
	slog.Debug("Resolved system by name", "name", name, "system_id", system.ID)
	return system.ID, nil
}

func runTrack(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("track", stderr)
	var common commonFlags
	common.register(fs)
	var (
		systemIDs    = fs.String("system-ids", "", "Systems to track, comma-separated")
		interval     = fs.Duration("interval", 0, "Polling interval")
		dryRun       = fs.Bool("dry-run", false, "Print vehicles to stdout instead of sending to Loki")
		lokiURL      = fs.String("loki-url", "", "Grafana Loki URL")
		lokiUser     = fs.String("loki-user", "", "Loki username (for Grafana Cloud authentication)")
		lokiPassword = fs.String("loki-password", "", "Loki password/token (for Grafana Cloud authentication)")
	)
	if err := parse(fs, args); err != nil {
		return err
	}

	var flagErr error
	cfg, err := common.load(fs, func(cfg *config.Config, name string) {
		switch name {
		case "system-ids":
			ids, err := config.ParseSystemIDs(*systemIDs)
			if err != nil {
				flagErr = fmt.Errorf("invalid -system-ids: %w", err)
				return
			}
			cfg.Tracker.SystemIDs = ids
		case "interval":
			cfg.Tracker.Interval = *interval
		case "dry-run":
			cfg.Tracker.DryRun = *dryRun
		case "loki-url":
			cfg.Loki.URL = *lokiURL
		case "loki-user":
			cfg.Loki.User = *lokiUser
		case "loki-password":
			cfg.Loki.Password = *lokiPassword
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err != nil {
		return err
	}

	shutdown, err := initTelemetry("track")
	if err != nil {
		return err
	}
	defer shutdown()

	tracker, err := newTracker(ctx, cfg, newClient(cfg), stdout)
	if err != nil {
		return err
	}
	return runTracker(ctx, tracker)
}

func newTracker(ctx context.Context, cfg *config.Config, client *passio.Client, stdout io.Writer) (*pipeline.Pipeline, error) {
	pipelineConfig := pipeline.Config{
		DryRun:       cfg.Tracker.DryRun,
		SystemIDs:    cfg.Tracker.SystemIDs,
		SystemNames:  systemNames(ctx, client, cfg.Tracker.SystemIDs),
		LokiURL:      cfg.Loki.URL,
		LokiUser:     cfg.Loki.User,
		LokiPassword: cfg.Loki.Password,
		Interval:     cfg.Tracker.Interval,
	}

	tracker, err := pipeline.New(pipelineConfig, client, pipeline.WithOutput(stdout))
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	if cfg.Tracker.DryRun {
		slog.Info("Starting tracker in DRY RUN mode, vehicles are printed to stdout")
	} else {
		slog.Info("Starting tracker", "loki_url", cfg.Loki.URL)
	}
	return tracker, nil
}

func runTracker(ctx context.Context, tracker *pipeline.Pipeline) error {
	if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Tracker shutdown complete")
	return nil
}

// systemNames labels tracked systems for the log lines. Lookup failures only
// cost the labels.
func systemNames(ctx context.Context, client *passio.Client, ids []int64) map[int64]string {
	names := make(map[int64]string, len(ids))
	systems, err := client.GetSystems(ctx)
	if err != nil {
		slog.Warn("Could not fetch system names", "error", err)
		return names
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for _, s := range systems {
		if wanted[s.ID] && s.Name != nil {
			names[s.ID] = *s.Name
		}
	}
	return names
}

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	var common commonFlags
	common.register(fs)
	listen := fs.String("listen", "", "Listen address")
	origins := fs.String("allowed-origins", "", "CORS origins, comma-separated")
	track := fs.Bool("track", false, "Also run the vehicle tracker with the tracker settings from config")
	systemIDs := fs.String("system-ids", "", "Systems to track with -track, comma-separated")
	if err := parse(fs, args); err != nil {
		return err
	}

	var flagErr error
	cfg, err := common.load(fs, func(cfg *config.Config, name string) {
		switch name {
		case "system-ids":
			ids, err := config.ParseSystemIDs(*systemIDs)
			if err != nil {
				flagErr = fmt.Errorf("invalid -system-ids: %w", err)
				return
			}
			cfg.Tracker.SystemIDs = ids
		case "listen":
			cfg.Server.ListenAddr = *listen
		case "allowed-origins":
			var list []string
			for _, o := range strings.Split(*origins, ",") {
				if o = strings.TrimSpace(o); o != "" {
					list = append(list, o)
				}
			}
			cfg.Server.AllowedOrigins = list
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err != nil {
		return err
	}

	shutdown, err := initTelemetry("serve")
	if err != nil {
		return err
	}
	defer shutdown()

	client := newClient(cfg)

	// The tracker shares the gateway's lifetime so /healthz can report its
	// last delivered cycle.
	trackCtx, stopTracker := context.WithCancel(ctx)
	defer stopTracker()
	trackerDone := make(chan error, 1)
	if *track {
		tracker, err := newTracker(trackCtx, cfg, client, stdout)
		if err != nil {
			return err
		}
		go func() { trackerDone <- runTracker(trackCtx, tracker) }()
	} else {
		trackerDone <- nil
	}

	gateway := server.New(client, server.Options{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		UpstreamTimeout: cfg.Timeout,
	})
	serveErr := gateway.ListenAndServe(ctx, cfg.Server.ListenAddr)
	stopTracker()
	trackerErr := <-trackerDone
	return errors.Join(serveErr, trackerErr)
}

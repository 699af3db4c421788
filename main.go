package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"passiogo/pkg/config"
	"passiogo/pkg/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.InitLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch cmd := args[0]; cmd {
	case "systems":
		err = runSystems(ctx, args[1:], stdout, stderr)
	case "routes", "stops", "buses", "alerts":
		err = runList(ctx, cmd, args[1:], stdout, stderr)
	case "track":
		err = runTrack(ctx, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", cmd)
		usage(stderr)
		return 2
	}

	if err != nil {
		switch {
		case errors.Is(err, errHelp):
			return 0
		case errors.Is(err, errUsage):
			return 2
		}
		slog.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: passiogo <command> [options]\n\n")
	fmt.Fprintf(w, "Client for the PassioGo transit API.\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  systems   List transportation systems\n")
	fmt.Fprintf(w, "  routes    List routes of a system\n")
	fmt.Fprintf(w, "  stops     List stops of a system with their route positions\n")
	fmt.Fprintf(w, "  buses     List current vehicles of a system\n")
	fmt.Fprintf(w, "  alerts    List service alerts of a system\n")
	fmt.Fprintf(w, "  track     Poll vehicles and ship them to Grafana Loki\n")
	fmt.Fprintf(w, "  serve     Run the HTTP gateway (JSON and GTFS-Realtime)\n\n")
	fmt.Fprintf(w, "Run 'passiogo <command> -h' for command options.\n\n")
	fmt.Fprintf(w, "Environment Variables:\n")
	fmt.Fprintf(w, "  PASSIOGO_CONFIG        - YAML config file\n")
	fmt.Fprintf(w, "  PASSIOGO_BASE_URL      - API base URL (default: https://passiogo.com)\n")
	fmt.Fprintf(w, "  PASSIOGO_TIMEOUT       - HTTP timeout (default: 30s)\n")
	fmt.Fprintf(w, "  PASSIOGO_SYSTEM_IDS    - Systems to track, comma-separated\n")
	fmt.Fprintf(w, "  PASSIOGO_INTERVAL      - Tracker polling interval (default: 30s)\n")
	fmt.Fprintf(w, "  PASSIOGO_LOKI_URL      - Loki URL (default: http://localhost:3100)\n")
	fmt.Fprintf(w, "  PASSIOGO_LOKI_USER     - Loki username (for Grafana Cloud)\n")
	fmt.Fprintf(w, "  PASSIOGO_LOKI_PASSWORD - Loki password/token (for Grafana Cloud)\n")
	fmt.Fprintf(w, "  PASSIOGO_LISTEN_ADDR   - Gateway listen address (default: :8080)\n")
	fmt.Fprintf(w, "  LOG_LEVEL              - debug, info, warn, error (default: info)\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  passiogo systems -format xml\n")
	fmt.Fprintf(w, "  passiogo buses -system-name lehigh\n")
	fmt.Fprintf(w, "  passiogo track -system-ids 1068 -dry-run\n")
	fmt.Fprintf(w, "  passiogo serve -listen :8080\n")
	fmt.Fprintf(w, "  passiogo serve -track -system-ids 1068\n")
}

// Package server exposes the PassioGo client over HTTP: JSON listings per
// system plus GTFS-Realtime vehicle position and alert feeds.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"passiogo/pkg/metrics"
	"passiogo/pkg/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Source is the subset of *passio.Client the gateway needs.
type Source interface {
	GetSystems(ctx context.Context) ([]types.TransportationSystem, error)
	GetRoutes(ctx context.Context, systemID int64) ([]types.Route, error)
	GetStops(ctx context.Context, systemID int64) ([]types.Stop, error)
	GetBuses(ctx context.Context, systemID int64) ([]types.Vehicle, error)
	GetAlerts(ctx context.Context, systemID int64) ([]types.SystemAlert, error)
}

type Options struct {
	AllowedOrigins []string
	// UpstreamTimeout bounds each PassioGo call made for a request.
	UpstreamTimeout time.Duration
	// AlertLocation is the zone alert start/end times are read in.
	AlertLocation *time.Location
}

type Server struct {
	source  Source
	opts    Options
	handler http.Handler
	now     func() time.Time
}

func New(source Source, opts Options) *Server {
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 15 * time.Second
	}
	if opts.AlertLocation == nil {
		opts.AlertLocation = time.UTC
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{source: source, opts: opts, now: time.Now}
	s.handler = otelhttp.NewHandler(s.routes(), "passiogo-gateway")
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", s.health)

	r.Route("/api/systems", func(r chi.Router) {
		r.Get("/", s.listSystems)
		r.Route("/{systemID}", func(r chi.Router) {
			r.Get("/routes", s.listRoutes)
			r.Get("/stops", s.listStops)
			r.Get("/vehicles", s.listVehicles)
			r.Get("/alerts", s.listAlerts)
			r.Get("/gtfs-rt/vehicle-positions", s.vehiclePositionsFeed)
			r.Get("/gtfs-rt/alerts", s.alertsFeed)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Gateway shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// countRequests records one GatewayRequestsTotal sample per request, keyed
// by route pattern so ids do not explode cardinality.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.GatewayRequestsTotal.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("status_class", status/100),
		))
	})
}

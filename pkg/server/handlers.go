package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"passiogo/pkg/gtfsrt"
	"passiogo/pkg/metrics"
	"passiogo/pkg/passio"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go-chi/chi/v5"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ListResponse struct {
	SystemID  *int64      `json:"system_id,omitempty"`
	Count     int         `json:"count"`
	Data      interface{} `json:"data"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// HealthResponse reports liveness. LastTrackerCycle is set once a tracker
// running in the same process (serve -track) has delivered a cycle.
type HealthResponse struct {
	Status           string     `json:"status"`
	Time             time.Time  `json:"time"`
	MetricsEnabled   bool       `json:"metrics_enabled"`
	LastTrackerCycle *time.Time `json:"last_tracker_cycle,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Time: s.now().UTC(), MetricsEnabled: metrics.IsEnabled()}
	if last := metrics.LastSuccess(); !last.IsZero() {
		resp.LastTrackerCycle = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSystems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.UpstreamTimeout)
	defer cancel()

	systems, err := s.source.GetSystems(ctx)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: len(systems), Data: systems, FetchedAt: s.now().UTC()})
}

func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	s.listForSystem(w, r, func(ctx context.Context, id int64) (interface{}, int, error) {
		routes, err := s.source.GetRoutes(ctx, id)
		return routes, len(routes), err
	})
}

func (s *Server) listStops(w http.ResponseWriter, r *http.Request) {
	s.listForSystem(w, r, func(ctx context.Context, id int64) (interface{}, int, error) {
		stops, err := s.source.GetStops(ctx, id)
		return stops, len(stops), err
	})
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	s.listForSystem(w, r, func(ctx context.Context, id int64) (interface{}, int, error) {
		vehicles, err := s.source.GetBuses(ctx, id)
		return vehicles, len(vehicles), err
	})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	s.listForSystem(w, r, func(ctx context.Context, id int64) (interface{}, int, error) {
		alerts, err := s.source.GetAlerts(ctx, id)
		return alerts, len(alerts), err
	})
}

func (s *Server) listForSystem(w http.ResponseWriter, r *http.Request, fetch func(context.Context, int64) (interface{}, int, error)) {
	systemID, ok := parseSystemID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.UpstreamTimeout)
	defer cancel()

	data, n, err := fetch(ctx, systemID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{SystemID: &systemID, Count: n, Data: data, FetchedAt: s.now().UTC()})
}

func (s *Server) vehiclePositionsFeed(w http.ResponseWriter, r *http.Request) {
	systemID, ok := parseSystemID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.UpstreamTimeout)
	defer cancel()

	vehicles, err := s.source.GetBuses(ctx, systemID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeFeed(w, r, gtfsrt.VehiclePositions(vehicles, s.now()))
}

func (s *Server) alertsFeed(w http.ResponseWriter, r *http.Request) {
	systemID, ok := parseSystemID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.UpstreamTimeout)
	defer cancel()

	alerts, err := s.source.GetAlerts(ctx, systemID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeFeed(w, r, gtfsrt.Alerts(alerts, s.opts.AlertLocation, s.now()))
}

func parseSystemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "systemID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid system id " + strconv.Quote(raw)})
		return 0, false
	}
	return id, true
}

func writeFeed(w http.ResponseWriter, r *http.Request, feed *gtfs.FeedMessage) {
	asJSON := r.URL.Query().Get("format") == "json"
	body, err := gtfsrt.Marshal(feed, asJSON)
	if err != nil {
		slog.Error("Failed to encode GTFS-RT feed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to encode feed"})
		return
	}

	if asJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "application/x-protobuf")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, passio.ErrTransport):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	slog.Warn("Upstream request failed", "status", status, "error", err)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// writeJSON encodes before writing the header so an encoding failure can
// still become a 500.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

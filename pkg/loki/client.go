package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"passiogo/pkg/marker"
	"passiogo/pkg/metrics"
	potel "passiogo/pkg/otel"
	"passiogo/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	pushPath  = "/loki/api/v1/push"
	userAgent = "passiogo/1.0.0"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	markers    *marker.Generator
	tracer     trace.Tracer
	now        func() time.Time
}

type PushRequest struct {
	Streams []Stream `json:"streams"`
}

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// Batch is one system's vehicles from a single tracker cycle.
type Batch struct {
	SystemID   int64
	SystemName string
	CycleID    string
	Timestamp  time.Time
	Vehicles   []types.Vehicle
}

// vehicleLine is the JSON body of a single Loki log line.
type vehicleLine struct {
	Timestamp        string           `json:"timestamp"`
	CycleID          string           `json:"cycle_id"`
	SystemID         int64            `json:"system_id"`
	SystemName       string           `json:"system_name,omitempty"`
	VehicleID        string           `json:"vehicle_id"`
	Name             *string          `json:"name"`
	RouteID          *string          `json:"route_id"`
	RouteName        *string          `json:"route_name"`
	TripID           *string          `json:"trip_id"`
	Latitude         *types.JSONFloat `json:"latitude"`
	Longitude        *types.JSONFloat `json:"longitude"`
	CalculatedCourse *types.JSONFloat `json:"calculated_course"`
	Speed            *types.JSONFloat `json:"speed"`
	PaxLoad          *types.JSONFloat `json:"pax_load"`
	OutOfService     *bool            `json:"out_of_service"`
	Created          *string          `json:"created"`
	BusImage         string           `json:"bus_image"`
}

func NewClient(baseURL, username, password string) *Client {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}

	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		username:   username,
		password:   password,
		markers:    marker.NewGenerator(),
		tracer:     otel.Tracer("loki-client"),
		now:        time.Now,
	}
}

// SendVehicles pushes one log line per vehicle into a stream labelled with
// the system id.
func (c *Client) SendVehicles(ctx context.Context, batch Batch) error {
	systemID := strconv.FormatInt(batch.SystemID, 10)
	ctx, span := c.tracer.Start(ctx, "loki.send_vehicles",
		trace.WithAttributes(
			attribute.Int64("system.id", batch.SystemID),
			attribute.String("cycle.id", batch.CycleID),
			attribute.Int("vehicles_count", len(batch.Vehicles)),
		),
	)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		attrs := metric.WithAttributes(attribute.String("status", status))
		metrics.LokiSendDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.LokiSendTotal.Add(ctx, 1, attrs)
	}()
	metrics.LokiBatchSize.Record(ctx, int64(len(batch.Vehicles)))

	ts := batch.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}

	logValues := make([][]string, 0, len(batch.Vehicles))
	for i, v := range batch.Vehicles {
		line, err := json.Marshal(c.vehicleLine(batch, ts, v))
		if err != nil {
			potel.RecordError(span, err, potel.ErrorTypeParse, false)
			return fmt.Errorf("failed to marshal vehicle %s: %w", v.ID, err)
		}

		// Loki drops entries with identical timestamp and content, so keep
		// each vehicle on its own nanosecond.
		logValues = append(logValues, []string{
			strconv.FormatInt(ts.UnixNano()+int64(i), 10),
			string(line),
		})
	}

	lokiReq := PushRequest{
		Streams: []Stream{
			{
				Stream: map[string]string{
					"job":       "passiogo",
					"service":   "vehicle-tracking",
					"system_id": systemID,
				},
				Values: logValues,
			},
		},
	}

	reqBody, err := json.Marshal(lokiReq)
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeParse, false)
		return fmt.Errorf("failed to marshal Loki request: %w", err)
	}

	url := c.baseURL + pushPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeValidation, false)
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
		span.SetAttributes(
			attribute.Bool("auth.enabled", true),
			attribute.String("auth.username", c.username),
		)
	} else {
		span.SetAttributes(attribute.Bool("auth.enabled", false))
	}

	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.Int("request.size_bytes", len(reqBody)),
		attribute.Int("log_lines_count", len(logValues)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		potel.RecordError(span, err, potel.ErrorTypeNetwork, true)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("Loki returned status %d", resp.StatusCode)
		potel.RecordError(span, err, potel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return err
	}

	status = "ok"
	potel.SetSpanOk(span)
	return nil
}

func (c *Client) vehicleLine(batch Batch, ts time.Time, v types.Vehicle) vehicleLine {
	label := v.ID
	if v.RouteName != nil && *v.RouteName != "" {
		label = *v.RouteName
	} else if v.Name != nil && *v.Name != "" {
		label = *v.Name
	}
	color := ""
	if v.Color != nil {
		color = *v.Color
	}
	outOfService := v.OutOfService != nil && *v.OutOfService

	return vehicleLine{
		Timestamp:        ts.UTC().Format(time.RFC3339Nano),
		CycleID:          batch.CycleID,
		SystemID:         batch.SystemID,
		SystemName:       batch.SystemName,
		VehicleID:        v.ID,
		Name:             v.Name,
		RouteID:          v.RouteID,
		RouteName:        v.RouteName,
		TripID:           v.TripID,
		Latitude:         types.NullableFloat(v.Latitude),
		Longitude:        types.NullableFloat(v.Longitude),
		CalculatedCourse: types.NullableFloat(v.CalculatedCourse),
		Speed:            types.NullableFloat(v.Speed),
		PaxLoad:          types.NullableFloat(v.PaxLoad),
		OutOfService:     v.OutOfService,
		Created:          v.Created,
		BusImage:         c.markers.VehicleMarker(label, color, v.CalculatedCourse, outOfService),
	}
}

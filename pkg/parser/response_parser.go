package parser

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"passiogo/pkg/coerce"
	"passiogo/pkg/metrics"
	"passiogo/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Endpoint names used for span and metric attributes.
const (
	EndpointSystems = "systems"
	EndpointAlerts  = "alerts"
	EndpointRoutes  = "routes"
	EndpointBuses   = "buses"
	EndpointStops   = "stops"
)

// ResponseParser turns decoded PassioGo responses into typed records.
//
// Input is whatever encoding/json produced for the response body (ideally
// with UseNumber). Shape mismatches never fail: missing or mistyped parts of
// the envelope yield fewer records, and mistyped fields yield nil.
type ResponseParser struct {
	tracer trace.Tracer
}

func NewResponseParser() *ResponseParser {
	return &ResponseParser{
		tracer: otel.Tracer("passio-parser"),
	}
}

func (p *ResponseParser) ParseSystems(ctx context.Context, data interface{}) []types.TransportationSystem {
	ctx, span := p.start(ctx, EndpointSystems)
	defer span.End()
	start := time.Now()

	list := asSlice(asMap(data)["all"])
	systems := make([]types.TransportationSystem, 0, len(list))
	for _, item := range list {
		sys := asMap(item)
		systems = append(systems, types.TransportationSystem{
			ID:                    systemID(sys["id"]),
			Name:                  coerce.String(sys["fullname"]),
			Username:              coerce.String(sys["username"]),
			GoAgencyName:          coerce.String(sys["goAgencyName"]),
			Email:                 coerce.String(sys["email"]),
			GoTestMode:            coerce.Bool(sys["goTestMode"]),
			Name2:                 coerce.Bool(sys["name2"]),
			Homepage:              coerce.String(sys["homepage"]),
			Logo:                  coerce.Bool(sys["logo"]),
			GoRoutePlannerEnabled: coerce.Bool(sys["goRoutePlannerEnabled"]),
			GoColor:               coerce.String(sys["goColor"]),
			GoSupportEmail:        coerce.String(sys["goSupportEmail"]),
			GoSharedCode:          coerce.Int64(sys["goSharedCode"]),
			GoAuthenticationType:  coerce.Bool(sys["goAuthenticationType"]),
		})
	}

	p.finish(ctx, span, EndpointSystems, start, len(systems))
	return systems
}

func (p *ResponseParser) ParseAlerts(ctx context.Context, data interface{}) []types.SystemAlert {
	ctx, span := p.start(ctx, EndpointAlerts)
	defer span.End()
	start := time.Now()

	list := listEnvelope(data, "msgs")
	alerts := make([]types.SystemAlert, 0, len(list))
	for _, item := range list {
		m := asMap(item)
		alerts = append(alerts, types.SystemAlert{
			ID:                       idText(m, "id"),
			SystemID:                 coerce.Int64(m["userId"]),
			RouteID:                  coerce.String(m["routeId"]),
			Name:                     coerce.String(m["name"]),
			HTML:                     coerce.String(m["html"]),
			Archive:                  coerce.Bool(m["archive"]),
			Important:                coerce.Bool(m["important"]),
			DateTimeCreated:          coerce.String(m["created"]),
			DateTimeFrom:             coerce.String(m["from"]),
			DateTimeTo:               coerce.String(m["to"]),
			AsPush:                   coerce.Bool(m["asPush"]),
			Gtfs:                     coerce.Bool(m["gtfs"]),
			GtfsAlertCauseID:         coerce.Int64(m["gtfsAlertCauseId"]),
			GtfsAlertEffectID:        coerce.Int64(m["gtfsAlertEffectId"]),
			GtfsAlertURL:             coerce.String(m["gtfsAlertUrl"]),
			GtfsAlertHeaderText:      coerce.String(m["gtfsAlertHeaderText"]),
			GtfsAlertDescriptionText: coerce.String(m["gtfsAlertDescriptionText"]),
			RouteGroupID:             coerce.Int64(m["routeGroupId"]),
			CreatedUTC:               coerce.String(m["createdUtc"]),
			AuthorID:                 coerce.Int64(m["authorId"]),
			Author:                   coerce.String(m["author"]),
			Updated:                  coerce.String(m["updated"]),
			UpdateAuthorID:           coerce.Int64(m["updateAuthorId"]),
			UpdateAuthor:             coerce.String(m["updateAuthor"]),
			CreatedF:                 coerce.String(m["createdF"]),
			FromF:                    coerce.String(m["fromF"]),
			FromOK:                   coerce.Bool(m["fromOk"]),
			ToOK:                     coerce.Bool(m["toOk"]),
		})
	}

	p.finish(ctx, span, EndpointAlerts, start, len(alerts))
	return alerts
}

func (p *ResponseParser) ParseRoutes(ctx context.Context, data interface{}) []types.Route {
	ctx, span := p.start(ctx, EndpointRoutes)
	defer span.End()
	start := time.Now()

	list := listEnvelope(data, "all")
	routes := make([]types.Route, 0, len(list))
	for _, item := range list {
		r := asMap(item)
		routes = append(routes, types.Route{
			ID:                idText(r, "id"),
			GroupID:           coerce.String(r["groupId"]),
			GroupColor:        coerce.String(r["groupColor"]),
			Name:              coerce.String(r["name"]),
			ShortName:         coerce.String(r["shortName"]),
			NameOrig:          coerce.String(r["nameOrig"]),
			Fullname:          coerce.String(r["fullname"]),
			MyID:              coerce.String(r["myid"]),
			MapApp:            coerce.Bool(r["mapApp"]),
			Archive:           coerce.Bool(r["archive"]),
			GoPrefixRouteName: coerce.Bool(r["goPrefixRouteName"]),
			GoShowSchedule:    coerce.Bool(r["goShowSchedule"]),
			Outdated:          coerce.Bool(r["outdated"]),
			Distance:          coerce.Float64(r["distance"]),
			Latitude:          coerce.Float64(r["latitude"]),
			Longitude:         coerce.Float64(r["longitude"]),
			Timezone:          coerce.String(r["timezone"]),
			ServiceTime:       coerce.String(r["serviceTime"]),
			ServiceTimeShort:  coerce.String(r["serviceTimeShort"]),
			SystemID:          coerce.Int64(r["systemId"]),
		})
	}

	p.finish(ctx, span, EndpointRoutes, start, len(routes))
	return routes
}

func (p *ResponseParser) start(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "passio_parser.parse_"+endpoint,
		trace.WithAttributes(attribute.String("endpoint", endpoint)),
	)
}

func (p *ResponseParser) finish(ctx context.Context, span trace.Span, endpoint string, start time.Time, n int) {
	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	metrics.ParseDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	metrics.ParserRecordsExtracted.Add(ctx, int64(n), attrs)

	span.SetAttributes(attribute.Int("records_count", n))
}

func (p *ResponseParser) skipped(ctx context.Context, endpoint, reason string) {
	metrics.ParserRecordsSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// systemID reads a system id sent either as a numeric string or as a JSON
// integer. Anything else is 0.
func systemID(v interface{}) int64 {
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return 0
		}
		return n
	}
	if n := coerce.Int64(v); n != nil {
		return *n
	}
	return 0
}

// idText returns the JSON text of m[key] without quotes, or "" when the key
// is missing.
func idText(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return coerce.Text(v)
}

// listEnvelope accepts either a bare array or an object holding the array
// under key.
func listEnvelope(data interface{}, key string) []interface{} {
	if list, ok := data.([]interface{}); ok {
		return list
	}
	return asSlice(asMap(data)[key])
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

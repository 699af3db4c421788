package parser

import (
	"context"
	"slices"
	"time"

	"passiogo/pkg/coerce"
	"passiogo/pkg/types"
)

// routeHeaderEntries is the number of metadata entries that precede the
// [position, stopId] pairs in each "routes" list.
const routeHeaderEntries = 2

// routeStop is one accepted [position, stopId] pair of a route.
type routeStop struct {
	position float64
	stopID   string
}

// ParseStops builds the stop list and, for every stop, the positions it
// occupies on each route. Stops are ordered by key.
func (p *ResponseParser) ParseStops(ctx context.Context, data interface{}) []types.Stop {
	ctx, span := p.start(ctx, EndpointStops)
	defer span.End()
	start := time.Now()

	envelope := asMap(data)
	positions := p.routePositions(ctx, asMap(envelope["routes"]))

	stopsByKey := asMap(envelope["stops"])
	stops := make([]types.Stop, 0, len(stopsByKey))
	for _, key := range sortedKeys(stopsByKey) {
		s := asMap(stopsByKey[key])

		id := key
		if sid := coerce.String(s["id"]); sid != nil {
			id = *sid
		}

		stops = append(stops, types.Stop{
			ID:                 id,
			RoutesAndPositions: cloneRoutes(positions[id]),
			SystemID:           coerce.Int64(s["userId"]),
			Name:               coerce.String(s["name"]),
			Latitude:           coerce.Float64(s["latitude"]),
			Longitude:          coerce.Float64(s["longitude"]),
			Radius:             coerce.Float64(s["radius"]),
		})
	}

	p.finish(ctx, span, EndpointStops, start, len(stops))
	return stops
}

// routePositions indexes the "routes" object as stop id -> route id ->
// positions, keeping the order in which each route lists its stops.
//
// A position that is not a number falls back to the number of pairs already
// accepted for that route, not to the pair's index in the raw list.
func (p *ResponseParser) routePositions(ctx context.Context, routes map[string]interface{}) map[string]map[string][]float64 {
	index := make(map[string]map[string][]float64)

	for _, routeID := range sortedKeys(routes) {
		list := asSlice(routes[routeID])
		if len(list) <= routeHeaderEntries {
			continue
		}

		var accepted []routeStop
		for _, item := range list[routeHeaderEntries:] {
			pair := asSlice(item)
			if len(pair) < 2 {
				p.skipped(ctx, EndpointStops, "malformed_pair")
				continue
			}

			stopID := ""
			if sid := coerce.String(pair[1]); sid != nil {
				stopID = *sid
			}
			if stopID == "" || stopID == "0" {
				p.skipped(ctx, EndpointStops, "empty_stop_id")
				continue
			}

			position := float64(len(accepted))
			if pos := coerce.Float64(pair[0]); pos != nil {
				position = *pos
			}
			accepted = append(accepted, routeStop{position: position, stopID: stopID})
		}

		for _, rs := range accepted {
			byRoute, ok := index[rs.stopID]
			if !ok {
				byRoute = make(map[string][]float64)
				index[rs.stopID] = byRoute
			}
			byRoute[routeID] = append(byRoute[routeID], rs.position)
		}
	}

	return index
}

// cloneRoutes gives every stop record its own map, even when two stop
// objects share an id. A nil input yields an empty map.
func cloneRoutes(routes map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(routes))
	for routeID, ranks := range routes {
		out[routeID] = slices.Clone(ranks)
	}
	return out
}

package parser

import (
	"context"
	"time"

	"passiogo/pkg/coerce"
	"passiogo/pkg/types"
)

// noVehicleKey is the key PassioGo uses for the placeholder "no bus" entry.
const noVehicleKey = "-1"

// ParseBuses builds one Vehicle per entry of the "buses" object, using the
// first (most recent) snapshot of each. Vehicles are ordered by key.
func (p *ResponseParser) ParseBuses(ctx context.Context, data interface{}) []types.Vehicle {
	ctx, span := p.start(ctx, EndpointBuses)
	defer span.End()
	start := time.Now()

	buses := asMap(asMap(data)["buses"])
	vehicles := make([]types.Vehicle, 0, len(buses))
	for _, busID := range sortedKeys(buses) {
		if busID == noVehicleKey {
			p.skipped(ctx, EndpointBuses, "placeholder")
			continue
		}

		snapshots := asSlice(buses[busID])
		if len(snapshots) == 0 {
			p.skipped(ctx, EndpointBuses, "no_snapshot")
			continue
		}

		v := asMap(snapshots[0])
		id := busID
		if raw, ok := v["busId"]; ok {
			id = coerce.Text(raw)
		}

		vehicles = append(vehicles, types.Vehicle{
			ID:               id,
			Name:             coerce.String(v["busName"]),
			Type:             coerce.String(v["busType"]),
			CalculatedCourse: coerce.Float64(v["calculatedCourse"]),
			RouteID:          coerce.String(v["routeId"]),
			RouteName:        coerce.String(v["route"]),
			Color:            coerce.String(v["color"]),
			Created:          coerce.String(v["created"]),
			Latitude:         coerce.Float64(v["latitude"]),
			Longitude:        coerce.Float64(v["longitude"]),
			Speed:            coerce.Float64(v["speed"]),
			PaxLoad:          coerce.Float64(v["paxLoad100"]),
			OutOfService:     coerce.Bool(v["outOfService"]),
			More:             coerce.String(v["more"]),
			TripID:           coerce.String(v["tripId"]),
		})
	}

	p.finish(ctx, span, EndpointBuses, start, len(vehicles))
	return vehicles
}

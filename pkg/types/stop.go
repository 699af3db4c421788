package types

import "sort"

// Stop is a stop together with the positions it occupies on each route.
//
// RoutesAndPositions maps route id to the ranks at which the stop appears on
// that route, in the order the server listed them. A stop served twice by a
// loop route (outbound and inbound) has two positions. The map is empty, not
// nil, for stops that belong to no route.
type Stop struct {
	ID                 string               `json:"id"`
	RoutesAndPositions map[string][]float64 `json:"routes_and_positions"`
	SystemID           *int64               `json:"system_id,omitempty"`
	Name               *string              `json:"name,omitempty"`
	Latitude           *float64             `json:"latitude,omitempty"`
	Longitude          *float64             `json:"longitude,omitempty"`
	Radius             *float64             `json:"radius,omitempty"`
}

// RouteIDs returns the ids of the routes serving the stop, sorted.
func (s Stop) RouteIDs() []string {
	ids := make([]string, 0, len(s.RoutesAndPositions))
	for id := range s.RoutesAndPositions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package types

import (
	"encoding/json"
	"math"
)

// JSONFloat encodes like float64 except that NaN and ±Inf, which the upstream
// can send as strings, encode as null.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// NullableFloat converts an optional float for encoding.
func NullableFloat(p *float64) *JSONFloat {
	if p == nil {
		return nil
	}
	f := JSONFloat(*p)
	return &f
}

func (v Vehicle) MarshalJSON() ([]byte, error) {
	type plain Vehicle
	return json.Marshal(struct {
		plain
		CalculatedCourse *JSONFloat `json:"calculated_course,omitempty"`
		Latitude         *JSONFloat `json:"latitude,omitempty"`
		Longitude        *JSONFloat `json:"longitude,omitempty"`
		Speed            *JSONFloat `json:"speed,omitempty"`
		PaxLoad          *JSONFloat `json:"pax_load,omitempty"`
	}{
		plain:            plain(v),
		CalculatedCourse: NullableFloat(v.CalculatedCourse),
		Latitude:         NullableFloat(v.Latitude),
		Longitude:        NullableFloat(v.Longitude),
		Speed:            NullableFloat(v.Speed),
		PaxLoad:          NullableFloat(v.PaxLoad),
	})
}

func (r Route) MarshalJSON() ([]byte, error) {
	type plain Route
	return json.Marshal(struct {
		plain
		Distance  *JSONFloat `json:"distance,omitempty"`
		Latitude  *JSONFloat `json:"latitude,omitempty"`
		Longitude *JSONFloat `json:"longitude,omitempty"`
	}{
		plain:     plain(r),
		Distance:  NullableFloat(r.Distance),
		Latitude:  NullableFloat(r.Latitude),
		Longitude: NullableFloat(r.Longitude),
	})
}

func (s Stop) MarshalJSON() ([]byte, error) {
	type plain Stop
	var routes map[string][]JSONFloat
	if s.RoutesAndPositions != nil {
		routes = make(map[string][]JSONFloat, len(s.RoutesAndPositions))
		for id, positions := range s.RoutesAndPositions {
			out := make([]JSONFloat, len(positions))
			for i, p := range positions {
				out[i] = JSONFloat(p)
			}
			routes[id] = out
		}
	}
	return json.Marshal(struct {
		plain
		RoutesAndPositions map[string][]JSONFloat `json:"routes_and_positions"`
		Latitude           *JSONFloat             `json:"latitude,omitempty"`
		Longitude          *JSONFloat             `json:"longitude,omitempty"`
		Radius             *JSONFloat             `json:"radius,omitempty"`
	}{
		plain:              plain(s),
		RoutesAndPositions: routes,
		Latitude:           NullableFloat(s.Latitude),
		Longitude:          NullableFloat(s.Longitude),
		Radius:             NullableFloat(s.Radius),
	})
}

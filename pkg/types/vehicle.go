package types

// Vehicle is the most recent snapshot of a bus reported by a system.
type Vehicle struct {
	ID               string   `json:"id"`
	Name             *string  `json:"name,omitempty"`
	Type             *string  `json:"type,omitempty"`
	CalculatedCourse *float64 `json:"calculated_course,omitempty"` // heading in degrees
	RouteID          *string  `json:"route_id,omitempty"`
	RouteName        *string  `json:"route_name,omitempty"`
	Color            *string  `json:"color,omitempty"`
	Created          *string  `json:"created,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
	PaxLoad          *float64 `json:"pax_load,omitempty"` // passenger load, percent
	OutOfService     *bool    `json:"out_of_service,omitempty"`
	More             *string  `json:"more,omitempty"`
	TripID           *string  `json:"trip_id,omitempty"`
}

// HasPosition reports whether both coordinates are known.
func (v Vehicle) HasPosition() bool {
	return v.Latitude != nil && v.Longitude != nil
}

package types

// Route is a single route of a transportation system.
type Route struct {
	ID                string   `json:"id"`
	GroupID           *string  `json:"group_id,omitempty"`
	GroupColor        *string  `json:"group_color,omitempty"`
	Name              *string  `json:"name,omitempty"`
	ShortName         *string  `json:"short_name,omitempty"`
	NameOrig          *string  `json:"name_orig,omitempty"`
	Fullname          *string  `json:"fullname,omitempty"`
	MyID              *string  `json:"myid,omitempty"` // key used by the route planner
	MapApp            *bool    `json:"map_app,omitempty"`
	Archive           *bool    `json:"archive,omitempty"`
	GoPrefixRouteName *bool    `json:"go_prefix_route_name,omitempty"`
	GoShowSchedule    *bool    `json:"go_show_schedule,omitempty"`
	Outdated          *bool    `json:"outdated,omitempty"`
	Distance          *float64 `json:"distance,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	Timezone          *string  `json:"timezone,omitempty"`
	ServiceTime       *string  `json:"service_time,omitempty"`
	ServiceTimeShort  *string  `json:"service_time_short,omitempty"`
	SystemID          *int64   `json:"system_id,omitempty"`
}

package types

import "strings"

// TransportationSystem is an agency/organisation hosted on PassioGo.
type TransportationSystem struct {
	ID                    int64   `json:"id"`
	Name                  *string `json:"name,omitempty"`
	Username              *string `json:"username,omitempty"`
	GoAgencyName          *string `json:"go_agency_name,omitempty"`
	Email                 *string `json:"email,omitempty"`
	GoTestMode            *bool   `json:"go_test_mode,omitempty"`
	Name2                 *bool   `json:"name2,omitempty"`
	Homepage              *string `json:"homepage,omitempty"`
	Logo                  *bool   `json:"logo,omitempty"`
	GoRoutePlannerEnabled *bool   `json:"go_route_planner_enabled,omitempty"`
	GoColor               *string `json:"go_color,omitempty"`
	GoSupportEmail        *string `json:"go_support_email,omitempty"`
	GoSharedCode          *int64  `json:"go_shared_code,omitempty"`
	GoAuthenticationType  *bool   `json:"go_authentication_type,omitempty"`
}

// FindSystemByName returns the first system whose name contains name,
// ignoring case. It returns nil when nothing matches or name is empty.
func FindSystemByName(systems []TransportationSystem, name string) *TransportationSystem {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	for i := range systems {
		if systems[i].Name == nil {
			continue
		}
		if strings.Contains(strings.ToLower(*systems[i].Name), needle) {
			return &systems[i]
		}
	}
	return nil
}

package types

// SystemAlert is a service message published by a transportation system.
// The Gtfs* fields carry the GTFS-Realtime alert attributes when the agency
// publishes the message to its GTFS feed as well.
type SystemAlert struct {
	ID                       string  `json:"id"`
	SystemID                 *int64  `json:"system_id,omitempty"`
	RouteID                  *string `json:"route_id,omitempty"`
	Name                     *string `json:"name,omitempty"`
	HTML                     *string `json:"html,omitempty"`
	Archive                  *bool   `json:"archive,omitempty"`
	Important                *bool   `json:"important,omitempty"`
	DateTimeCreated          *string `json:"date_time_created,omitempty"`
	DateTimeFrom             *string `json:"date_time_from,omitempty"`
	DateTimeTo               *string `json:"date_time_to,omitempty"`
	AsPush                   *bool   `json:"as_push,omitempty"`
	Gtfs                     *bool   `json:"gtfs,omitempty"`
	GtfsAlertCauseID         *int64  `json:"gtfs_alert_cause_id,omitempty"`
	GtfsAlertEffectID        *int64  `json:"gtfs_alert_effect_id,omitempty"`
	GtfsAlertURL             *string `json:"gtfs_alert_url,omitempty"`
	GtfsAlertHeaderText      *string `json:"gtfs_alert_header_text,omitempty"`
	GtfsAlertDescriptionText *string `json:"gtfs_alert_description_text,omitempty"`
	RouteGroupID             *int64  `json:"route_group_id,omitempty"`
	CreatedUTC               *string `json:"created_utc,omitempty"`
	AuthorID                 *int64  `json:"author_id,omitempty"`
	Author                   *string `json:"author,omitempty"`
	Updated                  *string `json:"updated,omitempty"`
	UpdateAuthorID           *int64  `json:"update_author_id,omitempty"`
	UpdateAuthor             *string `json:"update_author,omitempty"`
	CreatedF                 *string `json:"created_f,omitempty"`
	FromF                    *string `json:"from_f,omitempty"`
	FromOK                   *bool   `json:"from_ok,omitempty"`
	ToOK                     *bool   `json:"to_ok,omitempty"`
}

// Package gtfsrt converts PassioGo vehicles and alerts into GTFS-Realtime
// feeds.
package gtfsrt

import (
	"fmt"
	"math"
	"time"

	"passiogo/pkg/types"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const (
	gtfsRealtimeVersion = "2.0"
	defaultLanguage     = "en"
)

// PassioGo reports alert windows in the agency's wall clock without a zone.
var alertTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func newFeed(now time.Time) *gtfs.FeedMessage {
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
}

// VehiclePositions builds a full-dataset feed with one entity per vehicle
// that has both coordinates. Vehicles without a position are left out.
func VehiclePositions(vehicles []types.Vehicle, now time.Time) *gtfs.FeedMessage {
	feed := newFeed(now)

	for _, v := range vehicles {
		if !v.HasPosition() || !finite(*v.Latitude) || !finite(*v.Longitude) {
			continue
		}

		position := &gtfs.Position{
			Latitude:  proto.Float32(float32(*v.Latitude)),
			Longitude: proto.Float32(float32(*v.Longitude)),
		}
		if v.CalculatedCourse != nil && finite(*v.CalculatedCourse) {
			position.Bearing = proto.Float32(float32(*v.CalculatedCourse))
		}
		if v.Speed != nil && finite(*v.Speed) {
			position.Speed = proto.Float32(float32(*v.Speed))
		}

		descriptor := &gtfs.VehicleDescriptor{Id: proto.String(v.ID)}
		if v.Name != nil {
			descriptor.Label = proto.String(*v.Name)
		}

		vp := &gtfs.VehiclePosition{
			Vehicle:   descriptor,
			Position:  position,
			Timestamp: proto.Uint64(uint64(now.Unix())),
		}
		if v.RouteID != nil || v.TripID != nil {
			trip := &gtfs.TripDescriptor{}
			if v.RouteID != nil {
				trip.RouteId = proto.String(*v.RouteID)
			}
			if v.TripID != nil {
				trip.TripId = proto.String(*v.TripID)
			}
			vp.Trip = trip
		}

		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:      proto.String("vehicle-" + v.ID),
			Vehicle: vp,
		})
	}

	return feed
}

// Alerts builds a full-dataset feed from system alerts. Archived alerts are
// skipped. Cause and effect are only set when the ids are valid GTFS-RT
// enum values.
func Alerts(alerts []types.SystemAlert, loc *time.Location, now time.Time) *gtfs.FeedMessage {
	if loc == nil {
		loc = time.UTC
	}
	feed := newFeed(now)

	for _, a := range alerts {
		if a.Archive != nil && *a.Archive {
			continue
		}

		alert := &gtfs.Alert{}

		if id, ok := enumID(a.GtfsAlertCauseID); ok {
			if _, ok := gtfs.Alert_Cause_name[id]; ok {
				alert.Cause = gtfs.Alert_Cause(id).Enum()
			}
		}
		if id, ok := enumID(a.GtfsAlertEffectID); ok {
			if _, ok := gtfs.Alert_Effect_name[id]; ok {
				alert.Effect = gtfs.Alert_Effect(id).Enum()
			}
		}

		header := firstNonEmpty(a.GtfsAlertHeaderText, a.Name)
		if header != "" {
			alert.HeaderText = translated(header)
		}
		description := firstNonEmpty(a.GtfsAlertDescriptionText, a.HTML)
		if description != "" {
			alert.DescriptionText = translated(description)
		}
		if url := firstNonEmpty(a.GtfsAlertURL); url != "" {
			alert.Url = translated(url)
		}

		if period := activePeriod(a, loc); period != nil {
			alert.ActivePeriod = []*gtfs.TimeRange{period}
		}

		selector := &gtfs.EntitySelector{}
		switch {
		case a.RouteID != nil && *a.RouteID != "" && *a.RouteID != "0":
			selector.RouteId = proto.String(*a.RouteID)
		case a.SystemID != nil:
			selector.AgencyId = proto.String(fmt.Sprint(*a.SystemID))
		}
		if selector.RouteId != nil || selector.AgencyId != nil {
			alert.InformedEntity = []*gtfs.EntitySelector{selector}
		}

		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:    proto.String("alert-" + a.ID),
			Alert: alert,
		})
	}

	return feed
}

// Marshal encodes the feed as protobuf, or as protojson when asJSON is set.
func Marshal(feed *gtfs.FeedMessage, asJSON bool) ([]byte, error) {
	if asJSON {
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(feed)
	}
	return proto.Marshal(feed)
}

func activePeriod(a types.SystemAlert, loc *time.Location) *gtfs.TimeRange {
	var period gtfs.TimeRange
	if t, ok := parseAlertTime(a.DateTimeFrom, loc); ok {
		period.Start = proto.Uint64(uint64(t.Unix()))
	}
	if t, ok := parseAlertTime(a.DateTimeTo, loc); ok {
		period.End = proto.Uint64(uint64(t.Unix()))
	}
	if period.Start == nil && period.End == nil {
		return nil
	}
	return &period
}

func parseAlertTime(s *string, loc *time.Location) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	for _, layout := range alertTimeLayouts {
		if t, err := time.ParseInLocation(layout, *s, loc); err == nil && t.Unix() > 0 {
			return t, true
		}
	}
	return time.Time{}, false
}

func translated(text string) *gtfs.TranslatedString {
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{
			{Text: proto.String(text), Language: proto.String(defaultLanguage)},
		},
	}
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func enumID(v *int64) (int32, bool) {
	if v == nil || *v < 0 || *v > math.MaxInt32 {
		return 0, false
	}
	return int32(*v), true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

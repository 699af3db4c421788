package parser

import (
	"context"
	"reflect"
	"testing"
)

func TestParseStops_Positions(t *testing.T) {
	data := decode(t, `{
		"routes":{
			"R1":["hdr1","hdr2",[1.0,"S1"],[2.0,"S2"],[3.0,"S1"]]
		},
		"stops":{
			"S1":{"id":"S1","name":"Packer Hall","latitude":"40.6069","longitude":-75.3783,"radius":"30","userId":"7"},
			"S2":{"id":"S2","name":"Farrington Square"}
		}
	}`)

	stops := NewResponseParser().ParseStops(context.Background(), data)
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}

	s1 := stops[0]
	if s1.ID != "S1" {
		t.Fatalf("stops[0].ID = %q, want S1", s1.ID)
	}
	if want := map[string][]float64{"R1": {1.0, 3.0}}; !reflect.DeepEqual(s1.RoutesAndPositions, want) {
		t.Errorf("S1 positions = %v, want %v", s1.RoutesAndPositions, want)
	}
	if s1.Name == nil || *s1.Name != "Packer Hall" {
		t.Errorf("Name = %v, want Packer Hall", s1.Name)
	}
	if s1.Radius == nil || *s1.Radius != 30 {
		t.Errorf("Radius = %v, want 30", s1.Radius)
	}
	if s1.SystemID == nil || *s1.SystemID != 7 {
		t.Errorf("SystemID = %v, want 7", s1.SystemID)
	}

	if want := map[string][]float64{"R1": {2.0}}; !reflect.DeepEqual(stops[1].RoutesAndPositions, want) {
		t.Errorf("S2 positions = %v, want %v", stops[1].RoutesAndPositions, want)
	}
}

func TestParseStops_SkipsZeroAndEmptyStopIDs(t *testing.T) {
	data := decode(t, `{
		"routes":{"R1":["h","h",[5.0,"0"],[6.0,""],[7.0,null],[8.0,"S1"]]},
		"stops":{"S1":{"id":"S1"},"0":{"id":"0"}}
	}`)

	stops := NewResponseParser().ParseStops(context.Background(), data)
	byID := map[string]map[string][]float64{}
	for _, s := range stops {
		byID[s.ID] = s.RoutesAndPositions
	}

	if got := byID["0"]; len(got) != 0 {
		t.Errorf("stop 0 should have no positions, got %v", got)
	}
	if want := map[string][]float64{"R1": {8.0}}; !reflect.DeepEqual(byID["S1"], want) {
		t.Errorf("S1 positions = %v, want %v", byID["S1"], want)
	}
}

func TestParseStops_PositionFallback(t *testing.T) {
	// The fallback is the count of pairs already accepted on the route, so the
	// skipped "0" pair and the two headers do not count.
	data := decode(t, `{
		"routes":{"R1":["h","h",[1,"0"],["x","S1"],[4,"S2"],[null,"S3"],["2.5","S4"],"junk",[9]]},
		"stops":{"S1":{},"S2":{},"S3":{},"S4":{}}
	}`)

	stops := NewResponseParser().ParseStops(context.Background(), data)
	got := map[string][]float64{}
	for _, s := range stops {
		got[s.ID] = s.RoutesAndPositions["R1"]
	}

	want := map[string][]float64{
		"S1": {0},
		"S2": {4},
		"S3": {2},
		"S4": {2.5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("positions = %v, want %v", got, want)
	}
}

func TestParseStops_StopWithoutRoutes(t *testing.T) {
	data := decode(t, `{"routes":{},"stops":{"S9":{"name":"Lonely"}}}`)

	stops := NewResponseParser().ParseStops(context.Background(), data)
	if len(stops) != 1 {
		t.Fatalf("expected 1 stop, got %d", len(stops))
	}
	if stops[0].ID != "S9" {
		t.Errorf("ID = %q, want map key S9", stops[0].ID)
	}
	if stops[0].RoutesAndPositions == nil {
		t.Error("RoutesAndPositions should be an empty map, not nil")
	}
	if len(stops[0].RoutesAndPositions) != 0 {
		t.Errorf("RoutesAndPositions = %v, want empty", stops[0].RoutesAndPositions)
	}
}

func TestParseStops_MultipleRoutes(t *testing.T) {
	data := decode(t, `{
		"routes":{
			"A":["h","h",[1,"S1"],[2,"S2"]],
			"B":["h","h",[1,"S2"],[2,123]]
		},
		"stops":{"key1":{"id":"S2"},"123":{"id":123}}
	}`)

	stops := NewResponseParser().ParseStops(context.Background(), data)
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}

	// ordered by map key: "123" before "key1"
	if stops[0].ID != "123" {
		t.Errorf("stops[0].ID = %q, want 123", stops[0].ID)
	}
	if want := map[string][]float64{"B": {2}}; !reflect.DeepEqual(stops[0].RoutesAndPositions, want) {
		t.Errorf("stop 123 positions = %v, want %v", stops[0].RoutesAndPositions, want)
	}
	if want := map[string][]float64{"A": {2}, "B": {1}}; !reflect.DeepEqual(stops[1].RoutesAndPositions, want) {
		t.Errorf("stop S2 positions = %v, want %v", stops[1].RoutesAndPositions, want)
	}
}

func TestParseStops_BadEnvelope(t *testing.T) {
	p := NewResponseParser()
	for _, raw := range []string{`{}`, `[]`, `{"stops":[]}`, `{"routes":[],"stops":{}}`} {
		if got := p.ParseStops(context.Background(), decode(t, raw)); len(got) != 0 {
			t.Errorf("ParseStops(%s) returned %d stops, want 0", raw, len(got))
		}
	}
}

func TestParseStops_SharedIDGetsOwnPositions(t *testing.T) {
	data := decode(t, `{
		"routes":{"A":["h","h",[1,"S1"],[4,"S1"]]},
		"stops":{"k1":{"id":"S1","name":"North"},"k2":{"id":"S1","name":"South"}}
	}`)

	stops := NewResponseParser().ParseStops(context.Background(), data)
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}

	stops[0].RoutesAndPositions["A"][0] = 99
	stops[0].RoutesAndPositions["B"] = []float64{1}

	if want := map[string][]float64{"A": {1, 4}}; !reflect.DeepEqual(stops[1].RoutesAndPositions, want) {
		t.Errorf("second record changed with the first: %v, want %v", stops[1].RoutesAndPositions, want)
	}
}

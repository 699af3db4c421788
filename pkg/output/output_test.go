package output

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"passiogo/pkg/types"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{" XML ", FormatXML, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWrite_JSON(t *testing.T) {
	systems := []types.TransportationSystem{{ID: 1068, Name: strPtr("Lehigh University")}}

	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, "systems", "system", systems); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(decoded) != 1 || decoded[0]["name"] != "Lehigh University" {
		t.Errorf("unexpected output %v", decoded)
	}
}

func TestWrite_NonFiniteFloats(t *testing.T) {
	vehicles := []types.Vehicle{{ID: "4521", Speed: f64Ptr(math.NaN()), PaxLoad: f64Ptr(math.Inf(-1))}}

	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, `"speed": null`},
		{FormatXML, "<id>4521</id>"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, tt.format, "vehicles", "vehicle", vehicles); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %s:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestWrite_XML(t *testing.T) {
	systems := []types.TransportationSystem{
		{ID: 1068, Name: strPtr("Lehigh University")},
		{ID: 1069, Name: strPtr("R&D Campus")},
	}

	var buf bytes.Buffer
	if err := Write(&buf, FormatXML, "systems", "system", systems); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	xml := buf.String()
	for _, want := range []string{"<systems>", "</systems>", "<system>", "<id>1068</id>", "<name>Lehigh University</name>", "R&amp;D Campus"} {
		if !strings.Contains(xml, want) {
			t.Errorf("XML missing %q:\n%s", want, xml)
		}
	}
	if strings.Count(xml, "<system>") != 2 {
		t.Errorf("expected one <system> per record:\n%s", xml)
	}
}

func TestWrite_XMLNumericKeys(t *testing.T) {
	stops := []types.Stop{{
		ID:                 "101",
		RoutesAndPositions: map[string][]float64{"7": {1, 3}},
	}}

	var buf bytes.Buffer
	if err := Write(&buf, FormatXML, "stops", "stop", stops); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	xml := buf.String()
	if strings.Contains(xml, "<7>") {
		t.Errorf("numeric keys must not become element names:\n%s", xml)
	}
	if !strings.Contains(xml, "<_7>1</_7>") || !strings.Contains(xml, "<_7>3</_7>") {
		t.Errorf("expected prefixed route element per position:\n%s", xml)
	}
}

func TestWrite_XMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXML, "alerts", "alert", []types.SystemAlert{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "alerts") {
		t.Errorf("expected root element, got %q", buf.String())
	}
}

func TestXMLName(t *testing.T) {
	tests := map[string]string{
		"name": "name",
		"_x":   "_x",
		"7":    "_7",
		"":     "_",
	}
	for in, want := range tests {
		if got := xmlName(in); got != want {
			t.Errorf("xmlName(%q) = %q, want %q", in, got, want)
		}
	}
}

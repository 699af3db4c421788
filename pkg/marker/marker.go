// Package marker renders small SVG map markers for vehicles, returned as
// data URIs so they can travel inside a JSON log line.
package marker

import (
	"encoding/base64"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
)

const (
	outOfServiceColor = "#6c757d"
	unknownCourseDot  = `<circle cx="24" cy="24" r="4" fill="white"/>`
)

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{6}|[0-9a-fA-F]{3})$`)

// Generator creates vehicle markers.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// VehicleMarker draws a round marker in the route colour with the route
// label underneath and a heading arrow rotated to course (degrees clockwise
// from north). A nil course draws a dot instead of an arrow. Out-of-service
// vehicles are grey.
func (g *Generator) VehicleMarker(label, color string, course *float64, outOfService bool) string {
	fill := RouteColor(label, color)
	if outOfService {
		fill = outOfServiceColor
	}

	heading := unknownCourseDot
	if course != nil && !math.IsNaN(*course) && !math.IsInf(*course, 0) {
		deg := math.Mod(*course, 360)
		if deg < 0 {
			deg += 360
		}
		heading = fmt.Sprintf(`<polygon points="24,8 31,26 24,21 17,26" fill="white" transform="rotate(%.1f 24 24)"/>`, deg)
	}

	svg := fmt.Sprintf(`<svg width="48" height="64" xmlns="http://www.w3.org/2000/svg">
  <circle cx="24" cy="24" r="20" fill="%s" stroke="white" stroke-width="3"/>
  %s
  <rect x="2" y="48" width="44" height="14" fill="white" stroke="%s" stroke-width="1" rx="3"/>
  <text x="24" y="58" font-family="Arial, sans-serif" font-size="9" font-weight="bold" fill="#333" text-anchor="middle">%s</text>
</svg>`, fill, heading, fill, html.EscapeString(shortLabel(label)))

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// RouteColor normalises a PassioGo colour ("ff0000", "#FF0000", "f00") to "#rrggbb"
// form. Missing or malformed colours get a stable colour derived from label.
func RouteColor(label, color string) string {
	color = strings.TrimSpace(color)
	if m := hexColor.FindStringSubmatch(color); m != nil {
		hex := strings.ToLower(m[1])
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		return "#" + hex
	}

	hash := 0
	for _, char := range label {
		hash = int(char) + ((hash << 5) - hash)
	}
	hue := (hash%360 + 360) % 360
	return fmt.Sprintf("hsl(%d, 70%%, 45%%)", hue)
}

// shortLabel keeps labels readable inside the 44px badge.
func shortLabel(label string) string {
	label = strings.TrimSpace(label)
	runes := []rune(label)
	if len(runes) <= 8 {
		return label
	}
	return string(runes[:7]) + "…"
}

// Package export renders the numeric result series of a saved run as an
// SVG line plot, for sharing outside the terminal.
package export

import (
	"fmt"
	"strings"
)

// SeriesToSVG plots values against their insertion index. keys, when
// non-empty, must be the same length as values and are rendered as axis
// labels for the first and last points. Returns "" for fewer than two
// points, which cannot form a line.
func SeriesToSVG(keys []string, values []float64, width, height int) string {
	if len(values) < 2 {
		return ""
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	rangeV := maxV - minV
	if rangeV == 0 {
		rangeV = 1
	}
	// Pad so extremes do not sit on the border.
	minV -= rangeV * 0.1
	rangeV *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="#00ff00" stroke-width="1.5" d="M`,
		width, height, width, height))

	stepX := float64(width) / float64(len(values)-1)
	for i, v := range values {
		x := float64(i) * stepX
		y := float64(height) - (v-minV)/rangeV*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")

	if len(keys) == len(values) {
		sb.WriteString(fmt.Sprintf(`<text x="4" y="%d" fill="#888888" font-family="monospace" font-size="11">%s</text>
`, height-6, escape(keys[0])))
		last := escape(keys[len(keys)-1])
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" fill="#888888" font-family="monospace" font-size="11" text-anchor="end">%s</text>
`, width-4, height-6, last))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

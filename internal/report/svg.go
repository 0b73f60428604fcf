package report

import (
	"fmt"
	"strings"

	"github.com/ashureev/neuroscanx/internal/domain"
)

// RadarSVG draws the radar chart for r as a standalone SVG document.
func RadarSVG(r domain.HealthRadar) string {
	g := RadarGeometry(r)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g" overflow="visible">`,
		g.Size, g.Size, g.Size, g.Size)
	b.WriteString(`<g fill="none" stroke="#cbd5e1" stroke-width="1">`)
	for _, ring := range g.Grid {
		fmt.Fprintf(&b, `<polygon points="%s"/>`, points(ring[:]))
	}
	for _, p := range g.Spokes {
		fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s"/>`, num(g.Center.X), num(g.Center.Y), num(p.X), num(p.Y))
	}
	b.WriteString(`</g>`)
	fmt.Fprintf(&b, `<polygon points="%s" fill="rgba(14, 165, 233, 0.4)" stroke="#38bdf8" stroke-width="2"/>`, points(g.Points[:]))
	for i, p := range g.Points {
		fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="4" fill="#0ea5e9"><title>%s: %s</title></circle>`,
			num(p.X), num(p.Y), g.Axes[i].Label, num(g.Scores[i]))
	}
	for _, l := range g.Labels {
		fmt.Fprintf(&b, `<text x="%s" y="%s" text-anchor="middle" font-size="10" font-weight="bold" fill="#64748b">%s</text>`,
			num(l.X), num(l.Y), strings.ToUpper(l.Text))
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func points(ps []Point) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = num(p.X) + "," + num(p.Y)
	}
	return strings.Join(parts, " ")
}

// num formats a coordinate with at most two decimals.
func num(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// Package report renders analysis results: radar geometry and SVG, triage
// badge, the tabbed report view and the clinical PDF.
package report

import (
	"math"

	"github.com/ashureev/neuroscanx/internal/domain"
)

// Chart dimensions.
const (
	ChartSize   = 220.0
	ChartCenter = ChartSize / 2
	ChartRadius = 80.0
	LabelScale  = 125.0
)

// GridLevels are the score rings drawn behind the data polygon.
var GridLevels = []float64{25, 50, 75, 100}

// Axis is one radar dimension.
type Axis struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Axes are in fixed order; index determines the angle.
var Axes = [5]Axis{
	{Key: "hydration", Label: "Hydration"},
	{Key: "fatigue", Label: "Fatigue"},
	{Key: "stress", Label: "Stress"},
	{Key: "inflammation", Label: "Inflamm."},
	{Key: "severity", Label: "Severity"},
}

// Point is a chart coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Label is an axis label placed outside the outer ring.
type Label struct {
	Point
	Text string `json:"text"`
}

// Radar is the full chart geometry for one HealthRadar.
type Radar struct {
	Size   float64    `json:"size"`
	Center Point      `json:"center"`
	Scores [5]float64 `json:"scores"`
	Points [5]Point   `json:"points"`
	Grid   [][5]Point `json:"grid"`
	Spokes [5]Point   `json:"spokes"`
	Labels [5]Label   `json:"labels"`
	Axes   [5]Axis    `json:"axes"`
}

// AxisPoint places value on axis index. Axis 0 points straight up and axes
// proceed clockwise.
func AxisPoint(value float64, index int) Point {
	angle := 2*math.Pi*float64(index)/float64(len(Axes)) - math.Pi/2
	r := value / 100 * ChartRadius
	return Point{
		X: ChartCenter + r*math.Cos(angle),
		Y: ChartCenter + r*math.Sin(angle),
	}
}

// Ring returns the polygon for one score level across all axes.
func Ring(value float64) [5]Point {
	var ring [5]Point
	for i := range Axes {
		ring[i] = AxisPoint(value, i)
	}
	return ring
}

// RadarGeometry computes the chart for r. It depends only on the scores.
func RadarGeometry(r domain.HealthRadar) Radar {
	scores := r.Values()
	g := Radar{
		Size:   ChartSize,
		Center: Point{X: ChartCenter, Y: ChartCenter},
		Scores: scores,
		Axes:   Axes,
		Grid:   make([][5]Point, 0, len(GridLevels)),
	}
	for i, v := range scores {
		g.Points[i] = AxisPoint(v, i)
	}
	for _, level := range GridLevels {
		g.Grid = append(g.Grid, Ring(level))
	}
	g.Spokes = Ring(100)
	for i, a := range Axes {
		g.Labels[i] = Label{Point: AxisPoint(LabelScale, i), Text: a.Label}
	}
	return g
}

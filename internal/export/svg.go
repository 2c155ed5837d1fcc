package export

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/san-kum/posesim/internal/sim"
)

var ErrTooFewPoints = errors.New("export: need at least two points")

type Point struct {
	X, Y float64
}

// Projection picks the two position axes drawn in the SVG.
type Projection int

const (
	TopDown Projection = iota // x right, y up
	Side                      // x right, z up
)

func ParseProjection(s string) (Projection, error) {
	switch s {
	case "top", "":
		return TopDown, nil
	case "side":
		return Side, nil
	}
	return 0, fmt.Errorf("export: unknown projection %q (want top or side)", s)
}

// Points projects frame positions onto a plane.
func Points(frames []sim.Frame, proj Projection) []Point {
	pts := make([]Point, 0, len(frames))
	for _, f := range frames {
		pt := Point{X: float64(f.Pose.X), Y: float64(f.Pose.Y)}
		if proj == Side {
			pt.Y = float64(f.Pose.Z)
		}
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
			continue
		}
		pts = append(pts, pt)
	}
	return pts
}

// TrajectoryToSVG draws the path with a green start and red end marker.
// Axes share one scale so circles stay round.
func TrajectoryToSVG(w io.Writer, points []Point, width, height int, strokeColor string) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	const pad = 0.1
	scale := math.Max(maxX-minX, maxY-minY) * (1 + 2*pad)
	if scale == 0 {
		scale = 1
	}
	size := float64(min(width, height))
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	project := func(p Point) (float64, float64) {
		x := float64(width)/2 + (p.X-cx)/scale*size
		y := float64(height)/2 - (p.Y-cy)/scale*size
		return x, y
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, html.EscapeString(strokeColor)))

	for i, p := range points {
		x, y := project(p)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")

	sx, sy := project(points[0])
	ex, ey := project(points[len(points)-1])
	sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="#00ff88"/>
<circle cx="%.1f" cy="%.1f" r="4" fill="#ff4444"/>
</svg>
`, sx, sy, ex, ey))

	_, err := io.WriteString(w, sb.String())
	return err
}

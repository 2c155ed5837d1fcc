package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800 // Empty braille char
		}
	}
	return c
}

// Set sets a pixel at (x, y) where x,y are in "sub-pixel" coordinates.
// The canvas size in sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	// Early bounds check for negative coordinates
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	subX := x % 2
	subY := y % 4

	c.Grid[row][col] |= rune(pixelMap[subY][subX])
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Plane plots a top-down (x, y) trail on a Canvas, rescaling so the whole
// trail stays in view with equal axis scales.
type Plane struct {
	canvas    *Canvas
	points    [][2]float64
	maxPoints int
}

func NewPlane(w, h, maxPoints int) *Plane {
	return &Plane{
		canvas:    NewCanvas(w, h),
		points:    make([][2]float64, 0, maxPoints),
		maxPoints: maxPoints,
	}
}

func (p *Plane) Add(x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return
	}
	if len(p.points) == p.maxPoints {
		copy(p.points, p.points[1:])
		p.points = p.points[:len(p.points)-1]
	}
	p.points = append(p.points, [2]float64{x, y})
}

func (p *Plane) Len() int { return len(p.points) }

func (p *Plane) Reset() {
	p.points = p.points[:0]
	p.canvas.Clear()
}

// bounds returns the center and the world units per sub-pixel.
func (p *Plane) bounds() (cx, cy, scale float64) {
	minX, maxX := p.points[0][0], p.points[0][0]
	minY, maxY := p.points[0][1], p.points[0][1]
	for _, pt := range p.points[1:] {
		minX, maxX = math.Min(minX, pt[0]), math.Max(maxX, pt[0])
		minY, maxY = math.Min(minY, pt[1]), math.Max(maxY, pt[1])
	}

	cw, ch := float64(p.canvas.Width*2-1), float64(p.canvas.Height*4-1)
	scale = math.Max((maxX-minX)/cw, (maxY-minY)/ch)
	if scale == 0 {
		scale = 1
	}
	return (minX + maxX) / 2, (minY + maxY) / 2, scale
}

// project maps a world point to sub-pixels. +y points up on screen.
func (p *Plane) project(x, y, cx, cy, scale float64) (int, int) {
	cw, ch := p.canvas.Width*2, p.canvas.Height*4
	px := cw/2 + int(math.Round((x-cx)/scale))
	py := ch/2 - int(math.Round((y-cy)/scale))
	return px, py
}

// Render draws the trail and a short heading tick at the last point.
func (p *Plane) Render(heading float64) string {
	p.canvas.Clear()
	if len(p.points) == 0 {
		return p.canvas.String()
	}

	cx, cy, scale := p.bounds()
	x0, y0 := p.project(p.points[0][0], p.points[0][1], cx, cy, scale)
	for _, pt := range p.points[1:] {
		x1, y1 := p.project(pt[0], pt[1], cx, cy, scale)
		p.canvas.DrawLine(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
	p.canvas.Set(x0, y0)

	const tick = 3
	hx := x0 + int(math.Round(tick*math.Cos(heading)))
	hy := y0 - int(math.Round(tick*math.Sin(heading)))
	p.canvas.DrawLine(x0, y0, hx, hy)

	return p.canvas.String()
}

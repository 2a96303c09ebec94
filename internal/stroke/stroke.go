package stroke

import (
	"fmt"
	"math"
	"strings"
)

// arcSamples is the number of points taken on an erase stroke's edge when
// looking for an earlier erase region it overlaps.
const arcSamples = 10

// Point is a location in canvas pixel space.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Stroke is a single filled circular brush daub.
type Stroke struct {
	Center Point
	Radius float64
}

// Contains reports whether p lies inside the stroke or on its edge.
func (s Stroke) Contains(p Point) bool {
	dx := p.X - s.Center.X
	dy := p.Y - s.Center.Y
	return dx*dx+dy*dy <= s.Radius*s.Radius
}

// ArcPoints returns n points evenly spaced on the stroke's circumference,
// starting at angle zero.
func (s Stroke) ArcPoints(n int) []Point {
	if n <= 0 {
		return nil
	}
	pts := make([]Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{
			X: s.Center.X + s.Radius*math.Cos(a),
			Y: s.Center.Y + s.Radius*math.Sin(a),
		}
	}
	return pts
}

func (s Stroke) String() string {
	return fmt.Sprintf("(%g,%g) r=%g", s.Center.X, s.Center.Y, s.Radius)
}

// Mode selects whether a brush daub adds to or erases from a layer.
type Mode int

const (
	ModeDraw Mode = iota
	ModeErase
)

func (m Mode) String() string {
	switch m {
	case ModeDraw:
		return "draw"
	case ModeErase:
		return "erase"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts "draw" or "erase" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draw", "paint", "d":
		return ModeDraw, nil
	case "erase", "e":
		return ModeErase, nil
	}
	return ModeDraw, fmt.Errorf("unknown brush mode %q", s)
}

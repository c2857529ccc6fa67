// Package landmark holds face landmark types and the client for the external
// landmark detection service.
package landmark

// Point is a landmark position in normalized [0,1] image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Set is the landmark list of a single detected face, indexed by the mesh
// topology of the detection model.
type Set []Point

// Mean averages the points at the given indices. It reports false when any
// index is outside the set.
func (s Set) Mean(indices []int) (Point, bool) {
	if len(indices) == 0 {
		return Point{}, false
	}
	var sum Point
	for _, idx := range indices {
		if idx < 0 || idx >= len(s) {
			return Point{}, false
		}
		sum.X += s[idx].X
		sum.Y += s[idx].Y
	}
	n := float64(len(indices))
	return Point{X: sum.X / n, Y: sum.Y / n}, true
}

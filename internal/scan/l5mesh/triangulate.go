package l5mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan"
)

// Triangulate emits two triangles per quad of the vertex grid. For every
// row i in [0, rows-1) and column j in [0, cols-1), with P = vg.At:
//
//	(P(i,j), P(i+1,j), P(i,j+1))
//	(P(i+1,j), P(i+1,j+1), P(i,j+1))
//
// Order is row-major. Nothing is deduplicated, so the quads touching the
// cap produce collapsed triangles.
func Triangulate(vg *scan.VertexGrid) *scan.Mesh {
	rows, cols := vg.Dims()
	tris := make([]r3.Triangle, 0, 2*(rows-1)*(cols-1))
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols-1; j++ {
			p0 := vg.At(i, j)
			p1 := vg.At(i+1, j)
			p2 := vg.At(i, j+1)
			p3 := vg.At(i+1, j+1)
			tris = append(tris,
				r3.Triangle{p0, p1, p2},
				r3.Triangle{p1, p3, p2},
			)
		}
	}
	monitoring.Logf("[l5mesh] %d triangles from %dx%d vertices", len(tris), rows, cols)
	return &scan.Mesh{Triangles: tris}
}

// Stats summarises a mesh.
type Stats struct {
	Triangles  int    `json:"triangles"`
	Degenerate int    `json:"degenerate"`
	Bounds     r3.Box `json:"bounds"`
}

// degenerateArea is the squared cross-product norm below which a triangle
// is treated as having no area.
const degenerateArea = 1e-24

// Normal returns the unit normal of t following its winding, or the zero
// vector when t has no area.
func Normal(t r3.Triangle) r3.Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	if r3.Norm2(n) <= degenerateArea {
		return r3.Vec{}
	}
	return r3.Unit(n)
}

// Degenerate reports whether t has (numerically) zero area.
func Degenerate(t r3.Triangle) bool {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	return r3.Norm2(n) <= degenerateArea
}

// Summarize computes Stats for m. An empty mesh has zero bounds.
func Summarize(m *scan.Mesh) Stats {
	s := Stats{Triangles: m.Len()}
	if s.Triangles == 0 {
		return s
	}
	inf := math.Inf(1)
	lo := r3.Vec{X: inf, Y: inf, Z: inf}
	hi := r3.Vec{X: -inf, Y: -inf, Z: -inf}
	for _, t := range m.Triangles {
		if Degenerate(t) {
			s.Degenerate++
		}
		for _, p := range t {
			lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
			hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		}
	}
	s.Bounds = r3.Box{Min: lo, Max: hi}
	return s
}

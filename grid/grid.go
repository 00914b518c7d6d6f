// Package grid owns the displacement, velocity and scratch Laplacian
// fields of a damped 2D wave simulation (spec §4.1). It is the direct
// analogue, in this domain, of the teacher's DG2D solution-state
// structures: a dense row-major field with accessors for shape and time,
// mutated only by the stencil kernels.
package grid

import "gonum.org/v1/gonum/mat"

// Defaults for the two implementation-private constants. Not persisted
// (spec §3); a caller may override them after Load.
const (
	DefaultDt = 0.01
	DefaultC2 = 1.0
)

// Grid is the record described in spec §3: dimensionality N is fixed at 2
// by construction (the codec enforces this at load time), extents
// Rows x Cols, damping Gamma, current simulated time Time, the
// displacement/velocity fields U and V, and scratch Laplacian L.
type Grid struct {
	Rows, Cols int
	Gamma      float64
	Time       float64

	U *mat.Dense
	V *mat.Dense
	L *mat.Dense

	Dt float64
	C2 float64
}

// New allocates a Grid of the given shape with all fields zeroed and the
// default dt/c² constants. rows and cols must each be >= 3 (spec §3); New
// does not validate this itself, callers that accept external dimensions
// (the codec) must check and return DomainTooSmall.
func New(rows, cols int, gamma float64) *Grid {
	return &Grid{
		Rows:  rows,
		Cols:  cols,
		Gamma: gamma,
		U:     mat.NewDense(rows, cols, nil),
		V:     mat.NewDense(rows, cols, nil),
		L:     mat.NewDense(rows, cols, nil),
		Dt:    DefaultDt,
		C2:    DefaultC2,
	}
}

// InteriorCells returns (rows-2)*(cols-2), the denominator of E_stop.
func (g *Grid) InteriorCells() int {
	return (g.Rows - 2) * (g.Cols - 2)
}

// Clone makes a deep copy, used by tests that run an engine and the
// single-threaded reference side by side from the same starting state.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Rows: g.Rows, Cols: g.Cols, Gamma: g.Gamma, Time: g.Time,
		Dt: g.Dt, C2: g.C2,
		U: mat.NewDense(g.Rows, g.Cols, nil),
		V: mat.NewDense(g.Rows, g.Cols, nil),
		L: mat.NewDense(g.Rows, g.Cols, nil),
	}
	out.U.Copy(g.U)
	out.V.Copy(g.V)
	out.L.Copy(g.L)
	return out
}

// Equal reports whether two grids hold identical state, used by the P3
// round-trip test and the engine-vs-reference test. Comparison is
// bitwise on the float64 fields (mat.Dense.Equal uses ==).
func (g *Grid) Equal(o *Grid) bool {
	if g.Rows != o.Rows || g.Cols != o.Cols {
		return false
	}
	if g.Gamma != o.Gamma || g.Time != o.Time {
		return false
	}
	return mat.Equal(g.U, o.U) && mat.Equal(g.V, o.V)
}

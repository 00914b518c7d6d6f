// Package stencil holds the pure compute kernels of spec §4.3: the
// Laplacian, velocity and displacement updates, and the energy
// functional. Kernels never allocate and never perform I/O (spec §5);
// each operates over a half-open row band [i0, i1) of a *grid.Grid.
//
// The style here (plain nested loops over RawRowView slices, no matrix
// algebra library calls inside the hot loop) follows the same shape as
// ExaScience-pargo's HeatDistributionStep reference stencil and the
// teacher's own RHS flux loops in model_problems/Euler2D/euler.go: index
// math against raw float64 slices, not generic matrix operators, because
// this is the part of the program that runs billions of times.
package stencil

import "github.com/hpcwave/wavesolve/grid"

// Laplacian writes g.L over row band [i0, i1) and columns [1, cols-1).
// L[i,j] = 0.5*(U[i-1,j]+U[i+1,j]+U[i,j-1]+U[i,j+1]) - 2*U[i,j].
//
// The 0.5 factor (not the textbook 0.25) is load-bearing for on-disk
// compatibility (spec §4.3, §9) and must never be "corrected".
func Laplacian(g *grid.Grid, i0, i1 int) {
	cols := g.Cols
	for i := i0; i < i1; i++ {
		up := g.U.RawRowView(i - 1)
		row := g.U.RawRowView(i)
		down := g.U.RawRowView(i + 1)
		out := g.L.RawRowView(i)
		for j := 1; j < cols-1; j++ {
			out[j] = 0.5*(up[j]+down[j]+row[j-1]+row[j+1]) - 2*row[j]
		}
	}
}

// Velocity writes g.V over row band [i0, i1): V[i,j] += dt*(c2*L[i,j] - gamma*V[i,j]).
func Velocity(g *grid.Grid, i0, i1 int) {
	cols := g.Cols
	dt, c2, gamma := g.Dt, g.C2, g.Gamma
	for i := i0; i < i1; i++ {
		lap := g.L.RawRowView(i)
		v := g.V.RawRowView(i)
		for j := 1; j < cols-1; j++ {
			v[j] += dt * (c2*lap[j] - gamma*v[j])
		}
	}
}

// Displacement writes g.U over row band [i0, i1): U[i,j] += dt*V[i,j].
func Displacement(g *grid.Grid, i0, i1 int) {
	cols := g.Cols
	dt := g.Dt
	for i := i0; i < i1; i++ {
		u := g.U.RawRowView(i)
		v := g.V.RawRowView(i)
		for j := 1; j < cols-1; j++ {
			u[j] += dt * v[j]
		}
	}
}

// Step applies the fixed order Laplacian -> Velocity -> Displacement over
// the whole interior of g. It is the single-threaded reference
// implementation; the shared-memory and distributed engines apply the
// same three calls per band/rank instead of calling Step directly.
func Step(g *grid.Grid) {
	Laplacian(g, 1, g.Rows-1)
	Velocity(g, 1, g.Rows-1)
	Displacement(g, 1, g.Rows-1)
	g.Time += g.Dt
}

// Energy computes the functional of spec §4.3 over the whole grid:
// kinetic term on the strict interior plus the two gradient terms on the
// interior edges.
func Energy(g *grid.Grid) float64 {
	return EnergyBand(g, 1, g.Rows-1)
}

// EnergyBand computes the partial energy contribution of rows [i0, i1)
// intersected with the strict interior and interior-edge ranges used by
// spec §4.3's three sums. Summing EnergyBand over a row partition that
// covers [1, rows-1) exactly once reproduces Energy, modulo floating
// point summation order (spec §4.4(b), §9) -- the row-gradient term for
// row i needs U[i+1,*], so a band that stops at rows-2 or earlier reads
// one row past its own last row. The row-gradient sum never goes past row
// rows-3 of g, so on a distributed rank's local grid (whose last row is
// its bottom halo) the pair between the last real row and the halo is not
// included; the distributed engine adds those boundary pairs itself.
func EnergyBand(g *grid.Grid, i0, i1 int) float64 {
	cols := g.Cols
	var e float64

	for i := i0; i < i1; i++ {
		v := g.V.RawRowView(i)
		for j := 1; j < cols-1; j++ {
			e += 0.5 * v[j] * v[j]
		}
	}

	rowGradLimit := min(i1, g.Rows-2)
	for i := i0; i < rowGradLimit; i++ {
		row := g.U.RawRowView(i)
		next := g.U.RawRowView(i + 1)
		for j := 1; j < cols-1; j++ {
			d := row[j] - next[j]
			e += 0.25 * d * d
		}
	}

	colGradLimit := min(i1, g.Rows-1)
	for i := i0; i < colGradLimit; i++ {
		row := g.U.RawRowView(i)
		for j := 1; j < cols-2; j++ {
			d := row[j] - row[j+1]
			e += 0.25 * d * d
		}
	}

	return e
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

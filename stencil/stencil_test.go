package stencil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpcwave/wavesolve/grid"
)

// TestScenario2SingleImpulse reproduces spec §8 scenario 2 literally: a
// 5x5 grid, a single interior impulse U[2,2]=1, gamma=0.1, one step.
func TestScenario2SingleImpulse(t *testing.T) {
	g := grid.New(5, 5, 0.1)
	g.U.Set(2, 2, 1)

	Step(g)

	assert.InDelta(t, -2.0, g.L.At(2, 2), 1e-12)
	assert.InDelta(t, -0.02, g.V.At(2, 2), 1e-12)
	assert.InDelta(t, 0.9998, g.U.At(2, 2), 1e-12)

	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Cols; j++ {
			if i == 0 || j == 0 || i == g.Rows-1 || j == g.Cols-1 {
				assert.Zero(t, g.U.At(i, j), "border cell (%d,%d) must stay zero", i, j)
				assert.Zero(t, g.V.At(i, j), "border cell (%d,%d) must stay zero", i, j)
			}
		}
	}
}

func TestLaplacianNeighborSum(t *testing.T) {
	g := grid.New(5, 5, 0)
	g.U.Set(2, 1, 1)
	g.U.Set(2, 3, 1)
	g.U.Set(1, 2, 1)
	g.U.Set(3, 2, 1)
	g.U.Set(2, 2, 0.5)

	Laplacian(g, 1, g.Rows-1)

	assert.InDelta(t, 0.5*(1+1+1+1)-2*0.5, g.L.At(2, 2), 1e-12)
}

func TestVelocityAppliesDamping(t *testing.T) {
	g := grid.New(5, 5, 0.5)
	g.L.Set(2, 2, 4)
	g.V.Set(2, 2, 1)

	Velocity(g, 1, g.Rows-1)

	want := 1 + g.Dt*(g.C2*4-0.5*1)
	assert.InDelta(t, want, g.V.At(2, 2), 1e-12)
}

func TestDisplacementIntegratesVelocity(t *testing.T) {
	g := grid.New(5, 5, 0)
	g.U.Set(2, 2, 1)
	g.V.Set(2, 2, 2)

	Displacement(g, 1, g.Rows-1)

	assert.InDelta(t, 1+g.Dt*2, g.U.At(2, 2), 1e-12)
}

func TestEnergyBandSumsMatchEnergy(t *testing.T) {
	g := grid.New(7, 6, 0.2)
	g.U.Set(3, 3, 1)
	g.U.Set(2, 3, 0.5)
	g.V.Set(3, 2, 1.5)

	want := Energy(g)

	got := EnergyBand(g, 1, 4) + EnergyBand(g, 4, g.Rows-1)
	assert.InDelta(t, want, got, 1e-12)
}

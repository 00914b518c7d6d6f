package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpcwave/wavesolve/grid"
	"github.com/hpcwave/wavesolve/stencil"
)

func TestStepMatchesSingleThreadedReference(t *testing.T) {
	gPar := grid.New(9, 9, 0.1)
	gPar.U.Set(4, 4, 1)
	gRef := gPar.Clone()

	e := New(gPar, 3)
	e.Start()
	defer e.Stop()

	for i := 0; i < 5; i++ {
		e.Step()
		stencil.Step(gRef)
	}

	assert.True(t, gPar.Equal(gRef), "banded worker pool must match the single-threaded reference exactly")
	assert.Equal(t, gRef.Time, gPar.Time)
}

func TestEnergyMatchesSingleThreaded(t *testing.T) {
	g := grid.New(9, 9, 0.2)
	g.V.Set(4, 4, 2)
	g.V.Set(3, 4, 1)

	e := New(g, 4)
	got := e.Energy()
	want := stencil.Energy(g)
	assert.InDelta(t, want, got, 1e-12)
}

func TestCapsWorkersToInteriorRows(t *testing.T) {
	g := grid.New(5, 5, 0.1) // 3 interior rows
	e := New(g, 100)
	assert.Equal(t, 3, e.nWorkers)
}

func TestStopIsIdempotentAfterStart(t *testing.T) {
	g := grid.New(5, 5, 0.1)
	e := New(g, 2)
	e.Start()
	e.Step()
	e.Stop()
	e.Stop() // must not hang or panic
}

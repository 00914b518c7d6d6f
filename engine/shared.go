// Package engine is the shared-memory parallel engine of spec §4.4: it
// partitions interior rows into T contiguous bands, launches T long-lived
// workers, and drives the three-phase (Laplacian -> Velocity ->
// Displacement) barrier protocol per time step.
//
// The long-lived-workers-plus-barrier design directly follows
// original_source/wavesolve_thread.cpp's ThreadPool (std::barrier of
// n+1, three labelled phases, a running flag to flush workers out on
// shutdown); the per-partition goroutine shape is the one the teacher
// itself uses for its Runge-Kutta stage loop
// (model_problems/Euler2D/euler.go's wg.Add/go func/wg.Wait pattern), but
// here the workers are spawned once and rendezvous on a shared Barrier
// instead of being spawned fresh every phase, per spec §4.4's explicit
// long-lived-worker requirement.
package engine

import (
	"github.com/hpcwave/wavesolve/internal/barrier"
	"github.com/hpcwave/wavesolve/internal/partition"

	"github.com/hpcwave/wavesolve/grid"
	"github.com/hpcwave/wavesolve/statefile"
	"github.com/hpcwave/wavesolve/stencil"

	pargo "github.com/exascience/pargo/parallel"
)

// Engine runs one *grid.Grid through repeated three-phase steps using a
// fixed pool of worker goroutines, one per row band.
type Engine struct {
	g        *grid.Grid
	bands    []partition.Band
	nWorkers int

	bar     *barrier.Barrier
	running bool
	started bool
}

// New partitions g's interior rows into nWorkers contiguous bands (the
// first interior_rows mod nWorkers bands receive one extra row, spec
// §4.4) and prepares the worker pool. Call Start before the first Step.
func New(g *grid.Grid, nWorkers int) *Engine {
	if nWorkers < 1 {
		nWorkers = 1
	}
	interiorRows := g.Rows - 2
	if nWorkers > interiorRows && interiorRows > 0 {
		nWorkers = interiorRows
	}
	return &Engine{
		g:        g,
		bands:    partition.Split(1, interiorRows, nWorkers),
		nWorkers: nWorkers,
		bar:      barrier.New(nWorkers + 1), // +1 for the driver itself
	}
}

// Start spawns the long-lived worker goroutines. Calls after the first
// are no-ops.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.running = true
	for w := 0; w < e.nWorkers; w++ {
		band := e.bands[w]
		go e.workerLoop(band)
	}
}

func (e *Engine) workerLoop(band partition.Band) {
	for {
		// Phase L
		e.bar.Wait()
		if band.Len() > 0 {
			stencil.Laplacian(e.g, band.First, band.Last)
		}
		e.bar.Wait()
		if !e.running {
			return
		}

		// Phase V
		e.bar.Wait()
		if band.Len() > 0 {
			stencil.Velocity(e.g, band.First, band.Last)
		}
		e.bar.Wait()
		if !e.running {
			return
		}

		// Phase U
		e.bar.Wait()
		if band.Len() > 0 {
			stencil.Displacement(e.g, band.First, band.Last)
		}
		e.bar.Wait()
		if !e.running {
			return
		}
	}
}

// Step drives one three-phase time step across the worker pool and
// advances g.Time by g.Dt. The driver arrives at the same barrier points
// as the workers, which is equivalent by construction to a barrier of
// party T (spec §4.4).
func (e *Engine) Step() {
	e.bar.Wait() // release Phase L
	e.bar.Wait() // Phase L complete

	e.bar.Wait() // release Phase V
	e.bar.Wait() // Phase V complete

	e.bar.Wait() // release Phase U
	e.bar.Wait() // Phase U complete

	e.g.Time += e.g.Dt
}

// Stop signals the workers to exit and flushes them through the single
// phase-pair of barrier rendezvous points each worker still performs
// before its first post-running check (workerLoop returns the first time
// it observes !e.running, which is after phase L's completion wait).
func (e *Engine) Stop() {
	if !e.started || !e.running {
		return
	}
	e.running = false
	e.bar.Wait() // release Phase L
	e.bar.Wait() // Phase L complete; workers observe !e.running and return
}

// Time returns the grid's current simulated time.
func (e *Engine) Time() float64 { return e.g.Time }

// WriteState writes the engine's grid to path via the atomic
// write-temp-then-rename protocol (spec §4.2).
func (e *Engine) WriteState(path string) error {
	return statefile.Save(e.g, path)
}

// Energy computes the energy functional in parallel, reducing a partial
// sum per band on pargo's associative reducer (spec §4.4(b)) -- an
// independent, associative-only computation, distinct from Step's
// barrier-synchronized bands.
func (e *Engine) Energy() float64 {
	if e.g.Rows-2 <= 0 {
		return 0
	}
	return pargo.RangeReduceFloat64(1, e.g.Rows-1, 0,
		func(low, high int) float64 {
			return stencil.EnergyBand(e.g, low, high)
		},
		func(a, b float64) float64 { return a + b },
	)
}

package distributed

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hpcwave/wavesolve/grid"
	"github.com/hpcwave/wavesolve/statefile"
	"github.com/hpcwave/wavesolve/stencil"
)

func writeInput(t *testing.T, rows, cols int, gamma float64) string {
	t.Helper()
	g := grid.New(rows, cols, gamma)
	g.U.Set(rows/2, cols/2, 1)
	path := filepath.Join(t.TempDir(), "in.wo")
	require.NoError(t, statefile.Save(g, path))
	return path
}

func TestDistributedStepMatchesSingleThreadedReference(t *testing.T) {
	path := writeInput(t, 9, 9, 0.1)

	ref, err := statefile.Load(path)
	require.NoError(t, err)

	eng, err := New(path, 3)
	require.NoError(t, err)
	eng.Start()
	defer eng.Stop()

	for i := 0; i < 5; i++ {
		eng.Step()
		stencil.Step(ref)
	}

	out := filepath.Join(t.TempDir(), "out.wo")
	require.NoError(t, eng.WriteState(out))

	got, err := statefile.Load(out)
	require.NoError(t, err)
	// Compare fields only: the distributed engine's on-disk t is remaining
	// simulated time (spec §4.5), a different quantity from the
	// single-threaded reference's elapsed t, so Time is excluded here.
	assert.True(t, mat.Equal(got.U, ref.U), "U must match the single-threaded reference exactly")
	assert.True(t, mat.Equal(got.V, ref.V), "V must match the single-threaded reference exactly")
}

func TestDistributedEnergyMatchesSingleThreaded(t *testing.T) {
	path := writeInput(t, 9, 9, 0.2)
	ref, err := statefile.Load(path)
	require.NoError(t, err)

	eng, err := New(path, 3)
	require.NoError(t, err)
	eng.Start()
	defer eng.Stop()

	assert.InDelta(t, stencil.Energy(ref), eng.Energy(), 1e-9)
}

func TestDistributedSingleRank(t *testing.T) {
	path := writeInput(t, 5, 5, 0.1)
	eng, err := New(path, 1)
	require.NoError(t, err)
	eng.Start()
	defer eng.Stop()

	eng.Step()
	assert.Greater(t, eng.InteriorCells(), 0)
}

func TestDistributedCapsRanksToRows(t *testing.T) {
	path := writeInput(t, 4, 4, 0.1)
	eng, err := New(path, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(eng.ranks), 4)
}

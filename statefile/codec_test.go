package statefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcwave/wavesolve"
	"github.com/hpcwave/wavesolve/grid"
)

func TestRoundTrip(t *testing.T) {
	g := grid.New(5, 5, 0.1)
	g.Time = 1.25
	g.U.Set(2, 2, 1)
	g.V.Set(2, 3, -0.5)

	dir := t.TempDir()
	path := filepath.Join(dir, "state.wo")
	require.NoError(t, Save(g, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.True(t, g.Equal(got), "round trip must be byte-for-byte (P3)")
}

func TestFileLength(t *testing.T) {
	g := grid.New(25, 50, 0.01)
	dir := t.TempDir()
	path := filepath.Join(dir, "state.wo")
	require.NoError(t, Save(g, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 24+8*2+16*25*50, info.Size(), "P6")
}

func TestTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.wo")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var werr *wavesolve.Error
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, wavesolve.Truncated, werr.Kind)
}

func TestUnsupportedDim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baddim.wo")

	buf := make([]byte, 24)
	buf[0] = 3 // N = 3
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var werr *wavesolve.Error
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, wavesolve.UnsupportedDim, werr.Kind)
}

func TestDomainTooSmall(t *testing.T) {
	g := grid.New(2, 2, 0)
	// grid.New does not itself reject small domains (only the codec path
	// that comes from external input does); simulate a 2x2 header by hand.
	dir := t.TempDir()
	path := filepath.Join(dir, "small.wo")
	require.NoError(t, writeFile(g, path))

	_, err := Load(path)
	require.Error(t, err)
	var werr *wavesolve.Error
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, wavesolve.DomainTooSmall, werr.Kind)
}

func TestBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.wo"))
	require.Error(t, err)
	var werr *wavesolve.Error
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, wavesolve.BadFile, werr.Kind)
}

func TestAtomicWriteSurvivesRenameFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wo")
	g := grid.New(5, 5, 0.1)
	require.NoError(t, Save(g, path))

	// Simulate scenario 6: make the target an empty directory so the first
	// rename fails. Save's retry path removes the existing target and
	// retries once, and that second rename succeeds.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	g2 := grid.New(5, 5, 0.1)
	g2.Time = 3
	require.NoError(t, Save(g2, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Time)
}

// Package statefile reads and writes the binary *.wo state format of
// spec §6 and performs the atomic rename-after-temp write protocol (spec
// §4.2). This is the Go analogue of WaveOrthotope's constructor/write
// methods in original_source/WaveOrthotope.hpp, translated to Go's
// encoding/binary instead of raw ifstream/ofstream reads.
package statefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/hpcwave/wavesolve"
	"github.com/hpcwave/wavesolve/grid"
)

// this core requires N = 2 (spec §3, §6); the header (N, m[0], m[1],
// gamma, t) is 24 + 8*N = 40 bytes, and the code reads it as a fixed
// 24-byte (N, m[0], m[1]) block plus a 16-byte (gamma, t) block only
// because N == 2 is assumed.
const dimensions = 2

// byteLength computes the required file length for an m0 x m1 grid,
// 24 + 8*N + 16*m0*m1 (spec §6, §8 P6).
func byteLength(rows, cols int) int64 {
	cells := int64(rows) * int64(cols)
	return 24 + 8*dimensions + 16*cells
}

// Load reads path and populates a *grid.Grid. Errors are wrapped in
// *wavesolve.Error with the Kind spec §7 requires: BadFile if the file
// cannot be opened, UnsupportedDim if N != 2, Truncated if the file length
// is not the one its header declares (shorter or longer), DomainTooSmall
// if the interior is empty.
func Load(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wavesolve.NewError(wavesolve.BadFile, "statefile.Load", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, wavesolve.NewError(wavesolve.BadFile, "statefile.Load", err)
	}
	if info.Size() < 24 {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.Load",
			fmt.Errorf("file length %d shorter than fixed header", info.Size()))
	}

	var header [24]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.Load", err)
	}

	n := binary.LittleEndian.Uint64(header[0:8])
	if n != dimensions {
		return nil, wavesolve.NewError(wavesolve.UnsupportedDim, "statefile.Load",
			fmt.Errorf("N = %d, only 2 is supported", n))
	}

	// header[8:16] and header[16:24] are m[0], m[1] only when N==2, which
	// we've just verified; read the rest of the extents + scalar fields.
	rows := int(binary.LittleEndian.Uint64(header[8:16]))
	cols := int(binary.LittleEndian.Uint64(header[16:24]))

	var rest [16]byte // gamma, t
	if _, err := io.ReadFull(f, rest[:]); err != nil {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.Load", err)
	}
	gamma := asFloat64(rest[0:8])
	t := asFloat64(rest[8:16])

	if rows < 3 || cols < 3 {
		return nil, wavesolve.NewError(wavesolve.DomainTooSmall, "statefile.Load",
			fmt.Errorf("rows=%d cols=%d, need >= 3 in each dimension", rows, cols))
	}

	if info.Size() != byteLength(rows, cols) {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.Load",
			fmt.Errorf("file length %d, want %d for %dx%d grid", info.Size(), byteLength(rows, cols), rows, cols))
	}

	g := grid.New(rows, cols, gamma)
	g.Time = t

	cells := rows * cols
	buf := make([]byte, 8*cells)

	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.Load", err)
	}
	fillRowMajor(g.U, rows, cols, buf)

	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.Load", err)
	}
	fillRowMajor(g.V, rows, cols, buf)

	return g, nil
}

// Header is the fixed-size prefix of a *.wo file, used by the distributed
// engine (spec §4.5) to size its collective positional I/O without
// reading the whole field.
type Header struct {
	Rows, Cols int
	Gamma      float64
	Time       float64
}

// FieldOffset returns the byte offset of the U field (field == 0) or the V
// field (field == 1) for a grid of the given shape, i.e. header +
// field_offset of spec §4.5.
func FieldOffset(rows, cols, field int) int64 {
	base := int64(24 + 8*dimensions)
	if field == 0 {
		return base
	}
	return base + 8*int64(rows)*int64(cols)
}

// ReadHeader reads just the fixed header of path, used by each rank of
// the distributed engine to learn the grid shape before computing its own
// row range (spec §4.5).
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, wavesolve.NewError(wavesolve.BadFile, "statefile.ReadHeader", err)
	}
	defer f.Close()

	var header [24]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return Header{}, wavesolve.NewError(wavesolve.Truncated, "statefile.ReadHeader", err)
	}
	n := binary.LittleEndian.Uint64(header[0:8])
	if n != dimensions {
		return Header{}, wavesolve.NewError(wavesolve.UnsupportedDim, "statefile.ReadHeader",
			fmt.Errorf("N = %d, only 2 is supported", n))
	}
	rows := int(binary.LittleEndian.Uint64(header[8:16]))
	cols := int(binary.LittleEndian.Uint64(header[16:24]))

	var rest [16]byte
	if _, err := io.ReadFull(f, rest[:]); err != nil {
		return Header{}, wavesolve.NewError(wavesolve.Truncated, "statefile.ReadHeader", err)
	}
	if rows < 3 || cols < 3 {
		return Header{}, wavesolve.NewError(wavesolve.DomainTooSmall, "statefile.ReadHeader",
			fmt.Errorf("rows=%d cols=%d, need >= 3 in each dimension", rows, cols))
	}
	return Header{Rows: rows, Cols: cols, Gamma: asFloat64(rest[0:8]), Time: asFloat64(rest[8:16])}, nil
}

// OpenPositional opens path for per-rank ReadAt calls.
func OpenPositional(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wavesolve.NewError(wavesolve.BadFile, "statefile.OpenPositional", err)
	}
	return f, nil
}

// CreatePositional creates (or truncates) path to the correct full length
// for (rows, cols), writes the header, and returns it open for per-rank
// WriteAt calls. Concurrent WriteAt calls at disjoint offsets on the same
// *os.File are safe (pwrite), which is what lets every rank of the
// distributed engine write its own real rows without a central
// coordinator (spec §4.5).
func CreatePositional(path string, rows, cols int, gamma, t float64) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.CreatePositional", err)
	}
	if err := f.Truncate(byteLength(rows, cols)); err != nil {
		f.Close()
		return nil, wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.CreatePositional", err)
	}

	var header [24]byte
	binary.LittleEndian.PutUint64(header[0:8], dimensions)
	binary.LittleEndian.PutUint64(header[8:16], uint64(rows))
	binary.LittleEndian.PutUint64(header[16:24], uint64(cols))
	if _, err := f.WriteAt(header[:], 0); err != nil {
		f.Close()
		return nil, wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.CreatePositional", err)
	}
	var rest [16]byte
	putFloat64(rest[0:8], gamma)
	putFloat64(rest[8:16], t)
	if _, err := f.WriteAt(rest[:], 24); err != nil {
		f.Close()
		return nil, wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.CreatePositional", err)
	}
	return f, nil
}

// WriteTimeAt updates only the t field of an already-sized positional
// file.
func WriteTimeAt(f *os.File, t float64) error {
	var b [8]byte
	putFloat64(b[:], t)
	_, err := f.WriteAt(b[:], 16+8*dimensions)
	return err
}

// ReadRowsAt reads `count` rows of `field` (0 = U, 1 = V) starting at
// global row `rowFirst` for a grid of shape (rows, cols) and returns them
// as a new row-major slice of count*cols values.
func ReadRowsAt(f *os.File, rows, cols, field, rowFirst, count int) ([]float64, error) {
	if count == 0 {
		return nil, nil
	}
	buf := make([]byte, 8*cols*count)
	off := FieldOffset(rows, cols, field) + 8*int64(rowFirst)*int64(cols)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, wavesolve.NewError(wavesolve.Truncated, "statefile.ReadRowsAt", err)
	}
	out := make([]float64, cols*count)
	for i := range out {
		out[i] = asFloat64(buf[8*i : 8*i+8])
	}
	return out, nil
}

// WriteRowsAt writes `data` (count*cols row-major values) of `field` (0 =
// U, 1 = V) starting at global row rowFirst, for a grid of shape (rows,
// cols).
func WriteRowsAt(f *os.File, rows, cols, field, rowFirst, count int, data []float64) error {
	if count == 0 {
		return nil
	}
	buf := make([]byte, 8*cols*count)
	for i, v := range data {
		putFloat64(buf[8*i:8*i+8], v)
	}
	off := FieldOffset(rows, cols, field) + 8*int64(rowFirst)*int64(cols)
	if _, err := f.WriteAt(buf, off); err != nil {
		return wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.WriteRowsAt", err)
	}
	return nil
}

// Save performs the atomic write protocol of spec §4.2: write to
// "<path>.tmp", then rename over path. If the rename fails, it removes
// any existing path and retries the rename once before surfacing
// CheckpointFailed.
func Save(g *grid.Grid, path string) error {
	tmp := path + ".tmp"
	if err := writeFile(g, tmp); err != nil {
		return wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.Save", err)
	}

	if err := renameOver(tmp, path); err != nil {
		_ = os.Remove(path)
		if err := os.Rename(tmp, path); err != nil {
			return wavesolve.NewError(wavesolve.CheckpointFailed, "statefile.Save", err)
		}
	}
	return nil
}

func renameOver(tmp, path string) error {
	return os.Rename(tmp, path)
}

func writeFile(g *grid.Grid, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	var header [24]byte
	binary.LittleEndian.PutUint64(header[0:8], dimensions)
	binary.LittleEndian.PutUint64(header[8:16], uint64(g.Rows))
	binary.LittleEndian.PutUint64(header[16:24], uint64(g.Cols))
	if _, err = f.Write(header[:]); err != nil {
		return err
	}

	var rest [16]byte
	putFloat64(rest[0:8], g.Gamma)
	putFloat64(rest[8:16], g.Time)
	if _, err = f.Write(rest[:]); err != nil {
		return err
	}

	if err = writeRowMajor(f, g.U, g.Rows, g.Cols); err != nil {
		return err
	}
	if err = writeRowMajor(f, g.V, g.Rows, g.Cols); err != nil {
		return err
	}

	// fsync is recommended, not required, by spec §4.2; best effort only.
	_ = f.Sync()
	return nil
}

func asFloat64(b []byte) float64 {
	bits := binary.LittleEndian.Uint64(b)
	return math.Float64frombits(bits)
}

func putFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func fillRowMajor(m *mat.Dense, rows, cols int, buf []byte) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			off := 8 * (i*cols + j)
			m.Set(i, j, asFloat64(buf[off:off+8]))
		}
	}
}

func writeRowMajor(w io.Writer, m *mat.Dense, rows, cols int) error {
	buf := make([]byte, 8*cols)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := 0; j < cols; j++ {
			putFloat64(buf[8*j:8*j+8], row[j])
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

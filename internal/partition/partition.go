// Package partition splits a contiguous index range into nearly-equal
// bands, the same bucketing scheme the teacher uses to shard elements
// across goroutines (utils.PartitionMap in the source repo), generalized
// here to interior grid rows.
package partition

// Band is a half-open contiguous range [First, Last) of interior rows.
type Band struct {
	First, Last int
}

// Len reports the number of rows in the band.
func (b Band) Len() int { return b.Last - b.First }

// Split divides the n interior rows starting at rowOffset into count
// contiguous bands as evenly as possible. The first n%count bands receive
// one extra row, matching the remainder-distribution rule of spec.md §4.4
// and §4.5 (lowest-ranked/first buckets absorb the remainder).
//
// count must be >= 1. If count > n, trailing bands are empty (Len() == 0);
// callers must skip empty bands rather than treat them as an error.
func Split(rowOffset, n, count int) []Band {
	bands := make([]Band, count)
	base := n / count
	extra := n % count
	row := rowOffset
	for i := 0; i < count; i++ {
		length := base
		if i < extra {
			length++
		}
		bands[i] = Band{First: row, Last: row + length}
		row += length
	}
	return bands
}

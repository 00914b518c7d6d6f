package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEven(t *testing.T) {
	bands := Split(1, 8, 4)
	assert.Len(t, bands, 4)
	for _, b := range bands {
		assert.Equal(t, 2, b.Len())
	}
	assert.Equal(t, Band{1, 3}, bands[0])
	assert.Equal(t, Band{7, 9}, bands[3])
}

func TestSplitRemainder(t *testing.T) {
	// 10 interior rows over 3 workers: first 10%3=1 band gets an extra row.
	bands := Split(1, 10, 3)
	assert.Len(t, bands, 3)
	assert.Equal(t, 4, bands[0].Len())
	assert.Equal(t, 3, bands[1].Len())
	assert.Equal(t, 3, bands[2].Len())

	total := 0
	for _, b := range bands {
		total += b.Len()
	}
	assert.Equal(t, 10, total)
}

func TestSplitMoreWorkersThanRows(t *testing.T) {
	bands := Split(1, 2, 5)
	assert.Len(t, bands, 5)
	nonEmpty := 0
	for _, b := range bands {
		if b.Len() > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, 2, nonEmpty)
}

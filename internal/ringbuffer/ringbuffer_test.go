package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAndLatest(t *testing.T) {
	b := New(8)
	b.Append([]float32{1, 2, 3, 4})

	assert.Equal(t, []float32{1, 2, 3, 4}, b.Latest(4))
	assert.True(t, b.HasAtLeast(4))
	assert.False(t, b.HasAtLeast(5))
}

func TestLatestZeroPadsWhenUnderfilled(t *testing.T) {
	b := New(8)
	b.Append([]float32{1, 2, 3})

	got := b.Latest(5)
	assert.Equal(t, []float32{0, 0, 1, 2, 3}, got)
}

func TestLatestWrapsAround(t *testing.T) {
	b := New(4)
	b.Append([]float32{1, 2, 3, 4})
	b.Append([]float32{5, 6})

	// capacity 4, wrote 1..6, so the last 4 samples are 3,4,5,6
	assert.Equal(t, []float32{3, 4, 5, 6}, b.Latest(4))
	assert.Equal(t, []float32{5, 6}, b.Latest(2))
}

func TestClearResetsState(t *testing.T) {
	b := New(4)
	b.Append([]float32{1, 2, 3, 4})
	b.Clear()

	assert.False(t, b.HasAtLeast(1))
	assert.Equal(t, []float32{0, 0}, b.Latest(2))
	assert.Equal(t, 0, b.Filled())
}

// TestRingBufferInvariant is testable property 4 from spec §8.
func TestRingBufferInvariant(t *testing.T) {
	b := New(16)
	for k := 1; k <= 16; k++ {
		b.Clear()
		samples := make([]float32, k)
		for i := range samples {
			samples[i] = float32(i + 1)
		}
		b.Append(samples)

		assert.Equal(t, samples, b.Latest(k))
		assert.True(t, b.HasAtLeast(k))
		assert.False(t, b.HasAtLeast(k+1))
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	b := New(4)
	b.Append([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.Equal(t, 4, b.Filled())
	assert.Equal(t, 4, b.Capacity())
}

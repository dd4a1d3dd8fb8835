package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellpulse/internal/dataprocessing"
)

func tableWithValue(v float64) *dataprocessing.Table {
	return &dataprocessing.Table{Columns: []dataprocessing.Column{
		dataprocessing.NewNumericColumn("V", []float64{v}, nil),
	}}
}

func TestMemoryTierEvictsOldestInserted(t *testing.T) {
	tier := newMemoryTier(5)

	for i := 0; i < 5; i++ {
		_, evicted := tier.put(fmt.Sprintf("k%d", i), tableWithValue(float64(i)))
		assert.False(t, evicted)
	}

	// Reading the oldest entry must not refresh its position
	_, ok := tier.get("k0")
	require.True(t, ok)

	evictedKey, evicted := tier.put("k5", tableWithValue(5))
	assert.True(t, evicted)
	assert.Equal(t, "k0", evictedKey)

	_, ok = tier.get("k0")
	assert.False(t, ok)
	_, ok = tier.get("k5")
	assert.True(t, ok)
	assert.Equal(t, 5, tier.len())
}

func TestMemoryTierUpdateKeepsInsertionSlot(t *testing.T) {
	tier := newMemoryTier(2)

	tier.put("a", tableWithValue(1))
	tier.put("b", tableWithValue(2))

	// Re-putting "a" replaces the value but keeps its original slot,
	// so it is still the next eviction victim.
	_, evicted := tier.put("a", tableWithValue(10))
	assert.False(t, evicted)

	evictedKey, evicted := tier.put("c", tableWithValue(3))
	assert.True(t, evicted)
	assert.Equal(t, "a", evictedKey)

	got, ok := tier.get("b")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Columns[0].Floats[0])
}

func TestMemoryTierRemove(t *testing.T) {
	tier := newMemoryTier(3)
	tier.put("a", tableWithValue(1))
	tier.put("b", tableWithValue(2))

	tier.remove("a")
	_, ok := tier.get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, tier.len())

	// Removing an absent key is a no-op
	tier.remove("missing")
	assert.Equal(t, 1, tier.len())
}

func TestMemoryTierZeroCapacityStoresNothing(t *testing.T) {
	tier := newMemoryTier(0)

	_, evicted := tier.put("a", tableWithValue(1))
	assert.False(t, evicted)
	_, ok := tier.get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, tier.len())
}

func TestMemoryTierClear(t *testing.T) {
	tier := newMemoryTier(3)
	tier.put("a", tableWithValue(1))
	tier.put("b", tableWithValue(2))

	tier.clear()
	assert.Equal(t, 0, tier.len())

	// The tier stays usable after a clear
	tier.put("c", tableWithValue(3))
	assert.Equal(t, 1, tier.len())
}

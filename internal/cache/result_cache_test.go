package cache

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lblanes25/smartlookup/internal/types"
)

func TestGet_MissThenHit(t *testing.T) {
	c := New(10, zerolog.Nop())
	key := PairKey("a.csv", "ID", "Name", types.String("x"))

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Misses())

	c.Put(key, types.String("result"))
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "result", v.Str())
	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, int64(1), c.Misses())
}

func TestPut_NullIsConfirmedAbsence(t *testing.T) {
	c := New(10, zerolog.Nop())
	key := PairKey("a.csv", "ID", "Name", types.String("ghost"))

	c.Put(key, types.Null())

	v, ok := c.Get(key)
	require.True(t, ok, "a cached null is 'checked, absent', not a miss")
	assert.True(t, v.IsNull())
	assert.Equal(t, int64(1), c.Hits())
}

func TestPrune_DropsOldestTenPercent(t *testing.T) {
	c := New(100, zerolog.Nop())
	keys := make([]Key, 0, 101)
	for i := 0; i < 100; i++ {
		k := PairKey("f.csv", "ID", "Name", types.Int(int64(i)))
		keys = append(keys, k)
		c.Put(k, types.Int(int64(i)))
	}
	require.Equal(t, 100, c.Len())

	// The insert that would exceed the bound prunes the oldest 10% first.
	overflow := PairKey("f.csv", "ID", "Name", types.Int(1000))
	c.Put(overflow, types.Int(1000))

	assert.Equal(t, 91, c.Len())
	for i := 0; i < 10; i++ {
		_, ok := c.Peek(keys[i])
		assert.False(t, ok, "entry %d should be pruned", i)
	}
	for i := 10; i < 100; i++ {
		_, ok := c.Peek(keys[i])
		assert.True(t, ok, "entry %d should survive", i)
	}
	_, ok := c.Peek(overflow)
	assert.True(t, ok, "the triggering insert must be retrievable")
}

func TestSmartKey_NeverCollidesWithPairKey(t *testing.T) {
	v := types.String("E001")
	smart := SmartKey("Department", v)
	pair := PairKey("", "Department", "Department", v)
	assert.NotEqual(t, smart, pair)
}

func TestPurgeFile(t *testing.T) {
	c := New(10, zerolog.Nop())
	kept := PairKey("b.csv", "ID", "Name", types.String("x"))
	purged := PairKey("a.csv", "ID", "Name", types.String("x"))
	smart := SmartKey("Name", types.String("x"))

	c.Put(kept, types.Int(1))
	c.Put(purged, types.Int(2))
	c.Put(smart, types.Int(3))

	c.PurgeFile("a.csv")

	_, ok := c.Peek(purged)
	assert.False(t, ok)
	_, ok = c.Peek(kept)
	assert.True(t, ok)
	_, ok = c.Peek(smart)
	assert.False(t, ok, "smart entries do not name their file and must be dropped")
}

func TestClear_ResetsStatistics(t *testing.T) {
	c := New(10, zerolog.Nop())
	k := PairKey("a.csv", "ID", "Name", types.String("x"))
	c.Put(k, types.Int(1))
	c.Get(k)
	c.Get(SmartKey("Name", types.String("y")))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Hits())
	assert.Equal(t, int64(0), c.Misses())
	assert.Equal(t, 0.0, c.HitRate())
}

func TestHitRate(t *testing.T) {
	c := New(10, zerolog.Nop())
	k := PairKey("a.csv", "ID", "Name", types.String("x"))
	c.Put(k, types.Int(1))
	c.Get(k)
	c.Get(PairKey("a.csv", "ID", "Name", types.String("other")))

	assert.InDelta(t, 0.5, c.HitRate(), 1e-9)
}

func TestPrune_WithStaleOrderEntries(t *testing.T) {
	// PurgeFile leaves no stale slots behind, but re-putting a key must
	// not double it in the order queue either.
	c := New(4, zerolog.Nop())
	for i := 0; i < 4; i++ {
		c.Put(PairKey("f.csv", "ID", "Name", types.Int(int64(i))), types.Int(int64(i)))
	}
	// Overwrite an existing key, then overflow.
	c.Put(PairKey("f.csv", "ID", "Name", types.Int(0)), types.Int(99))
	c.Put(PairKey("f.csv", "ID", "Name", types.Int(100)), types.Int(100))

	assert.LessOrEqual(t, c.Len(), 4)
	v, ok := c.Peek(PairKey("f.csv", "ID", "Name", types.Int(100)))
	require.True(t, ok)
	assert.Equal(t, int64(100), v.IntVal())
}

func BenchmarkPut(b *testing.B) {
	c := New(10000, zerolog.Nop())
	keys := make([]Key, 1000)
	for i := range keys {
		keys[i] = PairKey("f.csv", "ID", "Name", types.String(fmt.Sprintf("v%d", i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(keys[i%len(keys)], types.Int(int64(i)))
	}
}

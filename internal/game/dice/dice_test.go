package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/loot/internal/game/dice"
)

// fixedSource returns queued values modulo n; used to pin draws.
type fixedSource struct {
	vals []int
	i    int
}

func (f *fixedSource) Intn(n int) int {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v % n
}

func TestRange_Validate(t *testing.T) {
	assert.NoError(t, dice.Range{Min: 1, Max: 6}.Validate())
	assert.NoError(t, dice.Range{Min: 3, Max: 3}.Validate())
	assert.Error(t, dice.Range{Min: 4, Max: 2}.Validate())
}

func TestRange_String(t *testing.T) {
	assert.Equal(t, "1..6", dice.Range{Min: 1, Max: 6}.String())
}

func TestBetween_DegenerateRange(t *testing.T) {
	src := dice.NewSeededSource(1)
	assert.Equal(t, 5, dice.Between(src, 5, 5))
	assert.Equal(t, 5, dice.Between(src, 5, 2))
}

func TestBetween_Property_InBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.IntRange(-100, 100).Draw(rt, "lo")
		hi := rapid.IntRange(lo, lo+100).Draw(rt, "hi")
		seed := rapid.Uint64().Draw(rt, "seed")
		v := dice.Between(dice.NewSeededSource(seed), lo, hi)
		assert.GreaterOrEqual(rt, v, lo)
		assert.LessOrEqual(rt, v, hi)
	})
}

func TestWeighted_SkipsNonPositive(t *testing.T) {
	src := &fixedSource{vals: []int{0, 1, 2, 3, 4}}
	for i := 0; i < 5; i++ {
		idx, ok := dice.Weighted(src, []int{0, 5, -3})
		require.True(t, ok)
		assert.Equal(t, 1, idx)
	}
}

func TestWeighted_ZeroTotal(t *testing.T) {
	idx, ok := dice.Weighted(dice.NewSeededSource(1), []int{0, 0})
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestWeighted_BoundaryRolls(t *testing.T) {
	weights := []int{10, 90}
	idx, _ := dice.Weighted(&fixedSource{vals: []int{9}}, weights)
	assert.Equal(t, 0, idx)
	idx, _ = dice.Weighted(&fixedSource{vals: []int{10}}, weights)
	assert.Equal(t, 1, idx)
	idx, _ = dice.Weighted(&fixedSource{vals: []int{99}}, weights)
	assert.Equal(t, 1, idx)
}

func TestSeededSource_Reproducible(t *testing.T) {
	a := dice.NewSeededSource(7)
	b := dice.NewSeededSource(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}

func TestSeededSource_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewSeededSource(1).Intn(0) })
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
}

func TestRoller_LogsRolls(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(dice.NewSeededSource(3), zap.New(core))

	v := r.Roll("spawn_count", dice.Range{Min: 1, Max: 6})

	assert.GreaterOrEqual(t, v, 1)
	assert.LessOrEqual(t, v, 6)
	entries := logs.FilterMessage("loot roll").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "spawn_count", entries[0].ContextMap()["roll"])
	assert.Equal(t, int64(v), entries[0].ContextMap()["result"])
}

func TestRoller_IntnDoesNotLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(dice.NewSeededSource(3), zap.New(core))
	_ = r.Intn(10)
	assert.Zero(t, logs.Len())
}

package mempool

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(x, y int32, author, extra string) Entry {
	return Entry{X: x, Y: y, W: 10, H: 10, Color: 0xFF0000, Kind: 0, CreatedAt: 1700000000, Author: author, Extra: extra}
}

func TestPalette_Interning(t *testing.T) {
	p := NewPalette()
	assert.Equal(t, 1, p.Len())
	idx, ok := p.Index("")
	assert.True(t, ok)
	assert.Equal(t, uint16(0), idx)

	a, err := p.Intern("алиса")
	require.NoError(t, err)
	b, err := p.Intern("bob")
	require.NoError(t, err)
	again, err := p.Intern("алиса")
	require.NoError(t, err)

	assert.Equal(t, uint16(1), a)
	assert.Equal(t, uint16(2), b)
	assert.Equal(t, a, again)

	s, ok := p.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, "bob", s)
	_, ok = p.Lookup(3)
	assert.False(t, ok)

	p.Reset()
	assert.Equal(t, []string{""}, p.Entries())
}

func TestPalette_FromEntries(t *testing.T) {
	p, err := NewPaletteFromEntries([]string{"", "x", "y"})
	require.NoError(t, err)
	idx, _ := p.Index("y")
	assert.Equal(t, uint16(2), idx)

	_, err = NewPaletteFromEntries([]string{"x"})
	assert.Error(t, err)
	_, err = NewPaletteFromEntries(nil)
	assert.Error(t, err)
}

func TestPalette_Full(t *testing.T) {
	entries := make([]string, MaxPaletteEntries)
	for i := 1; i < len(entries); i++ {
		entries[i] = string(rune(0x10000 + i))
	}
	p, err := NewPaletteFromEntries(entries)
	require.NoError(t, err)
	assert.Equal(t, 65535, p.Len())
	_, err = p.Intern("ещё одна")
	assert.ErrorIs(t, err, ErrPaletteFull)

	_, err = NewPaletteFromEntries(append(entries, "лишняя"))
	assert.ErrorIs(t, err, ErrPaletteFull)
}

func TestPool_AddGetRemoveReuse(t *testing.T) {
	p := New(4)
	i0, err := p.Add(entry(0, 0, "a", ""))
	require.NoError(t, err)
	i1, err := p.Add(entry(5, 5, "b", "https://img"))
	require.NoError(t, err)
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)

	got, ok := p.Get(i1)
	require.True(t, ok)
	assert.Equal(t, entry(5, 5, "b", "https://img"), got)

	assert.True(t, p.Remove(i0))
	assert.False(t, p.Remove(i0), "повторное удаление")
	assert.False(t, p.Remove(99))
	_, ok = p.Get(i0)
	assert.False(t, ok)
	assert.Equal(t, 1, p.Live())
	assert.Equal(t, 2, p.Count())

	reused, err := p.Add(entry(7, 7, "c", ""))
	require.NoError(t, err)
	assert.Equal(t, i0, reused, "слот из списка свободных используется повторно")
	assert.Equal(t, 2, p.Count())
}

func TestPool_RejectsZeroExtent(t *testing.T) {
	p := New(4)
	e := entry(0, 0, "", "")
	e.W = 0
	_, err := p.Add(e)
	assert.ErrorIs(t, err, ErrInvalidExtent)
	assert.Equal(t, 0, p.Count())
}

func TestPool_GrowthFactor(t *testing.T) {
	p := New(4)
	for i := 0; i < 5; i++ {
		_, err := p.Add(entry(int32(i), 0, "", ""))
		require.NoError(t, err)
	}
	assert.Equal(t, 6, p.Cap(), "ёмкость растёт в 1.5 раза")
	for i := 0; i < 2; i++ {
		_, err := p.Add(entry(int32(i), 1, "", ""))
		require.NoError(t, err)
	}
	assert.Equal(t, 9, p.Cap())
	assert.Len(t, p.Entries(), 7)
}

func TestPool_CompactSingleLiveBlock(t *testing.T) {
	p := New(8)
	idx, err := p.Add(entry(0, 0, "red", ""))
	require.NoError(t, err)
	before, _ := p.Get(idx)

	remap := p.Compact()
	assert.Equal(t, 1, p.Count())
	assert.Equal(t, map[int]int{idx: 0}, remap)
	after, ok := p.Get(0)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestPool_CompactPreservesContentAndIsBijection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := New(64)
	expected := make(map[int]Entry)
	for i := 0; i < 200; i++ {
		e := Entry{
			X: int32(rng.Intn(1000) - 500), Y: int32(rng.Intn(1000) - 500),
			W: uint8(1 + rng.Intn(255)), H: uint8(1 + rng.Intn(255)),
			Color: rng.Uint32() & 0xFFFFFF, Kind: uint8(rng.Intn(3)), CreatedAt: rng.Uint32(),
			Author: []string{"ann", "боб", ""}[rng.Intn(3)], Extra: []string{"", "w1", "https://x"}[rng.Intn(3)],
		}
		idx, err := p.Add(e)
		require.NoError(t, err)
		expected[idx] = e
	}
	for idx := range expected {
		if rng.Intn(2) == 0 {
			require.True(t, p.Remove(idx))
			delete(expected, idx)
		}
	}

	remap := p.Compact()
	require.Len(t, remap, len(expected))
	assert.Equal(t, len(expected), p.Count())
	assert.Equal(t, 0, p.FreeSlots())

	targets := make(map[int]bool)
	for oldIdx, newIdx := range remap {
		_, wasLive := expected[oldIdx]
		assert.True(t, wasLive, "в отображении только живые слоты")
		assert.False(t, targets[newIdx], "новые индексы не повторяются")
		targets[newIdx] = true
		assert.Less(t, newIdx, p.Count())

		got, ok := p.Get(newIdx)
		require.True(t, ok)
		assert.Equal(t, expected[oldIdx], got)
	}
}

func TestPool_CompactShrinkHysteresis(t *testing.T) {
	p := New(100)
	idxs := make([]int, 100)
	for i := range idxs {
		idxs[i], _ = p.Add(entry(int32(i), 0, "", ""))
	}

	// 50% живых - ёмкость сохраняется
	for i := 0; i < 50; i++ {
		p.Remove(idxs[i])
	}
	p.Compact()
	assert.Equal(t, 100, p.Cap())
	assert.Equal(t, 50, p.Count())

	// 30% живых - ёмкость уменьшается вдвое
	for i := 0; i < 20; i++ {
		p.Remove(i)
	}
	p.Compact()
	assert.Equal(t, 50, p.Cap())
	assert.Equal(t, 30, p.Count())

	first, _ := p.Get(0)
	assert.Equal(t, int32(70), first.X, "порядок выживших сохраняется")
}

func TestPool_Clear(t *testing.T) {
	p := New(4)
	idx, _ := p.Add(entry(0, 0, "a", "b"))
	p.Remove(idx)
	p.Add(entry(1, 1, "c", "d"))
	p.Clear()

	assert.Equal(t, 0, p.Count())
	assert.Equal(t, 0, p.FreeSlots())
	assert.Equal(t, 1, p.Authors().Len())
	assert.Equal(t, 1, p.Extras().Len())
	assert.Empty(t, p.Entries())
}

func TestFromColumns(t *testing.T) {
	src := New(4)
	a, _ := src.Add(entry(1, 2, "ann", "x"))
	src.Add(entry(3, 4, "bob", ""))
	src.Remove(a)

	p, err := FromColumns(src.Columns(), src.Authors(), src.Extras(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count())
	assert.Equal(t, 1, p.Live())
	assert.Equal(t, 1, p.FreeSlots(), "надгробие восстанавливается в список свободных")
	assert.Equal(t, src.Entries(), p.Entries())

	cols := src.Columns()
	cols.AuthorID = []uint16{0, 42}
	_, err = FromColumns(cols, src.Authors(), src.Extras(), 0)
	assert.Error(t, err)

	cols = src.Columns()
	cols.Kind = cols.Kind[:1]
	_, err = FromColumns(cols, nil, nil, 0)
	assert.Error(t, err)
}

package world

import (
	"math/rand"
	"testing"

	"github.com/annel0/pixel-canvas/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlock(id string, x, y, w, h int) Block {
	return Block{ID: id, X: x, Y: y, W: w, H: h, Color: RGB(255, 0, 0), Kind: KindBasic, Author: "tester", CreatedAt: 1700000000}
}

func ids(blocks []Block) []string {
	result := make([]string, len(blocks))
	for i, b := range blocks {
		result[i] = b.ID
	}
	return result
}

func TestSpatialStore_ChunkKey(t *testing.T) {
	s := NewSpatialStore(16)
	assert.Equal(t, vec.Vec2{X: 0, Y: 0}, s.ChunkKey(0, 15.9))
	assert.Equal(t, vec.Vec2{X: -1, Y: 1}, s.ChunkKey(-0.5, 16))
}

func TestSpatialStore_AddEdgeDoesNotSpillIntoNextChunk(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 16, 16))
	assert.Equal(t, []vec.Vec2{{X: 0, Y: 0}}, s.ChunksOf("a"), "блок ровно по границе чанка занимает один чанк")

	s.Add(testBlock("b", 10, -4, 20, 8))
	assert.Equal(t, []vec.Vec2{{X: 0, Y: -1}, {X: 0, Y: 0}, {X: 1, Y: -1}, {X: 1, Y: 0}}, s.ChunksOf("b"))
	assert.Equal(t, 4, s.ChunkCount())
}

func TestSpatialStore_RemoveByIDTwice(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 40, 40))
	require.Equal(t, 9, s.ChunkCount())

	assert.True(t, s.RemoveByID("a"))
	_, ok := s.GetByID("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.ChunkCount(), "пустые чанки удаляются")

	version := s.Version()
	assert.False(t, s.RemoveByID("a"), "повторное удаление - no-op")
	assert.Equal(t, version, s.Version())
}

func TestSpatialStore_GetAtMostRecentWins(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("under", 0, 0, 10, 10))
	s.Add(testBlock("over", 5, 5, 10, 10))

	b, ok := s.GetAt(6, 6)
	require.True(t, ok)
	assert.Equal(t, "over", b.ID)

	b, ok = s.GetAt(1, 1)
	require.True(t, ok)
	assert.Equal(t, "under", b.ID)

	_, ok = s.GetAt(10, 1)
	assert.False(t, ok, "правая граница блока не входит")

	s.RemoveByID("over")
	b, ok = s.GetAt(6, 6)
	require.True(t, ok)
	assert.Equal(t, "under", b.ID)
}

func TestSpatialStore_HugeRectScansBlocks(t *testing.T) {
	s := NewSpatialStore(8)
	s.Add(testBlock("a", 0, 0, 2, 2))
	s.Add(testBlock("b", 1_000_000, -1_000_000, 3, 3))
	s.Add(testBlock("c", -50, -50, 1, 1))

	huge := vec.Rect{MinX: -10, MinY: -2_000_000_000, MaxX: 2_000_000_000, MaxY: 2_000_000_000}
	assert.Equal(t, []string{"a", "b"}, ids(s.QueryRect(huge)), "порядок вставки")
	assert.True(t, s.IsRegionOccupied(-1_000_000_000, -1_000_000_000, 2_000_000_000, 2_000_000_000, nil))
	assert.False(t, s.IsRegionOccupied(10, -1_000_000_000, 999_990, 2_000_000_000, nil))
}

func TestSpatialStore_QueryRectDeduplicates(t *testing.T) {
	s := NewSpatialStore(8)
	s.Add(testBlock("big", 0, 0, 100, 100))
	s.Add(testBlock("far", 500, 500, 2, 2))
	s.Add(testBlock("neg", -20, -20, 5, 5))

	found := s.QueryRect(vec.Rect{MinX: -100, MinY: -100, MaxX: 200, MaxY: 200})
	assert.ElementsMatch(t, []string{"big", "neg"}, ids(found))

	found = s.QueryRect(vec.Rect{MinX: 100, MinY: 0, MaxX: 120, MaxY: 10})
	assert.Empty(t, found, "запрос, начинающийся на правом крае блока, его не задевает")

	found = s.QueryRect(vec.Rect{MinX: 490, MinY: 490, MaxX: 500, MaxY: 500})
	assert.Equal(t, []string{"far"}, ids(found), "запрос, упирающийся в левый край, задевает блок")
}

func TestSpatialStore_IsRegionOccupied(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 10, 10))

	assert.True(t, s.IsRegionOccupied(5, 5, 10, 10, nil))
	assert.False(t, s.IsRegionOccupied(10, 0, 5, 5, nil), "соседство по ребру не пересечение")
	assert.False(t, s.IsRegionOccupied(0, 10, 5, 5, nil))
	assert.False(t, s.IsRegionOccupied(-5, -5, 5, 5, nil))
	assert.False(t, s.IsRegionOccupied(5, 5, 10, 10, map[string]struct{}{"a": {}}))
}

func TestSpatialStore_UpdateByIDKeepsIndex(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 4, 4))
	blue := RGB(0, 0, 255)
	assert.True(t, s.UpdateByID("a", Delta{Color: &blue}))
	b, _ := s.GetAt(1, 1)
	assert.Equal(t, blue, b.Color)
	assert.False(t, s.UpdateByID("missing", Delta{Color: &blue}))
}

func TestSpatialStore_AddExistingIDReplaces(t *testing.T) {
	s := NewSpatialStore(16)
	s.Add(testBlock("a", 0, 0, 4, 4))
	s.Add(testBlock("a", 100, 100, 4, 4))
	assert.Equal(t, 1, s.Len())
	_, ok := s.GetAt(1, 1)
	assert.False(t, ok)
	assert.Equal(t, []vec.Vec2{{X: 6, Y: 6}}, s.ChunksOf("a"))
}

func TestSpatialStore_IndexConsistencyRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewSpatialStore(32)
	live := make(map[string]bool)

	for i := 0; i < 2000; i++ {
		id := NewBlockID()
		if len(live) > 0 && rng.Intn(3) == 0 {
			for victim := range live {
				require.True(t, s.RemoveByID(victim))
				delete(live, victim)
				break
			}
			continue
		}
		b := testBlock(id, rng.Intn(2000)-1000, rng.Intn(2000)-1000, 1+rng.Intn(MaxExtent), 1+rng.Intn(MaxExtent))
		s.Add(b)
		live[id] = true
	}

	require.Equal(t, len(live), s.Len())
	for _, b := range s.All() {
		assert.Contains(t, ids(s.QueryRect(b.Bounds())), b.ID)
		for _, key := range s.ChunksOf(b.ID) {
			assert.True(t, s.ChunkContains(key, b.ID), "чанк %v должен содержать %s", key, b.ID)
		}
	}
}

func TestSpatialStore_AllInInsertionOrder(t *testing.T) {
	s := NewSpatialStore(16)
	for _, id := range []string{"c", "a", "b"} {
		s.Add(testBlock(id, 0, 0, 1, 1))
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids(s.All()))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.ChunkCount())
}

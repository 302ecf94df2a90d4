package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 0, FloorDiv(0, 16))
	assert.Equal(t, 0, FloorDiv(15, 16))
	assert.Equal(t, 1, FloorDiv(16, 16))
	assert.Equal(t, -1, FloorDiv(-1, 16), "отрицательные координаты уходят в предыдущий чанк")
	assert.Equal(t, -1, FloorDiv(-16, 16))
	assert.Equal(t, -2, FloorDiv(-17, 16))
}

func TestVec2_ToChunkCoords(t *testing.T) {
	assert.Equal(t, Vec2{X: -1, Y: 2}, Vec2{X: -5, Y: 40}.ToChunkCoords(16))
}

func TestVec2Float_SnapToGrid(t *testing.T) {
	assert.Equal(t, Vec2{X: 3, Y: -2}, Vec2Float{X: 3.7, Y: -1.2}.SnapToGrid(1))
	assert.Equal(t, Vec2{X: 8, Y: -8}, Vec2Float{X: 9.9, Y: -0.5}.SnapToGrid(8))
}

func TestRect(t *testing.T) {
	r := Rect{MinX: 10, MinY: 10, MaxX: 0, MaxY: 0}.Normalized()
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, r)

	assert.True(t, r.Contains(0, 0))
	assert.False(t, r.Contains(10, 5), "правая граница не входит")

	touching := RectFromBox(10, 0, 5, 5)
	assert.True(t, r.Intersects(touching), "замкнутые прямоугольники касаются")
	assert.False(t, r.Inset(0.01).Intersects(touching.Inset(0.01)))

	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 15, MaxY: 10}, r.Union(touching))
	assert.Equal(t, Vec2{X: -1, Y: 2}, Rect{MinX: -0.5, MinY: 2}.Origin())
}

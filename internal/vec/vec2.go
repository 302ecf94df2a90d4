package vec

import "math"

// Vec2 представляет целочисленные 2D координаты на сетке мира
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// ToChunkCoords преобразует мировые координаты в координаты чанка заданного размера.
// Деление с округлением вниз, поэтому -1 попадает в чанк -1, а не 0.
func (v Vec2) ToChunkCoords(chunkSize int) Vec2 {
	return Vec2{X: FloorDiv(v.X, chunkSize), Y: FloorDiv(v.Y, chunkSize)}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// FloorDiv целочисленное деление с округлением к минус бесконечности
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

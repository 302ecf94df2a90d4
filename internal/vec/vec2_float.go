package vec

import "math"

// Vec2Float представляет 2D координаты с плавающей точкой (мировые координаты ввода)
type Vec2Float struct {
	X, Y float64
}

// ToVec2 преобразует в целочисленные координаты с округлением вниз
func (v Vec2Float) ToVec2() Vec2 {
	return Vec2{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y))}
}

// FromVec2 создает Vec2Float из Vec2
func FromVec2(v Vec2) Vec2Float {
	return Vec2Float{X: float64(v.X), Y: float64(v.Y)}
}

// SnapToGrid округляет точку вниз до ближайшего узла сетки с шагом grid
func (v Vec2Float) SnapToGrid(grid int) Vec2 {
	if grid <= 1 {
		return v.ToVec2()
	}
	g := float64(grid)
	return Vec2{
		X: int(math.Floor(v.X/g)) * grid,
		Y: int(math.Floor(v.Y/g)) * grid,
	}
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2Float) Sub(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X - other.X, Y: v.Y - other.Y}
}

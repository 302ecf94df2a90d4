package vec

// Rect прямоугольник в мировых координатах. Min включительно, Max - граница.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// RectFromBox строит прямоугольник по левому верхнему углу и размерам
func RectFromBox(x, y, w, h int) Rect {
	return Rect{
		MinX: float64(x),
		MinY: float64(y),
		MaxX: float64(x + w),
		MaxY: float64(y + h),
	}
}

// Normalized возвращает прямоугольник с упорядоченными углами.
// Рамка выделения может тянуться в любую сторону от точки нажатия.
func (r Rect) Normalized() Rect {
	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}
	if r.MinY > r.MaxY {
		r.MinY, r.MaxY = r.MaxY, r.MinY
	}
	return r
}

// Inset сжимает прямоугольник на eps с каждой стороны
func (r Rect) Inset(eps float64) Rect {
	return Rect{MinX: r.MinX + eps, MinY: r.MinY + eps, MaxX: r.MaxX - eps, MaxY: r.MaxY - eps}
}

// Width ширина прямоугольника
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height высота прямоугольника
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Origin левый верхний угол в целых координатах
func (r Rect) Origin() Vec2 {
	return Vec2Float{X: r.MinX, Y: r.MinY}.ToVec2()
}

// Intersects проверяет пересечение двух замкнутых прямоугольников (касание считается)
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && r.MaxX >= o.MinX &&
		r.MinY <= o.MaxY && r.MaxY >= o.MinY
}

// Contains проверяет, лежит ли точка внутри полуоткрытого прямоугольника [Min, Max)
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// Union возвращает минимальный прямоугольник, содержащий оба
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: min(r.MinX, o.MinX),
		MinY: min(r.MinY, o.MinY),
		MaxX: max(r.MaxX, o.MaxX),
		MaxY: max(r.MaxY, o.MaxY),
	}
}

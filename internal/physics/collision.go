package physics

import (
	"math"

	"github.com/annel0/tileworld/internal/vec"
)

// Размеры аватара игрока в клетках; позиция игрока - левый верхний угол
const (
	AvatarWidth  = 0.75
	AvatarHeight = 1.75
)

// Rect прямоугольник в мировых координатах (Y вниз)
type Rect struct {
	X, Y float64
	W, H float64
}

// CellRect прямоугольник клетки мира
func CellRect(pos vec.Vec2) Rect {
	return Rect{X: float64(pos.X), Y: float64(pos.Y), W: 1, H: 1}
}

// AvatarRect прямоугольник аватара в позиции (x, y)
func AvatarRect(x, y float64) Rect {
	return Rect{X: x, Y: y, W: AvatarWidth, H: AvatarHeight}
}

// Intersects проверяет пересечение прямоугольников; касание гранями не считается
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Cells возвращает клетки, которые задевает прямоугольник
func (r Rect) Cells() []vec.Vec2 {
	minX := int(math.Floor(r.X))
	minY := int(math.Floor(r.Y))
	maxX := int(math.Ceil(r.X+r.W)) - 1
	maxY := int(math.Ceil(r.Y+r.H)) - 1

	res := make([]vec.Vec2, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			res = append(res, vec.Vec2{X: x, Y: y})
		}
	}
	return res
}

// CanMoveToPosition проверяет, может ли аватар встать в позицию.
// isSolid сообщает, является ли клетка твёрдой.
func CanMoveToPosition(x, y float64, isSolid func(vec.Vec2) bool) bool {
	for _, c := range AvatarRect(x, y).Cells() {
		if isSolid(c) {
			return false
		}
	}
	return true
}

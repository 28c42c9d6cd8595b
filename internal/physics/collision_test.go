package physics

import (
	"testing"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestRectIntersects(t *testing.T) {
	cell := CellRect(vec.Vec2{X: 5, Y: 5})
	assert.True(t, AvatarRect(4.5, 4).Intersects(cell), "аватар перекрывает клетку")
	assert.False(t, AvatarRect(6, 5).Intersects(cell), "касание гранью не пересечение")
	assert.False(t, AvatarRect(5, 6).Intersects(cell))
	assert.True(t, AvatarRect(5.1, 3.5).Intersects(cell))
}

func TestRectCells(t *testing.T) {
	cells := AvatarRect(0.5, -1.5).Cells()
	assert.ElementsMatch(t, []vec.Vec2{{X: 0, Y: -2}, {X: 1, Y: -2}, {X: 0, Y: -1}, {X: 1, Y: -1}, {X: 0, Y: 0}, {X: 1, Y: 0}}, cells)
}

func TestCanMoveToPosition(t *testing.T) {
	solid := func(p vec.Vec2) bool { return p.Y >= 10 }
	assert.True(t, CanMoveToPosition(0, 8.25, solid), "аватар стоит на поверхности")
	assert.False(t, CanMoveToPosition(0, 8.5, solid), "ноги вошли в землю")
}

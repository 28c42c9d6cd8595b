package world

import (
	"github.com/annel0/tileworld/internal/physics"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

// Viewport скользящее окно материализованных клеток вокруг игрока.
// Окно шире экрана на margin клеток, чтобы реже перестраиваться.
type Viewport struct {
	width, height int
	margin        int
	center        vec.Vec2
	built         bool

	cells  [][]*block.State // [ly][lx]
	ground []int            // высота поверхности по столбцам окна
	phys   map[vec.Vec2]*block.State
}

func newViewport(viewWidth, viewHeight, margin int) *Viewport {
	w, h := viewWidth+margin, viewHeight+margin
	v := &Viewport{
		width:  w,
		height: h,
		margin: margin,
		cells:  make([][]*block.State, h),
		ground: make([]int, w),
		phys:   make(map[vec.Vec2]*block.State),
	}
	for i := range v.cells {
		v.cells[i] = make([]*block.State, w)
	}
	return v
}

// Size размер окна в клетках (light.Field)
func (v *Viewport) Size() (int, int) {
	return v.width, v.height
}

// Center мировые координаты центра окна
func (v *Viewport) Center() vec.Vec2 {
	return v.center
}

// Origin мировые координаты клетки (0, 0)
func (v *Viewport) Origin() vec.Vec2 {
	return vec.Vec2{X: v.center.X - v.width/2, Y: v.center.Y - v.height/2}
}

// ToLocal переводит мировые координаты в локальные
func (v *Viewport) ToLocal(wx, wy int) (lx, ly int, ok bool) {
	o := v.Origin()
	lx, ly = wx-o.X, wy-o.Y
	ok = v.built && lx >= 0 && ly >= 0 && lx < v.width && ly < v.height
	return lx, ly, ok
}

// ToWorld переводит локальные координаты в мировые
func (v *Viewport) ToWorld(lx, ly int) vec.Vec2 {
	return v.Origin().Add(vec.Vec2{X: lx, Y: ly})
}

// Cell клетка окна по локальным координатам
func (v *Viewport) Cell(lx, ly int) *block.State {
	return v.cells[ly][lx]
}

// Transparent реализует light.Field
func (v *Viewport) Transparent(lx, ly int) bool {
	return v.cells[ly][lx].Transparent
}

// Emission реализует light.Field
func (v *Viewport) Emission(lx, ly int) float64 {
	return v.cells[ly][lx].Lighting
}

// WorldY реализует light.Field
func (v *Viewport) WorldY(ly int) int {
	return v.center.Y - v.height/2 + ly
}

// Ground реализует light.Field
func (v *Viewport) Ground(lx int) int {
	return v.ground[lx]
}

// set кладёт состояние в клетку и обновляет физический индекс
func (v *Viewport) set(lx, ly int, s *block.State) {
	s.Local = vec.Vec2{X: lx, Y: ly}
	v.cells[ly][lx] = s
	if s.IsPhys {
		v.phys[s.WorldPos] = s
	} else {
		delete(v.phys, s.WorldPos)
	}
}

// PhysicalIn возвращает твёрдые блоки окна, пересекающие прямоугольник
func (v *Viewport) PhysicalIn(r physics.Rect) []*block.State {
	var out []*block.State
	for _, pos := range r.Cells() {
		if s, ok := v.phys[pos]; ok && r.Intersects(physics.CellRect(pos)) {
			out = append(out, s)
		}
	}
	return out
}

// PhysicalCount размер физического индекса
func (v *Viewport) PhysicalCount() int {
	return len(v.phys)
}

// Package light рассчитывает освещённость окна мира: вертикальный поток
// небесного света до потолка столбца и точечные источники, распространяемые
// послойным обходом по 8 соседям.
package light

// Коэффициенты затухания при переходе из клетки
const (
	OpaqueAttenuation      = 0.2
	TransparentAttenuation = 0.85
	DiagonalPenalty        = 0.9
)

// Field окно клеток, для которого считается свет (локальные координаты [0,w)×[0,h))
type Field interface {
	Size() (width, height int)
	Transparent(lx, ly int) bool
	Emission(lx, ly int) float64
	// WorldY мировая Y строки ly
	WorldY(ly int) int
	// Ground высота поверхности столбца lx
	Ground(lx int) int
}

// Engine хранит потолки столбцов и сетку освещённости
type Engine struct {
	width, height int
	top, bottom   int // MaxHeight и MinHeight мира

	maxY []int
	grid [][]float64
}

// NewEngine создаёт движок для окна width × height. top и bottom - границы мира
// по Y (top численно меньше bottom).
func NewEngine(width, height, top, bottom int) *Engine {
	e := &Engine{
		width:  width,
		height: height,
		top:    top,
		bottom: bottom,
		maxY:   make([]int, width),
		grid:   make([][]float64, height),
	}
	for i := range e.grid {
		e.grid[i] = make([]float64, width)
	}
	return e
}

// Ceiling потолок столбца lx
func (e *Engine) Ceiling(lx int) int {
	return e.maxY[lx]
}

// LowerCeiling поднимает потолок до wy, если новый непрозрачный блок выше текущего
func (e *Engine) LowerCeiling(lx, wy int) {
	if wy < e.maxY[lx] {
		e.maxY[lx] = wy
	}
}

// RecalcCeiling заново ищет первую непрозрачную клетку столбца сверху вниз.
// Если её нет, потолком становится последняя просмотренная строка.
func (e *Engine) RecalcCeiling(lx int, opaque func(wy int) bool) {
	last := e.top
	for wy := e.top; wy < e.bottom; wy++ {
		last = wy
		if opaque(wy) {
			break
		}
	}
	e.maxY[lx] = last
}

// Light освещённость клетки в [0,1]
func (e *Engine) Light(lx, ly int) float64 {
	if lx < 0 || lx >= e.width || ly < 0 || ly >= e.height {
		return 0
	}
	return e.grid[ly][lx]
}

// Grid возвращает сетку освещённости [ly][lx]; не изменять
func (e *Engine) Grid() [][]float64 {
	return e.grid
}

// Calculate полностью пересчитывает сетку: небесный свет, затем источники.
func (e *Engine) Calculate(f Field) {
	for _, row := range e.grid {
		for i := range row {
			row[i] = 0
		}
	}

	var sources []Cell
	for lx := 0; lx < e.width; lx++ {
		ground := f.Ground(lx)
		ceiling := e.maxY[lx]
		for ly := 0; ly < e.height; ly++ {
			wy := f.WorldY(ly)
			if wy > ceiling {
				continue
			}
			val := 1.0
			if ceiling >= wy && wy >= ground {
				falloff := 1 - float64(abs(wy-ground))/float64(e.bottom)*1.5
				if f.Transparent(lx, ly) {
					val = max(0, f.Emission(lx, ly), falloff)
				} else {
					val = max(0, falloff)
				}
			}
			e.grid[ly][lx] = max(val, e.grid[ly][lx])
			sources = append(sources, Cell{lx, ly})
		}
	}
	e.Flood(f, sources)

	// Искусственные источники: значение только повышается
	for lx := 0; lx < e.width; lx++ {
		for ly := 0; ly < e.height; ly++ {
			em := f.Emission(lx, ly)
			if em == 0 {
				continue
			}
			e.grid[ly][lx] = max(e.grid[ly][lx], em)
			e.Flood(f, []Cell{{lx, ly}})
		}
	}
}

// Cell локальные координаты клетки окна
type Cell struct{ X, Y int }

// Flood распространяет свет от источников послойно. Клетка, получившая
// значение в одном слое, замораживается и не пересчитывается более слабыми
// слоями: это приближение кратчайшего пути затухания, а не точный расчёт.
// Затухание берётся по прозрачности родительской клетки.
func (e *Engine) Flood(f Field, sources []Cell) {
	visited := make([][]bool, e.height)
	for i := range visited {
		visited[i] = make([]bool, e.width)
	}
	for _, s := range sources {
		visited[s.Y][s.X] = true
	}

	layer := sources
	inNext := make([][]bool, e.height)
	for i := range inNext {
		inNext[i] = make([]bool, e.width)
	}
	for len(layer) > 0 {
		var next []Cell
		for _, p := range layer {
			coff := OpaqueAttenuation
			if f.Transparent(p.X, p.Y) {
				coff = TransparentAttenuation
			}
			parent := e.grid[p.Y][p.X]
			for dx := -1; dx <= 1; dx++ {
				for dy := -1; dy <= 1; dy++ {
					nx, ny := p.X+dx, p.Y+dy
					if nx < 0 || ny < 0 || nx >= e.width || ny >= e.height || visited[ny][nx] {
						continue
					}
					c := coff
					if dx != 0 && dy != 0 {
						c *= DiagonalPenalty
					}
					e.grid[ny][nx] = max(e.grid[ny][nx], parent*c)
					if !inNext[ny][nx] {
						inNext[ny][nx] = true
						next = append(next, Cell{nx, ny})
					}
				}
			}
		}
		for _, p := range next {
			visited[p.Y][p.X] = true
			inNext[p.Y][p.X] = false
		}
		layer = next
	}
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

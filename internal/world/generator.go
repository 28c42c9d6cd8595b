package world

import (
	"math"

	"github.com/annel0/tileworld/internal/noise"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

// Границы мира по Y. Ось Y направлена вниз, поэтому «максимальная высота»
// численно меньше «минимальной».
const (
	MinHeight = 128  // глубина коренной породы
	MaxHeight = -128 // небо
	MaxGround = 25   // амплитуда рельефа

	// CaveExemptDepth число верхних слоёв земли, в которых не вырезаются пещеры
	CaveExemptDepth = 3

	// treeApron запас столбцов по бокам окна: крона дерева шире ствола на 2
	treeApron = 2
)

var (
	trunkOffsets  = []vec.Vec2{{X: 0, Y: -1}, {X: 0, Y: -2}, {X: 0, Y: -3}}
	canopyOffsets = []vec.Vec2{
		{X: 0, Y: -4}, {X: 0, Y: -5}, {X: 1, Y: -4}, {X: 1, Y: -5}, {X: 2, Y: -4}, {X: 2, Y: -5},
		{X: -1, Y: -4}, {X: -1, Y: -5}, {X: -2, Y: -4}, {X: -2, Y: -5},
		{X: -1, Y: -6}, {X: 1, Y: -6}, {X: 0, Y: -6},
	}
)

// Generator детерминированно классифицирует клетки мира по сиду
type Generator struct {
	seed  int64
	noise *noise.Generator
}

// NewGenerator создаёт генератор ландшафта
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed, noise: noise.New(seed)}
}

// Seed возвращает сид генератора
func (g *Generator) Seed() int64 {
	return g.seed
}

// GroundHeight мировая Y поверхности в столбце wx
func (g *Generator) GroundHeight(wx int) int {
	return MaxGround - int(g.noise.Height(wx)*MaxGround)
}

// PlayerStart Y появления игрока над столбцом x
func (g *Generator) PlayerStart(x int) int {
	return g.GroundHeight(x) - 2
}

func (g *Generator) isCave(wx, wy int) bool {
	return math.Abs(g.noise.Noise2D(wx, wy, 3, 0.02, 0.05, 3)) > 0.5
}

// treeEligible: на поверхности столбца нет пещеры и шум деревьев выше порога
func (g *Generator) treeEligible(wx, h int) bool {
	if g.isCave(wx, h) {
		return false
	}
	return g.noise.Noise1D(wx, 1, 15, 10, 0.001) > 0.85
}

func (g *Generator) ore(wx, wy int) string {
	s := g.noise.Field(wx, wy)
	switch {
	case s >= -0.15:
		return ""
	case -0.9 < s && s < -0.85:
		return block.GoldOre
	case -0.77 < s && s < -0.7:
		return block.IronOre
	case -0.42 < s && s < -0.3:
		return block.CoalOre
	case -0.7 < s && s < -0.67:
		return block.DiamondOre
	case -0.23 < s && s < -0.15:
		return block.RedstoneOre
	}
	return ""
}

// columns высоты и пригодность для деревьев по диапазону столбцов с запасом
type columns struct {
	x0       int
	heights  []int
	eligible []bool
	marks    bool // false: окно целиком ниже поверхности, деревьев в нём нет
}

// columns готовит контекст для столбцов [x0, x1]; top - верхняя строка окна.
func (g *Generator) columns(x0, x1, top int) *columns {
	n := x1 - x0 + 1 + 2*treeApron
	c := &columns{
		x0:       x0 - treeApron,
		heights:  make([]int, n),
		eligible: make([]bool, n),
	}
	deepest := MaxHeight
	for i := 0; i < n; i++ {
		wx := c.x0 + i
		h := g.GroundHeight(wx)
		c.heights[i] = h
		c.eligible[i] = g.treeEligible(wx, h)
		if h > deepest {
			deepest = h
		}
	}
	c.marks = top <= deepest
	return c
}

func (c *columns) height(wx int) int {
	return c.heights[wx-c.x0]
}

func (c *columns) matches(wx, wy int, offsets []vec.Vec2) bool {
	for _, o := range offsets {
		i := wx + o.X - c.x0
		if i < 0 || i >= len(c.heights) {
			continue
		}
		if c.eligible[i] && wy-c.heights[i] == o.Y {
			return true
		}
	}
	return false
}

// treeMark возвращает тип части дерева в клетке или пустую строку
func (c *columns) treeMark(wx, wy int) string {
	if !c.marks {
		return ""
	}
	if c.matches(wx, wy, trunkOffsets) {
		return block.OrigWood
	}
	if c.matches(wx, wy, canopyOffsets) {
		return block.Leaves
	}
	return ""
}

// Classify возвращает природный тип клетки без учёта изменений игроков
func (g *Generator) Classify(wx, wy int) string {
	return g.classify(g.columns(wx, wx, wy), wx, wy)
}

func (g *Generator) classify(c *columns, wx, wy int) string {
	h := c.height(wx)
	d := h + 10 + vec.FloorMod(h, 2)

	tag := block.Empty
	if MaxHeight < wy && wy < MinHeight && wy >= h {
		switch {
		case wy == h:
			tag = block.Grass
		case wy > d:
			tag = block.Stone
		default:
			tag = block.Dirt
		}
	}

	if wy-h >= CaveExemptDepth {
		if g.isCave(wx, wy) {
			tag = block.Empty
		} else if d < wy && wy < MinHeight {
			if ore := g.ore(wx, wy); ore != "" {
				tag = ore
			}
		}
	}

	if mark := c.treeMark(wx, wy); mark != "" {
		tag = mark
	}
	if wy == MinHeight {
		tag = block.Bedrock
	}
	return tag
}

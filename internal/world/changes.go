package world

import (
	"fmt"
	"sort"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

// ChangeMap разреженная карта изменений мира: x → y → состояние блока.
// Записи только добавляются или заменяются, но никогда не удаляются.
// Синхронизацию обеспечивает владелец (WorldManager).
type ChangeMap struct {
	cells map[int]map[int]*block.State
	count int
}

// NewChangeMap создаёт пустую карту изменений
func NewChangeMap() *ChangeMap {
	return &ChangeMap{cells: make(map[int]map[int]*block.State)}
}

// Get возвращает изменённый блок, если он есть
func (m *ChangeMap) Get(wx, wy int) (*block.State, bool) {
	col, ok := m.cells[wx]
	if !ok {
		return nil, false
	}
	s, ok := col[wy]
	return s, ok
}

// Set записывает блок в карту
func (m *ChangeMap) Set(wx, wy int, s *block.State) {
	col, ok := m.cells[wx]
	if !ok {
		col = make(map[int]*block.State)
		m.cells[wx] = col
	}
	if _, exists := col[wy]; !exists {
		m.count++
	}
	col[wy] = s
}

// Len число записей
func (m *ChangeMap) Len() int {
	return m.count
}

// Each обходит записи в порядке возрастания x, затем y
func (m *ChangeMap) Each(fn func(wx, wy int, s *block.State)) {
	xs := make([]int, 0, len(m.cells))
	for x := range m.cells {
		xs = append(xs, x)
	}
	sort.Ints(xs)
	for _, x := range xs {
		col := m.cells[x]
		ys := make([]int, 0, len(col))
		for y := range col {
			ys = append(ys, y)
		}
		sort.Ints(ys)
		for _, y := range ys {
			fn(x, y, col[y])
		}
	}
}

// Records сериализует карту для сохранения
func (m *ChangeMap) Records() map[int]map[int]block.Record {
	out := make(map[int]map[int]block.Record, len(m.cells))
	for x, col := range m.cells {
		rc := make(map[int]block.Record, len(col))
		for y, s := range col {
			rc[y] = s.Record()
		}
		out[x] = rc
	}
	return out
}

// changeMapFromRecords восстанавливает карту; при ошибке карта не возвращается
func changeMapFromRecords(recs map[int]map[int]block.Record) (*ChangeMap, error) {
	m := NewChangeMap()
	for x, col := range recs {
		for y, rec := range col {
			s, err := block.FromRecord(rec)
			if err != nil {
				return nil, fmt.Errorf("изменение (%d, %d): %w", x, y, err)
			}
			s.WorldPos = vec.Vec2{X: x, Y: y}
			m.Set(x, y, s)
		}
	}
	return m, nil
}

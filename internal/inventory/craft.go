package inventory

import (
	"encoding/json"
	"fmt"
)

// Cell ячейка рецепта: тип и требуемое количество. Тип "None" требует пустой слот.
type Cell struct {
	Type  string
	Count int
}

// MarshalJSON сериализует ячейку как массив [type, count]
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{c.Type, c.Count})
}

// UnmarshalJSON разбирает массив [type, count]
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("ячейка рецепта должна содержать 2 элемента, получено %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &c.Type); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &c.Count)
}

// IsEmpty сообщает, что ячейка требует пустой слот
func (c Cell) IsEmpty() bool {
	return c.Type == EmptySlot
}

// Recipe рецепт крафта: шаблон (строки по Y) и результат
type Recipe struct {
	Pattern [][]Cell `json:"recipe"`
	Result  Cell     `json:"result"`
}

// Anchor позиция левого верхнего угла совпавшего шаблона
type Anchor struct {
	Row int
	Col int
}

// MatchRecipe ищет первый подходящий рецепт. Якоря перебираются по строкам,
// для каждого якоря рецепты проверяются по порядку. Все ячейки шаблона должны
// совпасть, а число занятых слотов поля должно равняться числу непустых ячеек.
func MatchRecipe(recipes []Recipe, field *Container) (Anchor, int, bool) {
	occupied := field.Occupied()
	for row := 0; row < field.YSize; row++ {
		for col := 0; col < field.XSize; col++ {
			for idx, recipe := range recipes {
				if matchAt(recipe, field, row, col, occupied) {
					return Anchor{Row: row, Col: col}, idx, true
				}
			}
		}
	}
	return Anchor{}, -1, false
}

func matchAt(recipe Recipe, field *Container, row, col, occupied int) bool {
	if row+len(recipe.Pattern) > field.YSize {
		return false
	}
	required := 0
	for f, line := range recipe.Pattern {
		for s, cell := range line {
			if col+s >= field.XSize {
				return false
			}
			it := field.Get(col+s, row+f)
			if cell.IsEmpty() {
				if it != nil {
					return false
				}
				continue
			}
			if it == nil || it.Type != cell.Type || it.Count < cell.Count {
				return false
			}
			required++
		}
	}
	return required == occupied
}

// CraftModel поле крафта и слот результата.
// Изменение поля пересчитывает результат, взятие результата списывает ингредиенты.
type CraftModel struct {
	Field  *Container
	Result *Container

	recipes []Recipe
	factory ItemFactory
}

// NewCraftModel создаёт модель крафта с полем width × height
func NewCraftModel(width, height int, recipes []Recipe, factory ItemFactory) *CraftModel {
	cm := &CraftModel{
		Field:   NewContainer(width, height),
		Result:  NewContainer(1, 1),
		recipes: recipes,
		factory: factory,
	}
	cm.Result.TakeOnly = true
	cm.Field.OnChange = func(int, int, int, *Item) { cm.Refresh() }
	cm.Result.OnChange = cm.consume
	return cm
}

// Refresh пересчитывает слот результата по текущему полю
func (cm *CraftModel) Refresh() {
	_, idx, ok := MatchRecipe(cm.recipes, cm.Field)
	if !ok {
		cm.Result.Set(0, 0, nil)
		return
	}
	res := cm.recipes[idx].Result
	cm.Result.Set(0, 0, cm.makeItem(res.Type, res.Count))
}

func (cm *CraftModel) makeItem(tag string, count int) *Item {
	if cm.factory != nil {
		if it := cm.factory(tag, count); it != nil {
			return it
		}
	}
	return &Item{Type: tag, Count: count}
}

func (cm *CraftModel) consume(delta, _, _ int, _ *Item) {
	if delta >= 0 {
		return
	}
	anchor, idx, ok := MatchRecipe(cm.recipes, cm.Field)
	if !ok {
		return
	}
	for f, line := range cm.recipes[idx].Pattern {
		for s, cell := range line {
			if cell.IsEmpty() {
				continue
			}
			cm.Field.Take(anchor.Col+s, anchor.Row+f, cell.Count)
		}
	}
}

// Record сохраняет поле крафта (результат вычисляется заново)
func (cm *CraftModel) Record() GridRecord {
	return cm.Field.Record()
}

// Load загружает поле и пересчитывает результат
func (cm *CraftModel) Load(rec GridRecord) error {
	if err := cm.Field.Load(rec, cm.factory); err != nil {
		return err
	}
	cm.Refresh()
	return nil
}

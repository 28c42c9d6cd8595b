package block

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/vec"
)

// Template неизменяемое описание типа блока или предмета, загружаемое из JSON
type Template struct {
	Name        string  `json:"name"`
	IsPhys      bool    `json:"is_phys"`
	IsItem      bool    `json:"is_item"`
	Transparent bool    `json:"transparent"`
	HP          float64 `json:"hp"`
	Lighting    float64 `json:"lighting"`
	Drop        *Drop   `json:"drop"`
	Behavior    string  `json:"behavior,omitempty"`
}

// Breakable сообщает, можно ли разрушить блок (отрицательная прочность - нельзя)
func (t *Template) Breakable() bool {
	return t.HP >= 0
}

// Drop описание выпадающих предметов. Сериализуется как [type, min, max].
type Drop struct {
	DropType string
	MinCount int
	MaxCount int
}

// MarshalJSON реализует json.Marshaler
func (d Drop) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{d.DropType, d.MinCount, d.MaxCount})
}

// UnmarshalJSON реализует json.Unmarshaler
func (d *Drop) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("drop должен содержать 3 элемента, получено %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &d.DropType); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &d.MinCount); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &d.MaxCount)
}

// Roll выбирает количество равномерно в [MinCount, MaxCount]
func (d *Drop) Roll(rng *rand.Rand) (string, int) {
	n := d.MinCount
	if d.MaxCount > d.MinCount {
		if rng != nil {
			n += rng.Intn(d.MaxCount - d.MinCount + 1)
		} else {
			n += rand.Intn(d.MaxCount - d.MinCount + 1)
		}
	}
	return d.DropType, n
}

// RollAt бросок для клетки pos мира seed. Клиент и сервер получают одно
// и то же количество без обмена сообщениями.
func (d *Drop) RollAt(seed int64, pos vec.Vec2) (string, int) {
	return d.Roll(rand.New(rand.NewSource(dropSeed(seed, pos))))
}

// dropSeed перемешивает seed и координаты (финализатор splitmix64)
func dropSeed(seed int64, pos vec.Vec2) int64 {
	h := uint64(seed) ^ uint64(int64(pos.X))*0x9e3779b97f4a7c15 ^ uint64(int64(pos.Y))*0xc2b2ae3d27d4eb4f
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return int64(h)
}

// State состояние клетки мира
type State struct {
	Type        string
	HP          float64
	Transparent bool
	Lighting    float64
	IsPhys      bool
	Drop        *Drop
	WorldPos    vec.Vec2
	Local       vec.Vec2
	Craft       *inventory.CraftModel // только у блоков с внутренним контейнером
}

// NewState создаёт свежее состояние по шаблону
func NewState(tag string, pos vec.Vec2) (*State, error) {
	t, ok := Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, tag)
	}
	s := &State{
		Type:        t.Name,
		HP:          t.HP,
		Transparent: t.Transparent,
		Lighting:    t.Lighting,
		IsPhys:      t.IsPhys,
		WorldPos:    pos,
	}
	if t.Drop != nil {
		d := *t.Drop
		s.Drop = &d
	}
	return s, nil
}

// MustState как NewState, но паникует на неизвестном теге.
// Используется только для встроенных тегов генератора.
func MustState(tag string, pos vec.Vec2) *State {
	s, err := NewState(tag, pos)
	if err != nil {
		panic(err)
	}
	return s
}

// IsEmpty сообщает, что клетка пуста
func (s *State) IsEmpty() bool {
	return s == nil || s.Type == Empty
}

// Damage уменьшает прочность; true если блок разрушен
func (s *State) Damage(dmg float64) bool {
	if s.HP < 0 {
		return false
	}
	s.HP -= dmg
	return s.HP <= 0
}

// Record сохранённое состояние блока
type Record struct {
	Type        string      `json:"type"`
	HP          float64     `json:"hp"`
	Transparent bool        `json:"transparent"`
	Lighting    float64     `json:"lighting"`
	IsPhys      bool        `json:"is_phys"`
	WorldPos    [2]int      `json:"worldpos"`
	Drop        *Drop       `json:"drop,omitempty"`
	Additional  *Additional `json:"additional,omitempty"`
}

// Additional данные блоков с внутренним контейнером
type Additional struct {
	Craft inventory.GridRecord `json:"craft"`
}

// Record сериализует состояние
func (s *State) Record() Record {
	rec := Record{
		Type:        s.Type,
		HP:          s.HP,
		Transparent: s.Transparent,
		Lighting:    s.Lighting,
		IsPhys:      s.IsPhys,
		WorldPos:    [2]int{s.WorldPos.X, s.WorldPos.Y},
	}
	if s.Drop != nil {
		d := *s.Drop
		rec.Drop = &d
	}
	if s.Craft != nil {
		rec.Additional = &Additional{Craft: s.Craft.Record()}
	}
	return rec
}

// FromRecord восстанавливает состояние, включая drop и внутренний контейнер
func FromRecord(rec Record) (*State, error) {
	if !IsValidType(rec.Type) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, rec.Type)
	}
	s := &State{
		Type:        rec.Type,
		HP:          rec.HP,
		Transparent: rec.Transparent,
		Lighting:    rec.Lighting,
		IsPhys:      rec.IsPhys,
		WorldPos:    vec.Vec2{X: rec.WorldPos[0], Y: rec.WorldPos[1]},
	}
	if rec.Drop != nil {
		d := *rec.Drop
		s.Drop = &d
	}
	if rec.Additional != nil && len(rec.Additional.Craft) > 0 {
		h := len(rec.Additional.Craft)
		w := len(rec.Additional.Craft[0])
		s.Craft = NewCraftModel(w, h)
		if err := s.Craft.Load(rec.Additional.Craft); err != nil {
			return nil, fmt.Errorf("контейнер блока %s: %w", rec.Type, err)
		}
	}
	return s, nil
}

// NewItem фабрика предметов по шаблонам; nil для неизвестного тега
func NewItem(tag string, count int) *inventory.Item {
	t, ok := Lookup(tag)
	if !ok {
		return nil
	}
	return &inventory.Item{Type: t.Name, Count: count, IsItem: t.IsItem}
}

// NewCraftModel создаёт модель крафта на зарегистрированных рецептах
func NewCraftModel(width, height int) *inventory.CraftModel {
	return inventory.NewCraftModel(width, height, Recipes(), NewItem)
}

// NewInventory создаёт инвентарь игрока на зарегистрированных рецептах
func NewInventory(width, height int) *inventory.Inventory {
	return inventory.NewInventory(width, height, Recipes(), NewItem)
}

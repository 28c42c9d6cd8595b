package entity

import (
	"fmt"

	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/physics"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

// Параметры игрока по умолчанию
const (
	DefaultMineSpeed = 200.0 // урон по блоку в секунду
	DefaultSpeed     = 6.0   // блоков в секунду
	SpawnX           = 100000
)

// Player игрок: позиция, намерение движения, скорость добычи и инвентарь
type Player struct {
	ID        int
	Name      string
	X, Y      float64
	Moving    bool
	Direction int
	MineSpeed float64
	Speed     float64
	Inventory *inventory.Inventory
}

// Record сохранённый игрок
type Record struct {
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Inventory inventory.Record `json:"inventory"`
}

// NewPlayer создаёт игрока с пустым инвентарём.
// Смена выбранного предмета вызывает OnSelect/OnDeselect его поведения.
func NewPlayer(name string, x, y float64) *Player {
	p := &Player{
		Name:      name,
		X:         x,
		Y:         y,
		MineSpeed: DefaultMineSpeed,
		Speed:     DefaultSpeed,
		Inventory: block.NewInventory(inventory.DefaultWidth, inventory.DefaultHeight),
	}
	p.Inventory.OnSelect = p.selectionChanged
	return p
}

func (p *Player) selectionChanged(was, now *inventory.Item) {
	if was != nil {
		block.BehaviorFor(was.Type).OnDeselect(p, was)
	}
	if now != nil {
		block.BehaviorFor(now.Type).OnSelect(p, now)
	}
}

// AdjustMineSpeed реализует block.Holder
func (p *Player) AdjustMineSpeed(delta float64) {
	p.MineSpeed += delta
}

// GiveStarterKit выдаёт стартовый набор: 20 факелов и 120 земли
func (p *Player) GiveStarterKit() {
	p.Inventory.AddItem(block.NewItem("torch", 20))
	p.Inventory.AddItem(block.NewItem(block.Dirt, 120))
}

// Position позиция игрока
func (p *Player) Position() vec.Vec2Float {
	return vec.Vec2Float{X: p.X, Y: p.Y}
}

// Cell клетка, в которой находится игрок
func (p *Player) Cell() vec.Vec2 {
	return p.Position().ToVec2()
}

// Box прямоугольник аватара
func (p *Player) Box() physics.Rect {
	return physics.AvatarRect(p.X, p.Y)
}

// SelectedType тип выбранного предмета или "None"
func (p *Player) SelectedType() string {
	return p.Inventory.SelectedType()
}

// Record сериализует игрока
func (p *Player) Record() Record {
	return Record{X: p.X, Y: p.Y, Inventory: p.Inventory.Record()}
}

// Load восстанавливает позицию и инвентарь
func (p *Player) Load(rec Record) error {
	if err := p.Inventory.Load(rec.Inventory); err != nil {
		return fmt.Errorf("инвентарь игрока %s: %w", p.Name, err)
	}
	p.X, p.Y = rec.X, rec.Y
	return nil
}

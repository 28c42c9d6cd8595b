package implementations

import (
	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/world/block"
)

// StonePickaxeBonus прибавка к скорости добычи от каменной кирки
const StonePickaxeBonus = 100

// PickaxeBehavior инструмент, ускоряющий добычу, пока он выбран
type PickaxeBehavior struct {
	block.BaseBehavior
	Bonus float64
}

// OnSelect добавляет бонус скорости
func (b *PickaxeBehavior) OnSelect(holder block.Holder, it *inventory.Item) {
	holder.AdjustMineSpeed(b.Bonus)
}

// OnDeselect снимает бонус скорости
func (b *PickaxeBehavior) OnDeselect(holder block.Holder, it *inventory.Item) {
	holder.AdjustMineSpeed(-b.Bonus)
}

// Package implementations содержит поведения блоков и предметов,
// регистрируемые при импорте пакета.
package implementations

import "github.com/annel0/tileworld/internal/world/block"

// Теги поведений, на которые ссылаются JSON-описания
const (
	WorkbenchTag    = "workbench"
	StonePickaxeTag = "stone_pickaxe"
)

func init() {
	block.Register(WorkbenchTag, &WorkbenchBehavior{})
	block.Register(StonePickaxeTag, &PickaxeBehavior{Bonus: StonePickaxeBonus})
}

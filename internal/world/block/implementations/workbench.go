package implementations

import (
	"github.com/annel0/tileworld/internal/world/block"
)

// WorkbenchSize размер поля крафта верстака
const WorkbenchSize = 3

// WorkbenchBehavior верстак: блок с собственным полем крафта 3×3
type WorkbenchBehavior struct {
	block.BaseBehavior
}

// OnPlace создаёт поле крафта, если блок пришёл без сохранённого содержимого
func (b *WorkbenchBehavior) OnPlace(h block.Host, s *block.State) {
	if s.Craft == nil {
		s.Craft = block.NewCraftModel(WorkbenchSize, WorkbenchSize)
	}
}

// OnUse открывает поле крафта у клиента
func (b *WorkbenchBehavior) OnUse(h block.Host, s *block.State) {
	if h.IsServer() {
		return
	}
	if s.Craft == nil {
		s.Craft = block.NewCraftModel(WorkbenchSize, WorkbenchSize)
	}
	h.OpenContainer(s.WorldPos, s.Craft)
}

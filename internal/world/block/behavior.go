package block

import "github.com/annel0/tileworld/internal/inventory"

// Behavior определяет поведение типа блока или предмета.
// Все хуки вызываются синхронно тем, кто владеет миром.
type Behavior interface {
	OnPlace(h Host, s *State)
	OnDestroy(h Host, s *State)
	OnUse(h Host, s *State)
	OnTick(h Host, s *State)
	OnSelect(holder Holder, it *inventory.Item)
	OnDeselect(holder Holder, it *inventory.Item)
}

// BaseBehavior поведение без действий; встраивается в реализации
type BaseBehavior struct{}

func (BaseBehavior) OnPlace(Host, *State)               {}
func (BaseBehavior) OnDestroy(Host, *State)             {}
func (BaseBehavior) OnUse(Host, *State)                 {}
func (BaseBehavior) OnTick(Host, *State)                {}
func (BaseBehavior) OnSelect(Holder, *inventory.Item)   {}
func (BaseBehavior) OnDeselect(Holder, *inventory.Item) {}
